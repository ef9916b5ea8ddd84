package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. A CompileError carries one of these as its Kind, so callers
// match with errors.Is.
var (
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrMalformedBranch = errors.New("malformed branch")
	ErrMissingBlock    = errors.New("missing block")
	ErrInvalidContext  = errors.New("invalid control context")
	ErrFinalized       = errors.New("compilation unit already finalized")
)

// CompileError is a fatal error for one script.
type CompileError struct {
	Kind     error
	ScriptID string
	BlockID  string
	Opcode   string
	Err      error
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	if e.ScriptID != "" {
		fmt.Fprintf(&sb, "script %s: ", e.ScriptID)
	}
	sb.WriteString(e.Kind.Error())
	if e.Opcode != "" {
		fmt.Fprintf(&sb, " %q", e.Opcode)
	}
	if e.BlockID != "" {
		fmt.Fprintf(&sb, " at block %s", e.BlockID)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds a CompileError. Extensions use it to report failures in
// the same shape as built-in handlers.
func NewError(kind error, blockID, opcode string, format string, args ...interface{}) *CompileError {
	e := &CompileError{Kind: kind, BlockID: blockID, Opcode: opcode}
	if format != "" {
		e.Err = fmt.Errorf(format, args...)
	}
	return e
}

func unknownOpcode(blockID, opcode string) *CompileError {
	return &CompileError{Kind: ErrUnknownOpcode, BlockID: blockID, Opcode: opcode}
}

// withScript stamps the script id onto err, wrapping non-compile errors.
func withScript(err error, scriptID string) error {
	if err == nil {
		return nil
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		if ce.ScriptID == "" {
			ce.ScriptID = scriptID
		}
		return err
	}
	return fmt.Errorf("script %s: %w", scriptID, err)
}
