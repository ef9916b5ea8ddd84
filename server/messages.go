package server

import "github.com/chazu/blockjit/compiler"

// CompileRequest asks for every script of a project to be compiled.
type CompileRequest struct {
	// RequestID is generated when empty.
	RequestID string `cbor:"1,keyasint,omitempty"`
	// Project is a project.json document or an .sb3 archive.
	Project []byte `cbor:"2,keyasint"`
	// Targets limits the response to the named targets.
	Targets    []string `cbor:"3,keyasint,omitempty"`
	Warp       bool     `cbor:"4,keyasint,omitempty"`
	Extensions []string `cbor:"5,keyasint,omitempty"`
}

// ScriptError describes a script that failed to compile.
type ScriptError struct {
	Target   string `cbor:"1,keyasint"`
	ScriptID string `cbor:"2,keyasint"`
	Kind     string `cbor:"3,keyasint,omitempty"`
	BlockID  string `cbor:"4,keyasint,omitempty"`
	Opcode   string `cbor:"5,keyasint,omitempty"`
	Message  string `cbor:"6,keyasint"`
}

// CompileResponse carries the compiled scripts and the failures.
type CompileResponse struct {
	RequestID string                     `cbor:"1,keyasint"`
	Scripts   []*compiler.CompiledScript `cbor:"2,keyasint"`
	Errors    []ScriptError              `cbor:"3,keyasint,omitempty"`
}

// RunRequest asks for the green-flag scripts of a project to be run
// against recording hosts.
type RunRequest struct {
	RequestID  string   `cbor:"1,keyasint,omitempty"`
	Project    []byte   `cbor:"2,keyasint"`
	Engine     string   `cbor:"3,keyasint,omitempty"`
	Warp       bool     `cbor:"4,keyasint,omitempty"`
	Extensions []string `cbor:"5,keyasint,omitempty"`
	Seed       int64    `cbor:"6,keyasint,omitempty"`
	MaxSteps   int      `cbor:"7,keyasint,omitempty"`
}

// ScriptStatus is the outcome of one script run.
type ScriptStatus struct {
	Target   string `cbor:"1,keyasint"`
	ScriptID string `cbor:"2,keyasint"`
	Yields   int    `cbor:"3,keyasint"`
	Error    string `cbor:"4,keyasint,omitempty"`
}

// RunResponse carries the recorded side effects of a run.
type RunResponse struct {
	RequestID  string         `cbor:"1,keyasint"`
	Log        []string       `cbor:"2,keyasint"`
	Scripts    []ScriptStatus `cbor:"3,keyasint"`
	StoppedAll bool           `cbor:"4,keyasint,omitempty"`
}
