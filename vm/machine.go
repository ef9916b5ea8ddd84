// Package vm interprets lowered scripts directly. It is the reference
// behavior generated code is checked against: both paths share the cast
// package and consume host randomness in the same order.
package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
)

var log = commonlog.GetLogger("blockjit.vm")

// DefaultMaxSteps bounds loop iterations and waits per run.
const DefaultMaxSteps = 1_000_000

var (
	// ErrStepLimit is returned when a run exceeds Options.MaxSteps.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrUnknownKind is returned for IR kinds with no implementation.
	ErrUnknownKind = errors.New("unknown IR kind")
)

// Primitive implements an extension IR kind. Expression primitives
// return the value; statement primitives return nil.
type Primitive func(th *Thread, n *compiler.IRNode) (interface{}, error)

// Extension contributes primitives for the IR kinds it lowers to.
type Extension interface {
	Primitives() map[string]Primitive
}

// Options configure a Machine.
type Options struct {
	// Warp runs loops without yield points, like warp-compiled scripts.
	Warp bool
	// MaxSteps bounds loop iterations and waits; 0 means
	// DefaultMaxSteps.
	MaxSteps int
	// Extensions provide primitives for extension IR kinds.
	Extensions []Extension
	// Profiler, if set, counts script runs and statement executions.
	Profiler *Profiler
}

// Machine runs scripts of one target against a host.
type Machine struct {
	target *block.Target
	stage  *block.Target
	host   Host
	opts   Options
	prims  map[string]Primitive
}

// New creates a machine for target. stage may be nil.
func New(target, stage *block.Target, host Host, opts Options) *Machine {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	m := &Machine{
		target: target,
		stage:  stage,
		host:   host,
		opts:   opts,
		prims:  make(map[string]Primitive),
	}
	for _, ext := range opts.Extensions {
		for kind, p := range ext.Primitives() {
			m.prims[kind] = p
		}
	}
	return m
}

// Result describes a finished run.
type Result struct {
	// Yields counts the yield points passed; warp runs report 0.
	Yields int
	// Steps counts loop iterations and waits.
	Steps int
	// Stopped is set when the script ended through a stop block.
	Stopped bool
}

// Run executes a lowered script to completion. Variables and lists are
// read from and written to the target and stage.
func (m *Machine) Run(ctx context.Context, s *compiler.IRScript) (*Result, error) {
	th := &Thread{
		m:        m,
		ctx:      ctx,
		store:    newStore(m.target, m.stage),
		scriptID: s.ID,
	}
	if m.opts.Profiler != nil {
		m.opts.Profiler.RecordScriptRun(CodeRef{Target: m.target.Name, ID: s.ID})
	}

	err := th.ExecStack(s.Body)
	res := &Result{Yields: th.yields, Steps: th.steps}

	var stop *stopSignal
	switch {
	case err == nil:
	case errors.As(err, &stop):
		res.Stopped = true
		err = nil
	default:
		log.Debugf("script %s of %s failed after %d steps: %s", s.ID, m.target.Name, th.steps, err)
		return res, fmt.Errorf("script %s: %w", s.ID, err)
	}
	return res, nil
}

// RunScript lowers the script under hatID with hooks and runs it.
func (m *Machine) RunScript(ctx context.Context, hatID string, hooks *compiler.Hooks) (*Result, error) {
	ir, err := Lower(m.target, m.stage, hatID, hooks)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, ir)
}

// Lower runs the tree and IR phases for one script.
func Lower(target, stage *block.Target, hatID string, hooks *compiler.Hooks) (*compiler.IRScript, error) {
	hat, ok := target.Blocks.Get(hatID)
	if !ok {
		return nil, compiler.NewError(compiler.ErrMissingBlock, hatID, "", "")
	}
	stg, err := compiler.NewScriptTreeGenerator(target, stage, hooks)
	if err != nil {
		return nil, err
	}
	tree, err := stg.DescendScript(hat)
	if err != nil {
		return nil, err
	}
	irg, err := compiler.NewIRGenerator(hooks)
	if err != nil {
		return nil, err
	}
	return irg.Generate(tree)
}

// stopSignal unwinds the thread for a stop block.
type stopSignal struct{}

func (*stopSignal) Error() string { return "script stopped" }
