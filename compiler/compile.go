package compiler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/blockjit/block"
)

// Version is bumped whenever generated code changes shape, so cached
// output from older compilers is not reused.
const Version = "1"

var log = commonlog.GetLogger("blockjit.compiler")

// ---------------------------------------------------------------------------
// Options and results
// ---------------------------------------------------------------------------

// Options control a compilation.
type Options struct {
	// Warp compiles loops without yield points.
	Warp bool
	// Parallelism bounds concurrent script compiles; 0 means one per CPU
	// as chosen by the caller, and negative means unbounded.
	Parallelism int
	// Hooks defaults to DefaultHooks.
	Hooks *Hooks
	// Cache, if set, is consulted before and filled after each script.
	Cache Cache
}

func (o Options) hooks() *Hooks {
	if o.Hooks != nil {
		return o.Hooks
	}
	return DefaultHooks
}

// Fingerprint identifies everything besides the blocks that affects the
// generated source.
func (o Options) Fingerprint() string {
	return fmt.Sprintf("blockjit/%s;warp=%t;hooks=%s", Version, o.Warp, o.hooks().Fingerprint())
}

// Cache stores compiled scripts. Implementations key entries on the
// script's blocks and opts.Fingerprint().
type Cache interface {
	Get(t *block.Target, hatID string, opts Options) (*CompiledScript, bool)
	Put(t *block.Target, hatID string, opts Options, s *CompiledScript)
}

// CompiledScript is the output for one script.
type CompiledScript struct {
	Target    string            `cbor:"1,keyasint" json:"target"`
	ScriptID  string            `cbor:"2,keyasint" json:"scriptId"`
	Hat       string            `cbor:"3,keyasint" json:"hat"`
	HatFields map[string]string `cbor:"4,keyasint" json:"hatFields,omitempty"`
	Source    string            `cbor:"5,keyasint" json:"source"`
	Warp      bool              `cbor:"6,keyasint" json:"warp"`
	UnitID    string            `cbor:"7,keyasint" json:"unitId"`
}

// ScriptResult is the outcome of one script in a project compile.
type ScriptResult struct {
	Target   string
	ScriptID string
	Script   *CompiledScript
	Err      error
}

// ProjectResult holds per-script outcomes in a stable order.
type ProjectResult struct {
	Scripts []*ScriptResult
}

// Compiled returns the scripts that compiled.
func (r *ProjectResult) Compiled() []*CompiledScript {
	var out []*CompiledScript
	for _, s := range r.Scripts {
		if s.Err == nil {
			out = append(out, s.Script)
		}
	}
	return out
}

// Errors returns the per-script errors.
func (r *ProjectResult) Errors() []error {
	var out []error
	for _, s := range r.Scripts {
		if s.Err != nil {
			out = append(out, s.Err)
		}
	}
	return out
}

// Script returns the result for a script id, or nil.
func (r *ProjectResult) Script(id string) *ScriptResult {
	for _, s := range r.Scripts {
		if s.ScriptID == id {
			return s
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

// CompileScript compiles the script whose hat block is hatID. stage may
// be nil or the same as target.
func CompileScript(target, stage *block.Target, hatID string, opts Options) (*CompiledScript, error) {
	if opts.Cache != nil {
		if s, ok := opts.Cache.Get(target, hatID, opts); ok {
			return s, nil
		}
	}

	s, err := compileScript(target, stage, hatID, opts)
	if err != nil {
		return nil, withScript(err, hatID)
	}
	if opts.Cache != nil {
		opts.Cache.Put(target, hatID, opts, s)
	}
	return s, nil
}

func compileScript(target, stage *block.Target, hatID string, opts Options) (*CompiledScript, error) {
	hooks := opts.hooks()
	hat, ok := target.Blocks.Get(hatID)
	if !ok {
		return nil, &CompileError{Kind: ErrMissingBlock, BlockID: hatID}
	}

	stg, err := NewScriptTreeGenerator(target, stage, hooks)
	if err != nil {
		return nil, err
	}
	tree, err := stg.DescendScript(hat)
	if err != nil {
		return nil, err
	}

	irg, err := NewIRGenerator(hooks)
	if err != nil {
		return nil, err
	}
	ir, err := irg.Generate(tree)
	if err != nil {
		return nil, err
	}

	unit, err := NewUnit(hatID, opts.Warp, hooks)
	if err != nil {
		return nil, err
	}
	src, err := unit.Generate(ir)
	if err != nil {
		return nil, err
	}

	log.Debugf("compiled script %s of %s (%d bytes)", hatID, target.Name, len(src))
	return &CompiledScript{
		Target:    target.Name,
		ScriptID:  hatID,
		Hat:       ir.Hat,
		HatFields: ir.HatFields,
		Source:    src,
		Warp:      opts.Warp,
		UnitID:    uuid.NewString(),
	}, nil
}

// Hats returns the hat blocks of a target in id order.
func Hats(t *block.Target) []*block.Block {
	var out []*block.Block
	for _, b := range t.Blocks.TopLevel() {
		if IsHat(b.Opcode) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CompileProject compiles every script of every target. A failing script
// is recorded in its ScriptResult and never stops the others; the
// returned error is non-nil only if ctx is cancelled.
func CompileProject(ctx context.Context, p *block.Project, opts Options) (*ProjectResult, error) {
	stage := p.Stage()

	var results []*ScriptResult
	type job struct {
		target *block.Target
		res    *ScriptResult
	}
	var jobs []job
	for _, t := range p.Targets {
		for _, hat := range Hats(t) {
			r := &ScriptResult{Target: t.Name, ScriptID: hat.ID}
			results = append(results, r)
			jobs = append(jobs, job{target: t, res: r})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	var mu sync.Mutex
	failed := 0
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := CompileScript(j.target, stage, j.res.ScriptID, opts)
			j.res.Script, j.res.Err = s, err
			if err != nil {
				log.Warningf("%s: %s", j.target.Name, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Infof("compiled %d scripts, %d failed", len(results)-failed, failed)
	return &ProjectResult{Scripts: results}, nil
}
