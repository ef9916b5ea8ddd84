// Package engine runs the green-flag scripts of a project, either through
// the block interpreter or as compiled JavaScript.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/ext"
	"github.com/chazu/blockjit/jsrt"
	"github.com/chazu/blockjit/vm"
)

var log = commonlog.GetLogger("blockjit.engine")

// Engine names.
const (
	VM = "vm"
	JS = "js"
)

// Options configure a run.
type Options struct {
	// Engine is VM or JS; empty means JS.
	Engine     string
	Warp       bool
	Extensions []ext.Extension
	// MaxSteps bounds each script; 0 means vm.DefaultMaxSteps.
	MaxSteps int
	// Seed seeds the default hosts.
	Seed int64
	// Host returns the host for a target; nil means a vm.Recorder.
	Host func(t *block.Target) vm.Host
	// Cache is passed to the compiler for the JS engine.
	Cache compiler.Cache
	// Timeout bounds each script of the JS engine when Runner is nil;
	// 0 means jsrt.DefaultTimeout.
	Timeout time.Duration
	// Runner executes compiled scripts; nil means a runner private to
	// this call.
	Runner   *jsrt.Runner
	Profiler *vm.Profiler
}

// ScriptRun is the outcome of one script.
type ScriptRun struct {
	Target   string
	ScriptID string
	Yields   int
	Err      error
}

// Report collects the outcome of a run.
type Report struct {
	Scripts []ScriptRun
	// Log lists host side effects as "Target: call" in execution order,
	// for hosts that record calls.
	Log []string
	// StoppedAll is set when a script stopped everything; later scripts
	// did not run.
	StoppedAll bool
}

// Failed returns the scripts that ended with an error.
func (r *Report) Failed() []ScriptRun {
	var out []ScriptRun
	for _, s := range r.Scripts {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

type recorder interface {
	Calls() []string
}

// stopWatch notes a stop-all so the remaining scripts are skipped.
type stopWatch struct {
	vm.Host
	stopped *atomic.Bool
}

func (h stopWatch) StopAll() {
	h.stopped.Store(true)
	h.Host.StopAll()
}

// FlagScripts returns the green-flag hats of t in id order.
func FlagScripts(t *block.Target) []*block.Block {
	var out []*block.Block
	for _, hat := range compiler.Hats(t) {
		if hat.Opcode == "event_whenflagclicked" {
			out = append(out, hat)
		}
	}
	return out
}

// Run runs every green-flag script of p, stage first, one after another.
// Script failures are reported per script; the error is non-nil only for
// setup failures and cancellation.
func Run(ctx context.Context, p *block.Project, opts Options) (*Report, error) {
	hooks, err := ext.Hooks(opts.Extensions)
	if err != nil {
		return nil, err
	}
	if opts.Engine == "" {
		opts.Engine = JS
	}
	if opts.Engine != VM && opts.Engine != JS {
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
	runner := opts.Runner
	if opts.Engine == JS && runner == nil {
		runner = jsrt.NewRunner(jsrt.Options{MaxSteps: opts.MaxSteps, Timeout: opts.Timeout})
		defer runner.Close()
	}

	stage := p.Stage()
	targets := make([]*block.Target, 0, len(p.Targets))
	if stage != nil {
		targets = append(targets, stage)
	}
	for _, t := range p.Targets {
		if t != stage {
			targets = append(targets, t)
		}
	}

	var stopped atomic.Bool
	rep := &Report{}
	for _, t := range targets {
		var host vm.Host
		if opts.Host != nil {
			host = opts.Host(t)
		} else {
			host = vm.NewRecorder(opts.Seed)
		}
		watched := stopWatch{Host: host, stopped: &stopped}
		rec, _ := host.(recorder)

		for _, hat := range FlagScripts(t) {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			if stopped.Load() {
				rep.StoppedAll = true
				return rep, nil
			}
			seen := 0
			if rec != nil {
				seen = len(rec.Calls())
			}

			run := ScriptRun{Target: t.Name, ScriptID: hat.ID}
			switch opts.Engine {
			case VM:
				m := vm.New(t, stage, watched, vm.Options{
					Warp:       opts.Warp,
					MaxSteps:   opts.MaxSteps,
					Extensions: ext.Primitives(opts.Extensions),
					Profiler:   opts.Profiler,
				})
				res, err := m.RunScript(ctx, hat.ID, hooks)
				if res != nil {
					run.Yields = res.Yields
				}
				run.Err = err
			case JS:
				copts := compiler.Options{Warp: opts.Warp, Hooks: hooks, Cache: opts.Cache}
				s, err := compiler.CompileScript(t, stage, hat.ID, copts)
				if err != nil {
					run.Err = err
					break
				}
				res, err := runner.Run(ctx, s, t, stage, watched)
				if res != nil {
					run.Yields = res.Yields
				}
				run.Err = err
			}
			if run.Err != nil {
				log.Warningf("%s/%s: %s", t.Name, hat.ID, run.Err)
			}
			rep.Scripts = append(rep.Scripts, run)

			if rec != nil {
				for _, c := range rec.Calls()[seen:] {
					rep.Log = append(rep.Log, t.Name+": "+c)
				}
			}
		}
	}
	rep.StoppedAll = stopped.Load()
	return rep, nil
}
