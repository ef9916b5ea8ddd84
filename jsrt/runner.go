// Package jsrt executes generated scripts with goja. It supplies the
// target and runtime objects generated code calls into, backed by a
// vm.Host, and steps generator scripts one yield at a time.
package jsrt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/tliron/commonlog"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/vm"
)

var log = commonlog.GetLogger("blockjit.jsrt")

// ErrStopped is returned by a stopped worker.
var ErrStopped = errors.New("jsrt: worker stopped")

// DefaultTimeout bounds one run when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configure a Runner.
type Options struct {
	// MaxSteps bounds the loop iterations and waits of one run, counted
	// as yields of a generator script and runtime.step() calls of a warp
	// script; 0 means vm.DefaultMaxSteps.
	MaxSteps int
	// Timeout bounds one run; 0 means DefaultTimeout and a negative value
	// means no limit beyond the context.
	Timeout time.Duration
}

// Result describes a finished run.
type Result struct {
	// Yields counts the generator steps that did not finish the script.
	Yields int
	// Steps counts loop iterations and waits, as vm.Result does.
	Steps int
}

// Runner runs compiled scripts on a single worker. Programs are compiled
// once per source text.
type Runner struct {
	opts Options
	w    *Worker

	mu       sync.Mutex
	programs map[string]*goja.Program
}

// NewRunner starts a runner.
func NewRunner(opts Options) *Runner {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = vm.DefaultMaxSteps
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Runner{
		opts:     opts,
		w:        NewWorker(),
		programs: make(map[string]*goja.Program),
	}
}

// Close stops the worker.
func (r *Runner) Close() {
	r.w.Stop()
}

// Wrap turns unit text into a factory expression taking (target, runtime).
func Wrap(source string) string {
	return "(function (target, runtime) {\n" + source + "})"
}

func (r *Runner) program(s *compiler.CompiledScript) (*goja.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.programs[s.Source]; ok {
		return p, nil
	}
	p, err := goja.Compile("script_"+s.ScriptID+".js", Wrap(s.Source), true)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.ScriptID, err)
	}
	r.programs[s.Source] = p
	return p, nil
}

// Run executes s against host. Variables and lists are copied from target
// and stage into the script's objects and written back when it ends,
// including on error.
func (r *Runner) Run(ctx context.Context, s *compiler.CompiledScript, target, stage *block.Target, host vm.Host) (*Result, error) {
	p, err := r.program(s)
	if err != nil {
		return nil, err
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	if stage == target {
		stage = nil
	}

	v, err := r.w.Do(func(rt *goja.Runtime) (interface{}, error) {
		return r.run(ctx, rt, p, s, target, stage, host)
	})
	if err != nil {
		log.Debugf("script %s of %s failed: %s", s.ScriptID, s.Target, err)
		return nil, fmt.Errorf("script %s: %w", s.ScriptID, err)
	}
	return v.(*Result), nil
}

func (r *Runner) run(ctx context.Context, rt *goja.Runtime, p *goja.Program, s *compiler.CompiledScript, target, stage *block.Target, host vm.Host) (*Result, error) {
	var mu sync.Mutex
	active := true
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if active {
			rt.Interrupt(ctx.Err())
		}
	})
	defer func() {
		stop()
		mu.Lock()
		active = false
		mu.Unlock()
		rt.ClearInterrupt()
	}()

	res := &Result{}
	env := newEnv(rt, host, target, stage)
	defer env.sync()
	env.method(env.runtime, "step", func(goja.FunctionCall) {
		res.Steps++
		if res.Steps > r.opts.MaxSteps {
			rt.Interrupt(vm.ErrStepLimit)
		}
	})

	factory, err := rt.RunProgram(p)
	if err != nil {
		return nil, unwrap(err)
	}
	call, ok := goja.AssertFunction(factory)
	if !ok {
		return nil, fmt.Errorf("unit did not evaluate to a function")
	}
	fn, err := call(goja.Undefined(), env.target, env.runtime)
	if err != nil {
		return nil, unwrap(err)
	}
	script, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, fmt.Errorf("factory did not return a function")
	}

	ret, err := script(goja.Undefined())
	if err != nil {
		return nil, unwrap(err)
	}
	if s.Warp {
		return res, nil
	}

	gen := ret.ToObject(rt)
	next, ok := goja.AssertFunction(gen.Get("next"))
	if !ok {
		return nil, fmt.Errorf("script is not a generator")
	}
	for {
		step, err := next(gen)
		if err != nil {
			return res, unwrap(err)
		}
		if step.ToObject(rt).Get("done").ToBoolean() {
			return res, nil
		}
		res.Yields++
		res.Steps++
		if res.Steps > r.opts.MaxSteps {
			return res, vm.ErrStepLimit
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
}

// unwrap turns an interrupt back into the error that caused it.
func unwrap(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok {
			return cause
		}
	}
	return err
}

// ---------------------------------------------------------------------------
// Target and runtime objects
// ---------------------------------------------------------------------------

// env holds the objects passed to one factory call.
type env struct {
	rt      *goja.Runtime
	target  *goja.Object
	runtime *goja.Object

	scopes []scope
}

// scope pairs a block target with the JavaScript objects mirroring its
// variables and lists.
type scope struct {
	t     *block.Target
	vars  *goja.Object
	lists *goja.Object
}

func newEnv(rt *goja.Runtime, host vm.Host, target, stage *block.Target) *env {
	e := &env{rt: rt}

	e.target = e.scopeObject(target)
	e.method(e.target, "say", func(c goja.FunctionCall) { host.Say(c.Argument(0).String()) })
	e.method(e.target, "think", func(c goja.FunctionCall) { host.Think(c.Argument(0).String()) })
	e.method(e.target, "moveSteps", func(c goja.FunctionCall) { host.MoveSteps(c.Argument(0).ToFloat()) })
	e.method(e.target, "setXY", func(c goja.FunctionCall) { host.SetXY(c.Argument(0).ToFloat(), c.Argument(1).ToFloat()) })
	e.method(e.target, "turn", func(c goja.FunctionCall) { host.Turn(c.Argument(0).ToFloat()) })
	e.method(e.target, "changeX", func(c goja.FunctionCall) { host.ChangeX(c.Argument(0).ToFloat()) })
	e.method(e.target, "changeY", func(c goja.FunctionCall) { host.ChangeY(c.Argument(0).ToFloat()) })
	e.getter(e.target, "x", host.X)
	e.getter(e.target, "y", host.Y)
	e.getter(e.target, "direction", host.Direction)

	e.runtime = rt.NewObject()
	e.method(e.runtime, "broadcast", func(c goja.FunctionCall) { host.Broadcast(c.Argument(0).String()) })
	e.method(e.runtime, "wait", func(c goja.FunctionCall) { host.Wait(c.Argument(0).ToFloat()) })
	e.method(e.runtime, "stopAll", func(goja.FunctionCall) { host.StopAll() })
	e.method(e.runtime, "stopOtherScripts", func(goja.FunctionCall) { host.StopOtherScripts() })
	e.function(e.runtime, "timer", host.Timer)
	e.function(e.runtime, "random", host.Random)
	if stage != nil {
		_ = e.runtime.Set("stage", e.scopeObject(stage))
	} else {
		_ = e.runtime.Set("stage", goja.Null())
	}
	return e
}

// scopeObject builds an object with variables and lists for t. Entries
// are added in sorted id order, which is the order name lookups see.
func (e *env) scopeObject(t *block.Target) *goja.Object {
	rt := e.rt
	s := scope{t: t, vars: rt.NewObject(), lists: rt.NewObject()}
	for _, id := range sortedIDs(t.Variables) {
		v := t.Variables[id]
		o := rt.NewObject()
		_ = o.Set("name", v.Name)
		_ = o.Set("value", v.Value)
		_ = s.vars.Set(id, o)
	}
	for _, id := range sortedIDs(t.Lists) {
		l := t.Lists[id]
		o := rt.NewObject()
		_ = o.Set("name", l.Name)
		_ = o.Set("value", rt.NewArray(l.Value...))
		_ = s.lists.Set(id, o)
	}
	e.scopes = append(e.scopes, s)

	obj := rt.NewObject()
	_ = obj.Set("variables", s.vars)
	_ = obj.Set("lists", s.lists)
	return obj
}

func (e *env) method(obj *goja.Object, name string, fn func(goja.FunctionCall)) {
	_ = obj.Set(name, func(c goja.FunctionCall) goja.Value {
		fn(c)
		return goja.Undefined()
	})
}

func (e *env) function(obj *goja.Object, name string, fn func() float64) {
	_ = obj.Set(name, func(goja.FunctionCall) goja.Value {
		return e.rt.ToValue(fn())
	})
}

func (e *env) getter(obj *goja.Object, name string, fn func() float64) {
	get := e.rt.ToValue(func(goja.FunctionCall) goja.Value {
		return e.rt.ToValue(fn())
	})
	_ = obj.DefineAccessorProperty(name, get, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// sync writes variables and lists back, adding any the script created.
func (e *env) sync() {
	for _, s := range e.scopes {
		for _, id := range s.vars.Keys() {
			o := s.vars.Get(id).ToObject(e.rt)
			v, ok := s.t.Variables[id]
			if !ok {
				v = &block.Variable{ID: id, Name: o.Get("name").String()}
				s.t.Variables[id] = v
			}
			v.Value = export(o.Get("value"))
		}
		for _, id := range s.lists.Keys() {
			o := s.lists.Get(id).ToObject(e.rt)
			l, ok := s.t.Lists[id]
			if !ok {
				l = &block.List{ID: id, Name: o.Get("name").String()}
				s.t.Lists[id] = l
			}
			items, _ := export(o.Get("value")).([]interface{})
			if items == nil {
				items = []interface{}{}
			}
			l.Value = items
		}
	}
}

// export converts a JavaScript value to the Go shapes the block model
// uses: numbers are always float64.
func export(v goja.Value) interface{} {
	return normalize(v.Export())
}

func normalize(x interface{}) interface{} {
	switch x := x.(type) {
	case int64:
		return float64(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case nil:
		return ""
	}
	return x
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
