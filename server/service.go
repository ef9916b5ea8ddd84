package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/engine"
	"github.com/chazu/blockjit/ext"
	"github.com/chazu/blockjit/jsrt"
	"github.com/chazu/blockjit/vm"
)

var (
	// ErrInvalidArgument marks requests that can never succeed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks requests naming targets the project lacks.
	ErrNotFound = errors.New("not found")
)

// Config configures a Service.
type Config struct {
	// Cache may be nil.
	Cache       compiler.Cache
	Parallelism int
	// Extensions are used by requests that name none.
	Extensions []string
	// MaxSteps bounds each script run; requests may only lower it.
	MaxSteps int
	// Timeout bounds each compiled script run; 0 means
	// jsrt.DefaultTimeout.
	Timeout time.Duration
}

// Service implements the compile service independent of transport.
type Service struct {
	cfg    Config
	runner *jsrt.Runner
}

// NewService creates a service with its own JavaScript runner.
func NewService(cfg Config) *Service {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = vm.DefaultMaxSteps
	}
	return &Service{
		cfg:    cfg,
		runner: jsrt.NewRunner(jsrt.Options{MaxSteps: cfg.MaxSteps, Timeout: cfg.Timeout}),
	}
}

// Close stops the runner.
func (s *Service) Close() {
	s.runner.Close()
}

func requestID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func (s *Service) load(data []byte, extIDs []string) (*block.Project, []ext.Extension, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: project is required", ErrInvalidArgument)
	}
	p, err := block.ReadProject(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}
	if len(extIDs) == 0 {
		extIDs = s.cfg.Extensions
	}
	exts, err := ext.Resolve(extIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}
	return p, exts, nil
}

// Compile compiles every script of the requested project.
func (s *Service) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	id := requestID(req.RequestID)
	p, exts, err := s.load(req.Project, req.Extensions)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(req.Targets))
	for _, name := range req.Targets {
		if p.Target(name) == nil {
			return nil, fmt.Errorf("%w: target %q", ErrNotFound, name)
		}
		want[name] = true
	}
	hooks, err := ext.Hooks(exts)
	if err != nil {
		return nil, err
	}

	res, err := compiler.CompileProject(ctx, p, compiler.Options{
		Warp:        req.Warp,
		Parallelism: s.cfg.Parallelism,
		Hooks:       hooks,
		Cache:       s.cfg.Cache,
	})
	if err != nil {
		return nil, err
	}

	out := &CompileResponse{RequestID: id}
	for _, r := range res.Scripts {
		if len(want) > 0 && !want[r.Target] {
			continue
		}
		if r.Err == nil {
			out.Scripts = append(out.Scripts, r.Script)
			continue
		}
		se := ScriptError{Target: r.Target, ScriptID: r.ScriptID, Message: r.Err.Error()}
		var ce *compiler.CompileError
		if errors.As(r.Err, &ce) {
			se.Kind = ce.Kind.Error()
			se.BlockID = ce.BlockID
			se.Opcode = ce.Opcode
		}
		out.Errors = append(out.Errors, se)
	}
	log.Infof("compile %s: %d scripts, %d errors", id, len(out.Scripts), len(out.Errors))
	return out, nil
}

// Run runs the green-flag scripts of the requested project.
func (s *Service) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	id := requestID(req.RequestID)
	p, exts, err := s.load(req.Project, req.Extensions)
	if err != nil {
		return nil, err
	}
	if req.Engine != "" && req.Engine != engine.VM && req.Engine != engine.JS {
		return nil, fmt.Errorf("%w: unknown engine %q", ErrInvalidArgument, req.Engine)
	}
	maxSteps := s.cfg.MaxSteps
	if req.MaxSteps > 0 && req.MaxSteps < maxSteps {
		maxSteps = req.MaxSteps
	}

	opts := engine.Options{
		Engine:     req.Engine,
		Warp:       req.Warp,
		Extensions: exts,
		MaxSteps:   maxSteps,
		Seed:       req.Seed,
		Cache:      s.cfg.Cache,
		Timeout:    s.cfg.Timeout,
	}
	// The shared runner is bound to the configured limit; a lower one
	// needs a private runner.
	if maxSteps == s.cfg.MaxSteps {
		opts.Runner = s.runner
	}
	rep, err := engine.Run(ctx, p, opts)
	if err != nil {
		return nil, err
	}

	out := &RunResponse{RequestID: id, Log: rep.Log, StoppedAll: rep.StoppedAll}
	for _, r := range rep.Scripts {
		st := ScriptStatus{Target: r.Target, ScriptID: r.ScriptID, Yields: r.Yields}
		if r.Err != nil {
			st.Error = r.Err.Error()
		}
		out.Scripts = append(out.Scripts, st)
	}
	log.Infof("run %s: %d scripts, %d log lines", id, len(out.Scripts), len(out.Log))
	return out, nil
}
