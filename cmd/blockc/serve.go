package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/blockjit/ext"
	"github.com/chazu/blockjit/jsrt"
	"github.com/chazu/blockjit/manifest"
	"github.com/chazu/blockjit/server"
	"github.com/chazu/blockjit/vm"
)

// serveCommand handles `blockc serve`. It runs until interrupted.
func serveCommand(m *manifest.Manifest, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", m.Server.Addr, "Connect (HTTP) listen address")
	grpcAddr := fs.String("grpc", m.Server.GRPC, `gRPC listen address, or "off"`)
	jobs := fs.Int("j", m.Compile.Parallelism, "Scripts compiled at once per request (0: unbounded)")
	maxSteps := fs.Int("max-steps", vm.DefaultMaxSteps, "Bound on loop iterations per script run")
	timeout := fs.Duration("timeout", jsrt.DefaultTimeout, "Bound on one compiled script's run time")
	backend := fs.String("cache", "", "Cache backend: memory, sqlite or none (default from manifest)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := ext.Resolve(m.Compile.Extensions); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg := server.Config{
		Parallelism: *jobs,
		Extensions:  m.Compile.Extensions,
		MaxSteps:    *maxSteps,
		Timeout:     *timeout,
	}
	c, err := openCache(m, *backend)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening cache: %v\n", err)
		return 1
	}
	if c != nil {
		defer c.Close()
		cfg.Cache = c
	}
	srv := server.New(server.NewService(cfg))

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	errs := make(chan error, 2)
	go func() { errs <- srv.Serve(lis) }()

	if *grpcAddr != "off" {
		glis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			lis.Close()
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		go func() { errs <- srv.ServeGRPC(glis) }()
	}
	fmt.Fprintf(stdout, "Serving on %s (Connect)", lis.Addr())
	if *grpcAddr != "off" {
		fmt.Fprintf(stdout, " and %s (gRPC)", *grpcAddr)
	}
	fmt.Fprintln(stdout)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	code := 0
	select {
	case <-sigChan:
	case err := <-errs:
		if err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			code = 1
		}
	}
	srv.Stop()
	return code
}
