// Package server exposes the compiler over the network. The same service
// is served as Connect over HTTP and as gRPC, both carrying CBOR.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/tliron/commonlog"
	"google.golang.org/grpc"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("blockjit.server")

// Server bundles the service with its HTTP and gRPC front ends.
type Server struct {
	svc  *Service
	mux  *http.ServeMux
	grpc *grpc.Server

	http *http.Server
}

// New creates a server for svc. The server owns svc and closes it on Stop.
func New(svc *Service) *Server {
	s := &Server{
		svc:  svc,
		mux:  http.NewServeMux(),
		grpc: grpc.NewServer(),
	}

	path, handler := NewConnectHandler(svc)
	s.mux.Handle(path, handler)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s.http = &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	RegisterGRPC(s.grpc, svc)
	return s
}

// Handler returns the HTTP handler serving Connect requests.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe listens on addr and serves Connect until Stop.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve serves Connect on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	log.Noticef("blockjit server listening on %s", lis.Addr())
	log.Noticef("  Connect (HTTP/CBOR): http://%s%s", lis.Addr(), CompileProcedure)
	err := s.http.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeGRPC serves gRPC on lis until Stop.
func (s *Server) ServeGRPC(lis net.Listener) error {
	log.Noticef("  gRPC (CBOR):         grpc://%s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop shuts down both front ends and the service.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = s.http.Shutdown(ctx)
	cancel()
	s.grpc.GracefulStop()
	s.svc.Close()
}
