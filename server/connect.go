package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// Service and procedure names, shared by the Connect and gRPC transports.
const (
	ServiceName      = "blockjit.v1.CompileService"
	CompileProcedure = "/" + ServiceName + "/Compile"
	RunProcedure     = "/" + ServiceName + "/Run"

	// RequestIDHeader carries the request id when the message has none,
	// and echoes it on responses.
	RequestIDHeader = "Blockjit-Request-Id"
)

// NewConnectHandler builds an HTTP handler for the service. It returns
// the path to mount the handler on.
func NewConnectHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	compile := connect.NewUnaryHandler(CompileProcedure,
		func(ctx context.Context, req *connect.Request[CompileRequest]) (*connect.Response[CompileResponse], error) {
			if req.Msg.RequestID == "" {
				req.Msg.RequestID = req.Header().Get(RequestIDHeader)
			}
			res, err := svc.Compile(ctx, req.Msg)
			if err != nil {
				return nil, connectError(err)
			}
			resp := connect.NewResponse(res)
			resp.Header().Set(RequestIDHeader, res.RequestID)
			return resp, nil
		}, opts...)

	run := connect.NewUnaryHandler(RunProcedure,
		func(ctx context.Context, req *connect.Request[RunRequest]) (*connect.Response[RunResponse], error) {
			if req.Msg.RequestID == "" {
				req.Msg.RequestID = req.Header().Get(RequestIDHeader)
			}
			res, err := svc.Run(ctx, req.Msg)
			if err != nil {
				return nil, connectError(err)
			}
			resp := connect.NewResponse(res)
			resp.Header().Set(RequestIDHeader, res.RequestID)
			return resp, nil
		}, opts...)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case CompileProcedure:
			compile.ServeHTTP(w, r)
		case RunProcedure:
			run.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func connectError(err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, ErrInvalidArgument):
		code = connect.CodeInvalidArgument
	case errors.Is(err, ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}
	return connect.NewError(code, err)
}

// Client calls the service over Connect.
type Client struct {
	compile *connect.Client[CompileRequest, CompileResponse]
	run     *connect.Client[RunRequest, RunResponse]
}

// NewClient creates a client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &Client{
		compile: connect.NewClient[CompileRequest, CompileResponse](httpClient, baseURL+CompileProcedure, opts...),
		run:     connect.NewClient[RunRequest, RunResponse](httpClient, baseURL+RunProcedure, opts...),
	}
}

// Compile calls CompileService.Compile.
func (c *Client) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	res, err := c.compile.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// Run calls CompileService.Run.
func (c *Client) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	res, err := c.run.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
