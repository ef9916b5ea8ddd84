package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/chazu/blockjit/cache"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const testProject = `{
  "targets": [
    {
      "isStage": true,
      "name": "Stage",
      "variables": {"v1": ["score", 0]},
      "lists": {},
      "broadcasts": {},
      "blocks": {}
    },
    {
      "isStage": false,
      "name": "Cat",
      "variables": {},
      "lists": {},
      "blocks": {
        "h1": {"opcode": "event_whenflagclicked", "next": "s1", "parent": null,
               "inputs": {}, "fields": {}, "shadow": false, "topLevel": true},
        "s1": {"opcode": "looks_say", "next": "c1", "parent": "h1",
               "inputs": {"MESSAGE": [1, [10, "hello"]]}, "fields": {}, "shadow": false, "topLevel": false},
        "c1": {"opcode": "data_changevariableby", "next": "s2", "parent": "s1",
               "inputs": {"VALUE": [1, [4, "3"]]}, "fields": {"VARIABLE": ["score", "v1"]},
               "shadow": false, "topLevel": false},
        "s2": {"opcode": "looks_say", "next": null, "parent": "c1",
               "inputs": {"MESSAGE": [3, [12, "score", "v1"], [10, ""]]}, "fields": {},
               "shadow": false, "topLevel": false},
        "h2": {"opcode": "event_whenflagclicked", "next": "bad", "parent": null,
               "inputs": {}, "fields": {}, "shadow": false, "topLevel": true},
        "bad": {"opcode": "pen_clear", "next": null, "parent": "h2",
                "inputs": {}, "fields": {}, "shadow": false, "topLevel": false}
      }
    }
  ]
}`

func newTestService(t *testing.T) (*Service, *cache.Cache) {
	t.Helper()
	c := cache.New(cache.NewMemoryStore())
	svc := NewService(Config{Cache: c, Parallelism: 2})
	t.Cleanup(svc.Close)
	return svc, c
}

func newConnectClient(t *testing.T, svc *Service) *Client {
	t.Helper()
	path, handler := NewConnectHandler(svc)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return NewClient(ts.Client(), ts.URL)
}

func newGRPCClient(t *testing.T, svc *Service) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterGRPC(gs, svc)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewGRPCClient(conn)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestService_Compile(t *testing.T) {
	svc, c := newTestService(t)
	res, err := svc.Compile(context.Background(), &CompileRequest{RequestID: "r1", Project: []byte(testProject)})
	if err != nil {
		t.Fatal(err)
	}
	if res.RequestID != "r1" {
		t.Errorf("request id = %q", res.RequestID)
	}
	if len(res.Scripts) != 1 || res.Scripts[0].ScriptID != "h1" || res.Scripts[0].Target != "Cat" {
		t.Fatalf("scripts = %+v", res.Scripts)
	}
	if !strings.Contains(res.Scripts[0].Source, "target.say(") {
		t.Errorf("source:\n%s", res.Scripts[0].Source)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	e := res.Errors[0]
	if e.ScriptID != "h2" || e.Kind != "unknown opcode" || e.Opcode != "pen_clear" || e.BlockID != "bad" {
		t.Errorf("error = %+v", e)
	}

	if _, err := svc.Compile(context.Background(), &CompileRequest{Project: []byte(testProject)}); err != nil {
		t.Fatal(err)
	}
	if st := c.Stats(); st.Hits != 1 {
		t.Errorf("second compile missed the cache: %+v", st)
	}
}

func TestService_CompileGeneratesRequestID(t *testing.T) {
	svc, _ := newTestService(t)
	a, err := svc.Compile(context.Background(), &CompileRequest{Project: []byte(testProject)})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := svc.Compile(context.Background(), &CompileRequest{Project: []byte(testProject)})
	if a.RequestID == "" || a.RequestID == b.RequestID {
		t.Errorf("request ids %q and %q", a.RequestID, b.RequestID)
	}
}

func TestService_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name string
		req  *CompileRequest
		want error
	}{
		{"no project", &CompileRequest{}, ErrInvalidArgument},
		{"bad json", &CompileRequest{Project: []byte("{")}, ErrInvalidArgument},
		{"unknown extension", &CompileRequest{Project: []byte(testProject), Extensions: []string{"nope"}}, ErrInvalidArgument},
		{"unknown target", &CompileRequest{Project: []byte(testProject), Targets: []string{"Dog"}}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Compile(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_TargetFilter(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Compile(context.Background(), &CompileRequest{Project: []byte(testProject), Targets: []string{"Stage"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Scripts) != 0 || len(res.Errors) != 0 {
		t.Errorf("stage has no scripts, got %+v %+v", res.Scripts, res.Errors)
	}
}

func TestService_Run(t *testing.T) {
	svc, _ := newTestService(t)
	for _, eng := range []string{"vm", "js"} {
		res, err := svc.Run(context.Background(), &RunRequest{Project: []byte(testProject), Engine: eng})
		if err != nil {
			t.Fatal(err)
		}
		want := "Cat: say \"hello\"\nCat: say \"3\""
		if got := strings.Join(res.Log, "\n"); got != want {
			t.Errorf("%s log:\n%s", eng, got)
		}
		if len(res.Scripts) != 2 || res.Scripts[1].Error == "" {
			t.Errorf("%s scripts = %+v", eng, res.Scripts)
		}
	}
	if _, err := svc.Run(context.Background(), &RunRequest{Project: []byte(testProject), Engine: "wasm"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown engine: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Transports
// ---------------------------------------------------------------------------

func TestConnect_Compile(t *testing.T) {
	svc, _ := newTestService(t)
	client := newConnectClient(t, svc)

	res, err := client.Compile(context.Background(), &CompileRequest{RequestID: "abc", Project: []byte(testProject), Warp: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.RequestID != "abc" || len(res.Scripts) != 1 || !res.Scripts[0].Warp {
		t.Errorf("response = %+v", res)
	}

	_, err = client.Compile(context.Background(), &CompileRequest{})
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty request: code %v, err %v", connect.CodeOf(err), err)
	}
	_, err = client.Compile(context.Background(), &CompileRequest{Project: []byte(testProject), Targets: []string{"Dog"}})
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("unknown target: code %v", connect.CodeOf(err))
	}
}

func TestConnect_RequestIDHeader(t *testing.T) {
	svc, _ := newTestService(t)
	path, handler := NewConnectHandler(svc)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := connect.NewClient[CompileRequest, CompileResponse](ts.Client(), ts.URL+CompileProcedure, connect.WithCodec(Codec{}))
	req := connect.NewRequest(&CompileRequest{Project: []byte(testProject)})
	req.Header().Set(RequestIDHeader, "from-header")
	res, err := client.CallUnary(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Msg.RequestID != "from-header" || res.Header().Get(RequestIDHeader) != "from-header" {
		t.Errorf("id %q, header %q", res.Msg.RequestID, res.Header().Get(RequestIDHeader))
	}
}

func TestConnect_Run(t *testing.T) {
	svc, _ := newTestService(t)
	client := newConnectClient(t, svc)
	res, err := client.Run(context.Background(), &RunRequest{Project: []byte(testProject), Engine: "vm", Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Log) != 2 || res.RequestID == "" {
		t.Errorf("response = %+v", res)
	}
}

func TestGRPC_CompileAndRun(t *testing.T) {
	svc, _ := newTestService(t)
	client := newGRPCClient(t, svc)

	var header metadata.MD
	res, err := client.Compile(context.Background(), &CompileRequest{RequestID: "g1", Project: []byte(testProject)}, grpc.Header(&header))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Scripts) != 1 || len(res.Errors) != 1 {
		t.Errorf("response = %+v", res)
	}
	if got := header.Get(grpcRequestIDKey); len(got) != 1 || got[0] != "g1" {
		t.Errorf("request id header = %v", got)
	}

	run, err := client.Run(context.Background(), &RunRequest{Project: []byte(testProject)})
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Log) != 2 {
		t.Errorf("log = %v", run.Log)
	}

	_, err = client.Compile(context.Background(), &CompileRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty request: %v", err)
	}
}

func TestServer_Healthz(t *testing.T) {
	svc, _ := newTestService(t)
	srv := New(svc)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d", resp.StatusCode)
	}

	client := NewClient(ts.Client(), ts.URL+"/")
	if _, err := client.Compile(context.Background(), &CompileRequest{Project: []byte(testProject)}); err != nil {
		t.Errorf("compile through server mux: %v", err)
	}
}

func TestCodec(t *testing.T) {
	in := &CompileRequest{RequestID: "x", Project: []byte{1, 2}, Targets: []string{"A"}}
	data, err := Codec{}.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out CompileRequest
	if err := (Codec{}).Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.RequestID != "x" || len(out.Project) != 2 || out.Targets[0] != "A" {
		t.Errorf("decoded %+v", out)
	}
	if err := (Codec{}).Unmarshal([]byte{0xff}, &out); err == nil {
		t.Error("garbage decoded")
	}
}
