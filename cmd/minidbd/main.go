// Command minidbd is the network front door for the storage/execution
// engine: it accepts compiled plans over gRPC or HTTP and returns the
// executor's uniform {ok, rows, message, error} envelope (spec.md §6).
// It does not parse SQL — that front end is out of scope of this module
// (spec.md §1) — callers are expected to submit already-compiled
// plan.Node JSON, the same contract any SQL front end would target.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/minidb/engine/internal/catalog"
	"github.com/minidb/engine/internal/config"
	"github.com/minidb/engine/internal/executor"
	"github.com/minidb/engine/internal/plan"
	"github.com/minidb/engine/internal/storageadapter"
)

var (
	flagConfig     = flag.String("config", "", "path to a YAML config file (when set, replaces -data-dir; the listen and schedule flags still apply)")
	flagDataDir    = flag.String("data-dir", "./data", "root directory for all table files")
	flagHTTP       = flag.String("http", ":8080", "HTTP listen address (empty to disable)")
	flagGRPC       = flag.String("grpc", ":9090", "gRPC listen address (empty to disable)")
	flagCheckpoint = flag.String("checkpoint-cron", "*/30 * * * * *", "CRON schedule (seconds resolution) for the buffer-pool checkpoint flush")
	flagStatsLog   = flag.String("stats-cron", "0 * * * * *", "CRON schedule for the process-wide buffer-pool stats log")
)

// execRequest carries one compiled plan node plus a request id, assigned
// server-side with google/uuid the same way tinySQL uses the package for
// its own row/session identifiers.
type execRequest struct {
	RequestID string   `json:"request_id,omitempty"`
	Plan      planJSON `json:"plan"`
}

// planJSON is plan.Node with its JSON tag shape reused directly; kept as
// a distinct alias only so request/response envelopes read clearly.
type planJSON = plan.Node

type execResponse struct {
	RequestID string      `json:"request_id"`
	Result    plan.Result `json:"result"`
	Duration  string      `json:"duration"`
}

// server bundles one Engine with the request-handling surface (HTTP
// mux handlers, gRPC service implementation).
type server struct {
	eng *executor.Engine
}

func (s *server) runPlan(ctx context.Context, req execRequest) execResponse {
	start := time.Now()
	reqID := req.RequestID
	if reqID == "" {
		reqID = uuid.NewString()
	}
	res, err := s.eng.Execute(req.Plan)
	if err != nil {
		res = plan.Result{OK: false, Error: err.Error()}
	}
	return execResponse{RequestID: reqID, Result: res, Duration: time.Since(start).String()}
}

// --- HTTP surface ---

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.runPlan(r.Context(), req))
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":     true,
		"time":   time.Now().Format(time.RFC3339),
		"tables": s.eng.Sys.ListTables(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// --- gRPC surface ---
//
// Hand-rolled grpc.ServiceDesc + JSON codec, the same technique tinySQL
// uses in cmd/server/main.go instead of generating .pb.go stubs via
// protoc: this repo has no .proto file and no code generation step.

type jsonCodec struct{}

func (jsonCodec) Name() string                        { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)        { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error   { return json.Unmarshal(data, v) }

// MinidbServer is the gRPC-facing contract: one Execute RPC taking a
// compiled plan and returning the executor's result envelope.
type MinidbServer interface {
	Execute(context.Context, *execRequest) (*execResponse, error)
}

func (s *server) Execute(ctx context.Context, req *execRequest) (*execResponse, error) {
	resp := s.runPlan(ctx, *req)
	return &resp, nil
}

func registerMinidbServer(gs *grpc.Server, srv MinidbServer) {
	gs.RegisterService(&grpc.ServiceDesc{
		ServiceName: "minidb.Minidb",
		HandlerType: (*MinidbServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Execute", Handler: executeHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "minidb",
	}, srv)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(execRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinidbServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/minidb.Minidb/Execute"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MinidbServer).Execute(ctx, req.(*execRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCClient is a thin convenience wrapper around the hand-rolled JSON
// codec for callers (tests, tooling) that want to dial minidbd without
// pulling in generated stubs.
func GRPCClient(addr string) (func(context.Context, execRequest) (execResponse, error), func() error, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, nil, err
	}
	call := func(ctx context.Context, req execRequest) (execResponse, error) {
		var resp execResponse
		if err := conn.Invoke(ctx, "/minidb.Minidb/Execute", &req, &resp); err != nil {
			return execResponse{}, err
		}
		return resp, nil
	}
	return call, conn.Close, nil
}

func main() {
	flag.Parse()

	cfg := config.Config{
		DataDir:            *flagDataDir,
		BufferPoolCapacity: config.DefaultBufferPoolCapacity,
		BufferPoolPolicy:   config.DefaultBufferPoolPolicy,
		BPTreeOrder:        config.DefaultBPTreeOrder,
	}
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			log.Fatalf("minidbd: %v", err)
		}
		cfg = loaded
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("minidbd: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("minidbd: create data dir %s: %v", cfg.DataDir, err)
	}

	sa := storageadapter.New(cfg.DataDir, cfg.PageSize, cfg.BufferPoolCapacity, cfg.Policy())
	eng, err := executor.New(sa, cfg.DataDir, cfg.BPTreeOrder)
	if err != nil {
		log.Fatalf("minidbd: init engine: %v", err)
	}
	srv := &server{eng: eng}

	sched := catalog.NewScheduler()
	if *flagCheckpoint != "" {
		if err := sched.AddCheckpoint(*flagCheckpoint, sa.FlushAll); err != nil {
			log.Printf("minidbd: %v", err)
		}
	}
	if *flagStatsLog != "" {
		if err := sched.AddStatsLog(*flagStatsLog); err != nil {
			log.Printf("minidbd: %v", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	encoding.RegisterCodec(jsonCodec{})

	if *flagGRPC != "" {
		go func() {
			lis, err := net.Listen("tcp", *flagGRPC)
			if err != nil {
				log.Printf("minidbd: gRPC listen: %v", err)
				return
			}
			gs := grpc.NewServer()
			registerMinidbServer(gs, srv)
			log.Printf("minidbd: gRPC listening on %s", *flagGRPC)
			if err := gs.Serve(lis); err != nil {
				log.Printf("minidbd: gRPC serve: %v", err)
			}
		}()
	}

	if *flagHTTP == "" {
		select {}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/execute", srv.handleExecute)
	mux.HandleFunc("/api/status", srv.handleStatus)
	log.Printf("minidbd: HTTP listening on %s", *flagHTTP)
	if err := http.ListenAndServe(*flagHTTP, mux); err != nil {
		log.Fatalf("minidbd: HTTP serve: %v", err)
	}
}
