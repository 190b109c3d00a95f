// Package api provides the WebSocket server and message dispatcher for the
// burnout assessment service.
//
// It upgrades connections on /ws, routes structured messages and binary media
// frames to the orchestrator, and serializes replies, including the uniform
// error envelope. Each connection runs on its own goroutine; one connection's
// slow collaborator call never blocks another connection.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/assessment"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/fhir"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/genai"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/media"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/orchestrator"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/store"
)

// DefaultAddr is the default API server listen address.
const DefaultAddr = ":8080"

// Opts holds API server configuration options.
type Opts struct {
	Addr       string
	FHIRExport bool
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithFHIRExport enables clinical-record export of completed assessments.
func WithFHIRExport(enabled bool) Option {
	return func(o *Opts) {
		o.FHIRExport = enabled
	}
}

// Server hosts the WebSocket endpoint and dispatches protocol messages.
type Server struct {
	addr        string
	orch        *orchestrator.Orchestrator
	uploader    media.Uploader
	fhirService *fhir.Service
	upgrader    websocket.Upgrader
}

// NewServer creates a server around the given collaborators. uploader and
// fhirService may be nil; the corresponding message paths then report a
// configuration error instead of crashing.
func NewServer(orch *orchestrator.Orchestrator, uploader media.Uploader, fhirService *fhir.Service, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:        cfg.Addr,
		orch:        orch,
		uploader:    uploader,
		fhirService: fhirService,
		upgrader: websocket.Upgrader{
			// Auth and origin policy are handled upstream of this core.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run constructs all modules from their options and starts the API server.
// This is the main entry point used by cmd.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, mediaOpts []media.Option, orchOpts []orchestrator.Option, apiOpts []Option) error {
	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	genaiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	worker := assessment.NewWorker(genaiClient)
	orch := orchestrator.New(st, worker, orchOpts...)
	orch.StartJanitor()
	defer orch.Close()

	uploader, err := buildUploader(mediaOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize media storage: %w", err)
	}

	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	var fhirService *fhir.Service
	if cfg.FHIRExport && uploader != nil {
		fhirService = fhir.NewService(uploader)
	} else if cfg.FHIRExport {
		slog.Warn("api.Run: FHIR export requested but media storage not configured, export disabled")
	}

	server := NewServer(orch, uploader, fhirService, apiOpts...)
	return server.Start()
}

// Start registers the routes and blocks serving connections.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	mux.HandleFunc("/health", s.healthHandler)

	slog.Info("Server.Start: API server listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("Server.healthHandler: failed to write response", "error", err)
	}
}

// buildStore selects a backend from the configured DSN: none means in-memory,
// otherwise the DSN shape decides between Postgres and SQLite.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("api.buildStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("api.buildStore: using Postgres store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Debug("api.buildStore: using SQLite store")
	return store.NewSQLiteStore(storeOpts...)
}

// buildUploader creates the S3 uploader when a bucket is configured; media
// messages are rejected with a configuration error otherwise.
func buildUploader(mediaOpts []media.Option) (media.Uploader, error) {
	var cfg media.Opts
	for _, opt := range mediaOpts {
		opt(&cfg)
	}
	if cfg.Bucket == "" {
		slog.Debug("api.buildUploader: no media bucket configured, uploads disabled")
		return nil, nil
	}
	return media.NewS3Uploader(context.Background(), mediaOpts...)
}
