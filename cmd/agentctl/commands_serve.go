package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lumenforge/conduit/internal/agent"
	"github.com/lumenforge/conduit/internal/config"
	"github.com/lumenforge/conduit/internal/observability"
	"github.com/lumenforge/conduit/internal/sessions"
	"github.com/lumenforge/conduit/pkg/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent control loop as a long-running HTTP service",
		Long: `serve starts an HTTP listener exposing:

  GET  /healthz  - liveness probe
  GET  /metrics  - Prometheus metrics
  POST /run      - run one control-loop turn, body {"session","agent","prompt"}

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := resolveConfigPath(configPathFlag)
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	asm, err := buildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	metrics := observability.NewMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		handleServeRun(w, r, cfg, asm, metrics)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	server := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("agentctl serve listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	slog.Info("agentctl serve stopped")
	return nil
}

type runRequest struct {
	Session string `json:"session"`
	Agent   string `json:"agent"`
	Prompt  string `json:"prompt"`
}

type runResponse struct {
	Text         string `json:"text"`
	Continuation string `json:"continuation_checkpoint,omitempty"`
}

func handleServeRun(w http.ResponseWriter, r *http.Request, cfg *config.Config, asm *assembled, metrics *observability.Metrics) {
	start := time.Now()
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	if req.Session == "" {
		req.Session = "default"
	}

	ctx := agent.WithToolPolicy(r.Context(), asm.resolver, asm.policy)

	session, err := asm.store.GetOrCreate(ctx, req.Session, req.Agent, models.SurfaceHTTP, req.Session)
	if err != nil {
		metrics.RecordError("surface", "open_session")
		http.Error(w, "open session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.SessionStarted(string(models.SurfaceHTTP))
	defer metrics.SessionEnded(string(models.SurfaceHTTP), time.Since(start).Seconds())

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Surface:   session.Surface,
		SurfaceID: session.SurfaceID,
		Role:      models.RoleUser,
		Direction: models.DirectionInbound,
		Content:   req.Prompt,
	}
	if err := asm.store.AppendMessage(ctx, session.ID, msg); err != nil {
		http.Error(w, "append prompt: "+err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.StepRecorded(string(models.SurfaceHTTP), string(models.DirectionInbound))

	chunks, err := asm.runtime.Process(ctx, session, msg)
	if err != nil {
		metrics.RecordRunAttempt("failed")
		http.Error(w, "start run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			metrics.RecordRunAttempt("failed")
			http.Error(w, chunk.Error.Error(), http.StatusInternalServerError)
			return
		}
		text.WriteString(chunk.Text)
	}
	metrics.StepRecorded(string(models.SurfaceHTTP), string(models.DirectionOutbound))
	metrics.RecordRunAttempt("success")

	resp := runResponse{Text: text.String()}
	if path, ok := sessions.ParseContinuationSentinel(strings.TrimSpace(text.String())); ok {
		resp.Continuation = path
		metrics.RecordContinuationCheckpoint()
	}

	if err := saveApprovalLedger(cfg, asm.gate); err != nil {
		slog.Error("failed to persist approval ledger", "error", err)
	}

	metrics.RecordHTTPRequest("POST", "/run", "200", time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
