package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/orchestrator"
	"github.com/sells-group/outreach-cli/internal/worker"
)

var servePort int

// processRequest is the JSON body of a campaign submission. Lead file
// content travels base64-encoded (required for xlsx) or as plain CSV text.
type processRequest struct {
	orchestrator.CampaignInput

	FileBase64 string `json:"file_base64,omitempty"`
	CSVContent string `json:"csv_content,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// newRouter builds the submission API. Campaign processing is asynchronous:
// accepted requests are queued on the worker pool and the response carries
// the run id to poll.
func newRouter(e *env, pool *worker.Pool, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/campaigns/process", func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		input := req.CampaignInput
		switch {
		case req.FileBase64 != "":
			data, err := base64.StdEncoding.DecodeString(req.FileBase64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "file_base64 is not valid base64")
				return
			}
			input.Data = data
		case req.CSVContent != "":
			input.Data = []byte(req.CSVContent)
		}

		if input.RunID == "" {
			input.RunID = uuid.NewString()
		}

		if err := input.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job := worker.Job{
			RunID: input.RunID,
			Fn: func(ctx context.Context) {
				if err := e.Orch.ProcessCampaign(ctx, input); err != nil {
					zap.L().Error("campaign processing failed",
						zap.String("run_id", input.RunID),
						zap.String("campaign_id", input.CampaignID),
						zap.Error(err),
					)
				}
			},
		}
		if err := pool.Submit(job); err != nil {
			if errors.Is(err, worker.ErrQueueFull) {
				writeError(w, http.StatusServiceUnavailable, "processing queue is full, retry later")
				return
			}
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"run_id": input.RunID,
			"status": "accepted",
		})
	})

	r.Get("/api/runs/{runID}/status", func(w http.ResponseWriter, r *http.Request) {
		run, err := e.Orch.Status(r.Context(), chi.URLParam(r, "runID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read run")
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/campaigns/{campaignID}/results", func(w http.ResponseWriter, r *http.Request) {
		results, err := e.Orch.Results(r.Context(), chi.URLParam(r, "campaignID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read results")
			return
		}
		if results == nil {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	r.Get("/api/campaigns/{campaignID}/export", func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignID")
		csvText, err := e.Orch.ExportCSV(r.Context(), campaignID)
		if err != nil {
			writeError(w, http.StatusNotFound, "no results to export")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", campaignID+".csv"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(csvText))
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the campaign submission API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// Jobs outlive the signal context so accepted campaigns can drain
		// during shutdown.
		pool := worker.New(cfg.Server.Workers, cfg.Server.QueueDepth)
		pool.Start(context.Background())

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(e, pool, cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// Drain queued campaigns before closing the store.
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pool.Shutdown(drainCtx); err != nil {
			zap.L().Warn("worker pool shutdown", zap.Error(err))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
