package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspect-cli/internal/model"
	"github.com/sells-group/inspect-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline()
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API: health, report history, and an SSE analysis
// endpoint.
func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Post("/v1/analyze", handleAnalyze(env))
	r.Get("/v1/runs", handleListRuns(env.Store))
	r.Get("/v1/runs/{runID}", handleGetRun(env.Store))

	return r
}

// handleAnalyze reads the document from the request body and streams progress
// events over SSE while the pipeline runs. The terminal event carries the
// compiled report.
func handleAnalyze(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
		if err != nil {
			http.Error(w, `{"error":"failed to read document body"}`, http.StatusBadRequest)
			return
		}
		if len(doc) == 0 {
			http.Error(w, `{"error":"request body is empty"}`, http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
			return
		}

		runID := r.URL.Query().Get("run_id")
		if runID == "" {
			runID = uuid.NewString()
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Run-ID", runID)
		w.WriteHeader(http.StatusOK)

		// Research-stage events arrive from concurrent per-finding
		// goroutines; the ResponseWriter is not safe for concurrent use.
		var mu sync.Mutex
		env.Pipeline.Run(r.Context(), doc, runID, func(ev model.ProgressEvent) {
			payload, err := json.Marshal(ev)
			if err != nil {
				return
			}
			mu.Lock()
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			mu.Unlock()
		})
	}
}

// runSummary is the list-view projection of a report record.
type runSummary struct {
	RunID           string          `json:"run_id"`
	PropertyAddress string          `json:"property_address"`
	InspectionDate  string          `json:"inspection_date"`
	Status          model.RunStatus `json:"status"`
	CreatedAt       string          `json:"created_at"`
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := st.ListReports(r.Context(), 100)
		if err != nil {
			zap.L().Error("serve: list runs failed", zap.Error(err))
			http.Error(w, `{"error":"failed to list runs"}`, http.StatusInternalServerError)
			return
		}

		out := make([]runSummary, 0, len(recs))
		for _, rec := range recs {
			out = append(out, runSummary{
				RunID:           rec.RunID,
				PropertyAddress: rec.PropertyAddress,
				InspectionDate:  rec.InspectionDate,
				Status:          rec.Status,
				CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := st.GetReport(r.Context(), chi.URLParam(r, "runID"))
		if err != nil {
			http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rec)
	}
}
