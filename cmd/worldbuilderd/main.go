// Command worldbuilderd runs the landscape editing engine behind a small
// HTTP surface: document creation and inspection, grouped undo/redo, and
// snapshot export, with prometheus metrics on /metrics. The store backend is
// selected through WORLDBUILDER_STORE_DRIVER (memory, sqlite, postgres) and
// the snapshot backend through the WORLDBUILDER_BLOB_* variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"worldbuilder/internal/blob"
	"worldbuilder/internal/core"
	"worldbuilder/internal/infra/persistence/memory"
	"worldbuilder/internal/infra/persistence/postgres"
	"worldbuilder/internal/infra/persistence/sqlite"
	"worldbuilder/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("worldbuilderd: %v", err)
	}
}

type stdLogger struct{}

func (stdLogger) Logf(format string, args ...any) { log.Printf(format, args...) }

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshots, err := blob.Open(ctx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return err
	}

	cache := core.NewDocumentCache(store, core.DefaultCacheConfig(), metrics, stdLogger{})
	defer cache.Close()

	userID := envOr("WORLDBUILDER_USER", "local")
	svc := core.NewEditorService(userID, cache, store, core.WithMetrics(metrics))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	registerAPI(mux, svc, snapshots)

	srv := &http.Server{
		Addr:              envOr("WORLDBUILDER_ADDR", ":8080"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("listening on %s", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func openStore(ctx context.Context) (domain.DocumentStore, error) {
	driver := strings.ToLower(envOr("WORLDBUILDER_STORE_DRIVER", "memory"))
	switch driver {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite":
		return sqlite.NewStore(envOr("WORLDBUILDER_SQLITE_PATH", "worldbuilder.db"))
	case "postgres":
		return postgres.NewStore(ctx, os.Getenv("WORLDBUILDER_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type createDocumentRequest struct {
	Name      string `json:"name"`
	MapWidth  uint32 `json:"map_width"`
	MapHeight uint32 `json:"map_height"`
}

type createDocumentResponse struct {
	DocumentID  string `json:"document_id"`
	BaseLayerID string `json:"base_layer_id"`
}

func registerAPI(mux *http.ServeMux, svc *core.EditorService, snapshots blob.Store) {
	mux.HandleFunc("POST /documents", func(w http.ResponseWriter, r *http.Request) {
		var req createDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.MapWidth == 0 || req.MapHeight == 0 {
			http.Error(w, "map_width and map_height are required", http.StatusBadRequest)
			return
		}
		cmd := core.NewCreateLandscapeDocumentCommand(svc.UserID(), req.Name, domain.TerrainInfo{
			MapWidth:  req.MapWidth,
			MapHeight: req.MapHeight,
		})
		if err := svc.Execute(r.Context(), cmd); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createDocumentResponse{
			DocumentID:  cmd.M.DocumentID,
			BaseLayerID: cmd.BaseLayerID,
		})
	})

	mux.HandleFunc("GET /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		rental, err := svc.Cache().Rent(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		defer rental.Release()
		writeJSON(w, http.StatusOK, rental.Document())
	})

	mux.HandleFunc("POST /undo", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Undo(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /redo", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Redo(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /documents/{id}/snapshots", func(w http.ResponseWriter, r *http.Request) {
		rental, err := svc.Cache().Rent(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		defer rental.Release()
		artifact, err := core.ExportSnapshot(r.Context(), rental.Document(), snapshots)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, artifact)
	})

	mux.HandleFunc("GET /documents/{id}/snapshots", func(w http.ResponseWriter, r *http.Request) {
		artifacts, err := core.ListSnapshots(r.Context(), snapshots, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, artifacts)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsNotFound(err) || errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case domain.IsConflict(err) || errors.Is(err, blob.ErrExists):
		status = http.StatusConflict
	case domain.IsArgument(err):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
