package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/agencyrun/agency/internal/storage"
)

// buildServeCmd exposes a read-only HTTP view over a storage directory's
// persisted snapshots, distinct from the out-of-scope provider/tool HTTP
// wiring: it never accepts input that could drive a session, only lists and
// shows what's already on disk.
func buildServeCmd() *cobra.Command {
	var storageDir string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only introspection HTTP API over a storage directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveIntrospection(cmd, storageDir, addr)
		},
	}

	cmd.Flags().StringVar(&storageDir, "storage-dir", "", "session snapshot directory")
	cmd.Flags().StringVar(&addr, "addr", ":8787", "listen address")
	_ = cmd.MarkFlagRequired("storage-dir")
	return cmd
}

func serveIntrospection(cmd *cobra.Command, storageDir, addr string) error {
	store, err := storage.New(storageDir)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/sessions", listSessionsHandler(store))
	r.Get("/sessions/{id}", getSessionHandler(store))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx := cmd.Context()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func listSessionsHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := store.List(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
	}
}

func getSessionHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap, err := store.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, err)
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
