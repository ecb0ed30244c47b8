package main

import (
	"context"
	"encoding/json"
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

	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/identity"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/registry"
	"github.com/sells-group/nip-resolver/internal/router"
	"github.com/sells-group/nip-resolver/internal/store"
)

// traceResolver is the part of the router the HTTP API drives.
type traceResolver interface {
	Resolve(ctx context.Context, raw string, opts ...router.RunOption) *model.Trace
}

// traceStore is the part of the store the HTTP API needs.
type traceStore interface {
	SaveTrace(ctx context.Context, t *model.Trace) error
	GetTrace(ctx context.Context, id uuid.UUID) (*model.Trace, error)
}

// api serves the resolver over HTTP. Every resolved trace is persisted.
type api struct {
	resolver traceResolver
	traces   traceStore
	scorer   *evidence.Scorer
	registry registry.Lookup
	contacts identity.Store
}

func newAPI(env *resolverEnv) *api {
	return &api{
		resolver: env.Router,
		traces:   env.Store,
		scorer:   env.Scorer,
		registry: env.Registry,
		contacts: env.CRM,
	}
}

type resolveRequest struct {
	Text       string `json:"text"`
	SkipCRM    bool   `json:"skip_crm"`
	SkipSearch bool   `json:"skip_search"`
}

// buildMux wires the routes and middleware.
func buildMux(a *api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", a.handleResolve)
		r.Post("/score", a.handleScore)
		r.Post("/match", a.handleMatch)
		r.Get("/traces/{id}", a.handleGetTrace)
	})
	return r
}

func (a *api) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	t := a.resolver.Resolve(r.Context(), req.Text,
		router.SkipCRM(req.SkipCRM),
		router.SkipSearch(req.SkipSearch),
	)

	if err := a.traces.SaveTrace(r.Context(), t); err != nil {
		zap.L().Error("serve: save trace failed",
			zap.String("trace_id", t.ID.String()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusOK, t)
}

func (a *api) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := scoreNIP(r.Context(), a.scorer, a.registry, req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleMatch(w http.ResponseWriter, r *http.Request) {
	var t identity.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if t.Empty() {
		writeError(w, http.StatusBadRequest, "at least one of email, phone, first_name, last_name, parent_id is required")
		return
	}

	writeJSON(w, http.StatusOK, identity.NewMatcher(a.contacts).Match(r.Context(), t))
}

func (a *api) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trace id")
		return
	}

	t, err := a.traces.GetTrace(r.Context(), id)
	switch {
	case eris.Is(err, store.ErrTraceNotFound):
		writeError(w, http.StatusNotFound, "trace not found")
	case err != nil:
		zap.L().Error("serve: get trace failed", zap.String("trace_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "trace lookup failed")
	default:
		writeJSON(w, http.StatusOK, t)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP resolution API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initResolver(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildMux(newAPI(env)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("serve: listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
