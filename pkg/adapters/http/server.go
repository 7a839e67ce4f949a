package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBody bounds walker request bodies.
const maxBody = 1 << 20

// Engine is the part of arbor.Engine the server drives.
type Engine interface {
	NewRoot(ctx context.Context) (domain.ID, error)
	Run(ctx context.Context, root, entry domain.ID, fn func(context.Context, *arbor.Context) error) error
	Spawn(ctx context.Context, root, entry domain.ID, walker domain.Architype) (*arbor.Result, error)
	Types() *arbor.Types
}

// Server holds the handlers.
type Server struct {
	Engine Engine
	Logger *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Post("/roots", s.CreateRoot)
	r.Route("/roots/{root}", func(r chi.Router) {
		r.Post("/walkers/{type}", s.SpawnWalker)
		r.Get("/anchors/{id}", s.GetAnchor)
		r.Delete("/anchors/{id}", s.DeleteAnchor)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RootResponse is returned by CreateRoot.
type RootResponse struct {
	ID domain.ID `json:"id"`
}

// SpawnResponse is returned by SpawnWalker.
type SpawnResponse struct {
	Walker  domain.Architype `json:"walker"`
	Reports []any            `json:"reports"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateRoot handles POST /roots.
func (s *Server) CreateRoot(w http.ResponseWriter, r *http.Request) {
	id, err := s.Engine.NewRoot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, RootResponse{ID: id})
}

// SpawnWalker handles POST /roots/{root}/walkers/{type}. The body, when
// present, is decoded into the new walker's fields.
func (s *Server) SpawnWalker(w http.ResponseWriter, r *http.Request) {
	root, ok := s.pathID(w, r, "root")
	if !ok {
		return
	}
	var entry domain.ID
	if raw := r.URL.Query().Get("entry"); raw != "" {
		id, err := domain.ParseID(raw)
		if err != nil {
			s.badRequest(w, err)
			return
		}
		entry = id
	}

	typ := chi.URLParam(r, "type")
	walker, err := s.Engine.Types().New(typ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, ok := domain.WalkerOf(walker); !ok {
		s.badRequest(w, fmt.Errorf("%s is not a walker", typ))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, walker); err != nil {
			s.badRequest(w, fmt.Errorf("invalid walker fields: %w", err))
			return
		}
	}

	res, err := s.Engine.Spawn(r.Context(), root, entry, walker)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reports := res.Reports
	if reports == nil {
		reports = []any{}
	}
	s.writeJSON(w, http.StatusOK, SpawnResponse{Walker: res.Walker, Reports: reports})
}

// GetAnchor handles GET /roots/{root}/anchors/{id}. Anchors the root cannot
// read are reported as missing.
func (s *Server) GetAnchor(w http.ResponseWriter, r *http.Request) {
	root, ok := s.pathID(w, r, "root")
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}

	var rec *domain.Record
	err := s.Engine.Run(r.Context(), root, "", func(ctx context.Context, x *arbor.Context) error {
		arch, err := x.Object(ctx, id)
		if err != nil {
			return err
		}
		rec, err = persistence.Encode(domain.AnchorOf(arch))
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// DeleteAnchor handles DELETE /roots/{root}/anchors/{id}. Without write
// access the anchor is left in place and 403 is returned.
func (s *Server) DeleteAnchor(w http.ResponseWriter, r *http.Request) {
	root, ok := s.pathID(w, r, "root")
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}

	denied := false
	err := s.Engine.Run(r.Context(), root, "", func(ctx context.Context, x *arbor.Context) error {
		arch, err := x.Object(ctx, id)
		if err != nil {
			return err
		}
		if !x.HasWriteAccess(ctx, arch) {
			denied = true
			return nil
		}
		return x.Destroy(ctx, arch)
	})
	switch {
	case err != nil:
		s.fail(w, r, err)
	case denied:
		s.writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "write access required"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, key string) (domain.ID, bool) {
	id, err := domain.ParseID(chi.URLParam(r, key))
	if err != nil {
		s.badRequest(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// fail maps engine errors to status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAnchorNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownType), errors.Is(err, domain.ErrInvalidOperand):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrCommitFailed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.Logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
