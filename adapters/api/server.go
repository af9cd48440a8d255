package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"zebrabmd/adapters/stats/models"
	"zebrabmd/domain/core"
	"zebrabmd/internal"
	"zebrabmd/internal/analysis/benchmark"
	"zebrabmd/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Server exposes single-unit estimation over HTTP
type Server struct {
	router   *chi.Mux
	engine   *benchmark.Engine
	registry *models.Registry
	logger   *internal.Logger
}

// NewServer wires the routes. A nil registry means the default model library.
func NewServer(engine *benchmark.Engine, registry *models.Registry, logger *internal.Logger) *Server {
	if registry == nil {
		registry = models.NewRegistry()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:   chi.NewRouter(),
		engine:   engine,
		registry: registry,
		logger:   logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	requestLog := slog.NewLogLogger(s.logger.Slog().Handler(), slog.LevelDebug)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: requestLog, NoColor: true}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, errors.NotFound("route "+r.URL.Path))
	})
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/fit", s.handleFit)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	var out []ModelInfo
	for _, name := range s.engine.Models() {
		m, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, ModelInfo{Name: m.Name(), Description: m.Description(), Params: m.ParamNames()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var req FitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.InvalidInput("malformed request body: "+err.Error()))
		return
	}

	series, err := req.Series()
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.engine.Analyze(series)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Debug("fit %s qc=%d code=%s", series.Key, result.QCFlag, result.Summary.AnalysisCode)
	writeJSON(w, http.StatusOK, NewUnitResponse(result))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch {
	case core.IsInputError(err):
		code, status = errors.CodeInvalidInput, http.StatusBadRequest
	case code == errors.CodeInvalidInput:
		status = http.StatusBadRequest
	case code == errors.CodeNotFound:
		status = http.StatusNotFound
	default:
		s.logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
