// Package server exposes one interactive session over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/grounding"
	"github.com/ppiankov/originpoint/internal/history"
	"github.com/ppiankov/originpoint/internal/model"
	"github.com/ppiankov/originpoint/internal/render"
)

// maxUploadBytes bounds a multipart document upload
const maxUploadBytes = 20 << 20

// History is the read side of the interaction store
type History interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
	Get(ctx context.Context, id string) (*history.Entry, error)
}

type Server struct {
	session *controller.Controller
	history History // nil when disabled
	logger  *zap.Logger
}

func NewServer(session *controller.Controller, hist History, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{session: session, history: hist, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/modules", s.listModules)
	r.Get("/state", s.state)

	r.Post("/module", s.selectModule)
	r.Post("/query", s.submitQuery)
	r.Post("/scan", s.submitScan)

	r.Post("/conflicts/{id}/challenge", s.selectConflict)
	r.Put("/challenge", s.draftChallenge)
	r.Post("/challenge", s.submitChallenge)
	r.Delete("/challenge", s.cancelChallenge)

	r.Get("/history", s.listHistory)
	r.Get("/history/{id}", s.getHistory)

	return r
}

type moduleResponse struct {
	Name  model.Module `json:"name"`
	Title string       `json:"title"`
}

type moduleRequest struct {
	Module string `json:"module"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type challengeRequest struct {
	Evidence string `json:"evidence"`
}

type errorResponse struct {
	Error string              `json:"error"`
	State controller.Snapshot `json:"state"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	modules := model.Modules()
	out := make([]moduleResponse, len(modules))
	for i, m := range modules {
		out[i] = moduleResponse{Name: m, Title: render.ModuleTitle(m)}
	}
	writeJSON(w, map[string][]moduleResponse{"modules": out})
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Snapshot())
}

func (s *Server) selectModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.respond(w, s.session.SelectModule(model.Module(req.Module)))
}

func (s *Server) submitQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.respond(w, s.session.Submit(context.WithoutCancel(r.Context()), req.Query))
}

func (s *Server) submitScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "document field required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read document", http.StatusBadRequest)
		return
	}

	doc := model.Document{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}
	if doc.MIMEType == "application/octet-stream" {
		doc.MIMEType = ""
	}
	s.respond(w, s.session.SubmitDocument(context.WithoutCancel(r.Context()), doc))
}

func (s *Server) selectConflict(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.session.SelectConflict(chi.URLParam(r, "id")))
}

func (s *Server) submitChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.respond(w, s.session.SubmitChallenge(context.WithoutCancel(r.Context()), req.Evidence))
}

func (s *Server) draftChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.respond(w, s.session.DraftChallenge(req.Evidence))
}

func (s *Server) cancelChallenge(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.session.CancelChallenge())
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string][]history.Entry{"entries": entries})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	entry, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entry)
}

// respond writes the snapshot on success, the error and snapshot otherwise
func (s *Server) respond(w http.ResponseWriter, err error) {
	snap := s.session.Snapshot()
	if err == nil {
		writeJSON(w, snap)
		return
	}
	writeJSONStatus(w, errorResponse{Error: err.Error(), State: snap}, statusFor(err))
}

// statusFor maps controller and grounding errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrBusy), errors.Is(err, controller.ErrState):
		return http.StatusConflict
	case errors.Is(err, controller.ErrNoConflict):
		return http.StatusNotFound
	case errors.Is(err, grounding.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, grounding.ErrUpstream), errors.Is(err, grounding.ErrSchemaParse):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/health" {
			return
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}
