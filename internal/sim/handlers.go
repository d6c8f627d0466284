package sim

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/store"
	"github.com/atmx/ddp-sim/internal/validation"
)

// Routes mounts the session API on r. The caller adds /health, /metrics
// and the WebSocket endpoint.
func (s *Service) Routes(r chi.Router) {
	r.Post("/allocation", s.HandleAllocation)

	r.Get("/sessions", s.HandleListSessions)
	r.Post("/sessions", s.HandleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.HandleGetSession)
		r.Delete("/", s.HandleDeleteSession)
		r.Put("/config", s.HandleReconfigure)
		r.Get("/pool", s.HandleGetPool)
		r.Get("/participants/{participantID}", s.HandleGetParticipant)
		r.Post("/operations/preview", s.HandlePreview)
		r.Post("/operations", s.HandleExecute)
	})
}

// --- HTTP Handlers ---

// HandleAllocation handles POST /api/v1/allocation
// Computes an allocation preview; nothing is stored.
func (s *Service) HandleAllocation(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := s.Allocate(raw)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreateSession handles POST /api/v1/sessions
func (s *Service) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	view, err := s.CreateSession(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleListSessions handles GET /api/v1/sessions
func (s *Service) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.ListSessions(r.Context())
	if err != nil {
		writeError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// HandleGetSession handles GET /api/v1/sessions/{sessionID}
func (s *Service) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleReconfigure handles PUT /api/v1/sessions/{sessionID}/config
func (s *Service) HandleReconfigure(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	view, err := s.Reconfigure(r.Context(), chi.URLParam(r, "sessionID"), raw)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleDeleteSession handles DELETE /api/v1/sessions/{sessionID}
func (s *Service) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPool handles GET /api/v1/sessions/{sessionID}/pool
func (s *Service) HandleGetPool(w http.ResponseWriter, r *http.Request) {
	state, err := s.Pool(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleGetParticipant handles
// GET /api/v1/sessions/{sessionID}/participants/{participantID}
func (s *Service) HandleGetParticipant(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(chi.URLParam(r, "participantID"))
	if err != nil {
		writeError(w, "participant id must be an integer", http.StatusBadRequest)
		return
	}
	pf, err := s.Portfolio(r.Context(), chi.URLParam(r, "sessionID"), pid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// HandlePreview handles POST /api/v1/sessions/{sessionID}/operations/preview
// Quotes the operation without mutating the session.
func (s *Service) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var op model.Operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := s.Preview(r.Context(), chi.URLParam(r, "sessionID"), op)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleExecute handles POST /api/v1/sessions/{sessionID}/operations
func (s *Service) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var op model.Operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := s.Execute(r.Context(), chi.URLParam(r, "sessionID"), op)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Error mapping ---

// statusFor maps an error to its HTTP status. Request-shape errors win over
// state errors when an error carries both kinds.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, validation.ErrUnknownParticipant):
		return http.StatusNotFound
	case errors.Is(err, validation.ErrConfig), errors.Is(err, validation.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, validation.ErrInsufficientBalance),
		errors.Is(err, validation.ErrDivisionByZero),
		errors.Is(err, validation.ErrPriceImpactExceeded):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// errorKind is the metrics label for an error.
func errorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, validation.ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, validation.ErrConfig):
		return "config"
	case errors.Is(err, validation.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, validation.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, validation.ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, validation.ErrPriceImpactExceeded):
		return "price_impact"
	}
	return "internal"
}

// readBody returns the raw request body; an empty body is allowed.
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(data) > 0 && !json.Valid(data) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		msg = "internal error"
	}
	writeError(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
