package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/services"
)

// CompatibilityHandler handles test sessions, submissions, and results.
type CompatibilityHandler struct {
	sessions services.SessionService
	scoring  services.ScoringService
	logger   *zap.Logger
}

// NewCompatibilityHandler creates a new CompatibilityHandler.
func NewCompatibilityHandler(sessions services.SessionService, scoring services.ScoringService, logger *zap.Logger) *CompatibilityHandler {
	return &CompatibilityHandler{
		sessions: sessions,
		scoring:  scoring,
		logger:   logger.Named("compatibility_handler"),
	}
}

// RegisterRoutes registers the compatibility routes on the given mux.
func (h *CompatibilityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/compatibility/questions", h.Questions)
	mux.HandleFunc("POST /api/compatibility/test/{rid}", h.Start)
	mux.HandleFunc("GET /api/compatibility/test/{rid}", h.State)
	mux.HandleFunc("POST /api/compatibility/submit/{sid}", h.Submit)
	mux.HandleFunc("GET /api/compatibility/result/{sid}", h.Result)
	mux.HandleFunc("GET /api/compatibility/top-couples", h.TopCouples)
}

// Questions handles GET /api/compatibility/questions.
func (h *CompatibilityHandler) Questions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.sessions.Questions(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"questions": questions}); err != nil {
		h.logger.Error("failed to encode questions", zap.Error(err))
	}
}

// Start handles POST /api/compatibility/test/{rid}.
// Returns the session for the relationship, creating it if needed.
func (h *CompatibilityHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseRelationshipID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.StartOrResume(r.Context(), relationshipID, userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, session); err != nil {
		h.logger.Error("failed to encode session", zap.Error(err))
	}
}

// State handles GET /api/compatibility/test/{rid}.
// Returns the session plus the calling user's own responses for resume.
func (h *CompatibilityHandler) State(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseRelationshipID(w, r)
	if !ok {
		return
	}

	state, err := h.sessions.State(r.Context(), relationshipID, userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, state); err != nil {
		h.logger.Error("failed to encode test state", zap.Error(err))
	}
}

type submitBody struct {
	Responses []services.SubmitItem `json:"responses"`
}

// Submit handles POST /api/compatibility/submit/{sid}.
// The session id comes from starting the test.
func (h *CompatibilityHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := ParseSessionID(w, r)
	if !ok {
		return
	}

	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Request body must be JSON with a responses array")
		return
	}

	outcome, err := h.scoring.SubmitBatch(r.Context(), sessionID, userID, body.Responses)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, outcome); err != nil {
		h.logger.Error("failed to encode submit outcome", zap.Error(err))
	}
}

// Result handles GET /api/compatibility/result/{sid}.
func (h *CompatibilityHandler) Result(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := ParseSessionID(w, r)
	if !ok {
		return
	}

	result, err := h.scoring.Result(r.Context(), sessionID, userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to encode result", zap.Error(err))
	}
}

// TopCouples handles GET /api/compatibility/top-couples.
// Accepts an optional limit query parameter, default 10.
func (h *CompatibilityHandler) TopCouples(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}

	couples, err := h.scoring.TopCouples(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"top_couples": couples}); err != nil {
		h.logger.Error("failed to encode top couples", zap.Error(err))
	}
}
