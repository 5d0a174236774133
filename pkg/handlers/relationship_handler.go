package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/services"
)

// RelationshipHandler handles relationship lifecycle endpoints.
type RelationshipHandler struct {
	service services.RelationshipService
	logger  *zap.Logger
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(service services.RelationshipService, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{service: service, logger: logger.Named("relationship_handler")}
}

// RegisterRoutes registers the relationship routes on the given mux.
func (h *RelationshipHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/relationships", h.SendRequest)
	mux.HandleFunc("GET /api/relationships", h.List)
	mux.HandleFunc("GET /api/relationships/status", h.Status)
	mux.HandleFunc("GET /api/relationships/{rid}", h.Get)
	mux.HandleFunc("POST /api/relationships/{rid}/accept", h.Accept)
	mux.HandleFunc("POST /api/relationships/{rid}/decline", h.Decline)
	mux.HandleFunc("POST /api/relationships/{rid}/end", h.End)
}

type sendRequestBody struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
}

// SendRequest handles POST /api/relationships.
func (h *RelationshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}

	var body sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Request body must be JSON with a receiver_id")
		return
	}
	if body.ReceiverID == uuid.Nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_receiver", "receiver_id is required")
		return
	}

	relationship, err := h.service.SendRequest(r.Context(), userID, body.ReceiverID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, relationship); err != nil {
		h.logger.Error("failed to encode relationship", zap.Error(err))
	}
}

// List handles GET /api/relationships.
func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}

	relationships, err := h.service.List(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"relationships": relationships}); err != nil {
		h.logger.Error("failed to encode relationships", zap.Error(err))
	}
}

// Status handles GET /api/relationships/status.
// Reports whether the calling user is currently paired.
func (h *RelationshipHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}

	paired, err := h.service.PairedStatus(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]bool{"paired": paired}); err != nil {
		h.logger.Error("failed to encode paired status", zap.Error(err))
	}
}

// Get handles GET /api/relationships/{rid}.
func (h *RelationshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseRelationshipID(w, r)
	if !ok {
		return
	}

	relationship, err := h.service.Get(r.Context(), relationshipID, userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, relationship); err != nil {
		h.logger.Error("failed to encode relationship", zap.Error(err))
	}
}

// Accept handles POST /api/relationships/{rid}/accept.
func (h *RelationshipHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseRelationshipID(w, r)
	if !ok {
		return
	}

	relationship, err := h.service.Accept(r.Context(), relationshipID, userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, relationship); err != nil {
		h.logger.Error("failed to encode relationship", zap.Error(err))
	}
}

// Decline handles POST /api/relationships/{rid}/decline.
func (h *RelationshipHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseRelationshipID(w, r)
	if !ok {
		return
	}

	if err := h.service.Decline(r.Context(), relationshipID, userID); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// End handles POST /api/relationships/{rid}/end.
func (h *RelationshipHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseRelationshipID(w, r)
	if !ok {
		return
	}

	relationship, err := h.service.End(r.Context(), relationshipID, userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, relationship); err != nil {
		h.logger.Error("failed to encode relationship", zap.Error(err))
	}
}
