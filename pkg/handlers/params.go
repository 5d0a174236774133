package handlers

import (
	"net/http"

	"github.com/google/uuid"
)

// userIDHeader carries the acting user's id. Authentication happens upstream;
// this service trusts the header the gateway injects.
const userIDHeader = "X-User-ID"

// ActingUserID extracts the acting user id from the request headers.
// Returns uuid.Nil and false after writing a 401 when the header is missing
// or malformed.
func ActingUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		_ = ErrorResponse(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "invalid_user", "X-User-ID header must be a UUID")
		return uuid.Nil, false
	}
	return userID, true
}

// ParseRelationshipID extracts and validates the relationship ID from the
// request path. Writes a 400 and returns false on failure.
// Expects path parameter: rid
func ParseRelationshipID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUID(w, r, "rid", "invalid_relationship_id", "Invalid relationship ID format")
}

// ParseSessionID extracts and validates the session ID from the request path.
// Expects path parameter: sid
func ParseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUID(w, r, "sid", "invalid_session_id", "Invalid session ID format")
}

// ParseNotificationID extracts and validates the notification ID from the
// request path. Expects path parameter: nid
func ParseNotificationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUID(w, r, "nid", "invalid_notification_id", "Invalid notification ID format")
}

func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(pathParam))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage)
		return uuid.Nil, false
	}
	return id, true
}
