package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, api.Error{
		Error:   code,
		Message: message,
		Path:    r.URL.Path,
		TS:      time.Now().UTC(),
	})
}

// decodeBody reads a JSON request body into v. It writes a 400
// MALFORMED_JSON response and returns false when the body does not parse.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, api.CodeMalformedJSON, "Malformed JSON request body")
		return false
	}
	return true
}

// writeError maps a service error onto its HTTP status and body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		conflict     *services.ConflictError
		wip          *services.WIPLimitError
		validation   *services.ValidationError
		notFound     *services.NotFoundError
		forbidden    *services.ForbiddenError
		unauthorized *services.UnauthorizedError
		expired      *services.InviteExpiredError
	)

	switch {
	case errors.As(err, &conflict):
		latest := conflict.Latest
		writeJSON(w, http.StatusConflict, api.ConflictResponse{
			Code:    api.CodeVersionConflict,
			Message: "Card was modified by someone else",
			Latest:  &latest,
		})
	case errors.As(err, &wip):
		writeJSON(w, http.StatusConflict, api.Error{
			Error:   api.CodeWIPLimit,
			Message: wip.Error(),
			Path:    r.URL.Path,
			TS:      time.Now().UTC(),
			Details: map[string]any{"limit": wip.Limit, "listId": wip.ListID},
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, api.Error{
			Error:       api.CodeValidation,
			Message:     "Request validation failed",
			Path:        r.URL.Path,
			TS:          time.Now().UTC(),
			FieldErrors: validation.Fields,
		})
	case errors.As(err, &notFound):
		writeAPIError(w, r, http.StatusNotFound, notFound.Code, notFound.Message)
	case errors.As(err, &expired):
		writeAPIError(w, r, http.StatusConflict, api.CodeInviteExpired, expired.Error())
	case errors.As(err, &forbidden):
		code := forbidden.Code
		if code == "" {
			code = api.CodeForbidden
		}
		writeAPIError(w, r, http.StatusForbidden, code, forbidden.Message)
	case errors.As(err, &unauthorized):
		writeAPIError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, unauthorized.Message)
	default:
		log.Printf("Error handling %s %s: %v", r.Method, r.URL.Path, err)
		writeAPIError(w, r, http.StatusInternalServerError, api.CodeInternal, "Internal server error")
	}
}
