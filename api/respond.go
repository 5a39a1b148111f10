package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/weekorder/weekorder/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// apiHandler is an HTTP handler that reports failures by returning them.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

type errorBody struct {
	Message string `json:"message"`
}

// handle adapts h to http.HandlerFunc and renders any returned error.
func (a *API) handle(h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			a.writeError(w, r, err)
		}
	}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateWeeklyOrder),
		errors.Is(err, core.ErrSubmissionInProgress),
		errors.Is(err, core.ErrConflictingUniqueValue):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case core.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := core.PublicMessage(err)

	if status >= http.StatusInternalServerError {
		a.logger.ErrorWithContext(r.Context(), "Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		message = "Internal server error"
	}

	writeJSON(w, status, errorBody{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(op, msg string) error {
	return &core.Error{Op: op, Kind: "request", Message: msg, Err: core.ErrInvalidInput}
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("api.decodeJSON", "Could not read request body.")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest("api.decodeJSON", "Invalid JSON body.")
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name, entity string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, &core.Error{Op: "api.pathID", Kind: entity, ID: raw, Message: entity + " not found.", Err: core.ErrNotFound}
	}
	return uint(id), nil
}
