package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// problem is an RFC 7807-flavored error body, matching the shape the
// rest of the corpus's HTTP handlers already emit.
type problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// writeProblem maps err to a status code via internal/errors and
// writes it as a problem+json body. Any error that isn't an AppError is
// treated as an unclassified internal failure.
func writeProblem(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	if appErr, ok := err.(*apperrors.AppError); ok {
		status = appErr.StatusCode
		kind = string(appErr.Type)
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{Type: kind, Detail: err.Error()})
}

// invalidQuery wraps a malformed-request-parameter failure as a
// validation AppError so writeProblem maps it to 400.
func invalidQuery(message string) error {
	return apperrors.NewValidationError(message)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
