package httpapi

import (
	"net/http"

	"github.com/vaultspace/artifactd/pkg/permission"
)

// identityFromRequest resolves the calling permission.User. Token
// parsing and session lookup are out of scope here (§1 scopes
// "user authentication/token parsing" to an external collaborator): any
// route accepts a bare user id via a "token" query parameter (the §6
// file-download form), then falls back to the X-User-Id header, treating
// a request with neither as anonymous.
func identityFromRequest(r *http.Request) permission.User {
	if id := r.URL.Query().Get("token"); id != "" {
		return permission.User{ID: id}
	}
	if id := r.Header.Get("X-User-Id"); id != "" {
		return permission.User{ID: id}
	}
	return permission.User{Anonymous: true}
}
