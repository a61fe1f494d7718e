// Package httpapi exposes pkg/artifact.Controller over the three HTTP
// endpoints §6 names, plus a liveness route. Every error
// returned by the controller is mapped to a problem+json body here;
// pkg/artifact itself stays transport-agnostic.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/artifact"
	"github.com/vaultspace/artifactd/pkg/version"
)

// Handler adapts a Controller to net/http.
type Handler struct {
	controller *artifact.Controller
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHandler builds a Handler. A nil httpClient selects http.DefaultClient
// for the file-download proxy fetch.
func NewHandler(controller *artifact.Controller, httpClient *http.Client, logger *zap.Logger) *Handler {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{controller: controller, httpClient: httpClient, logger: logger}
}

func isSilent(r *http.Request) bool {
	v := r.URL.Query().Get("silent")
	return v == "true" || v == "1"
}

// HandleHealthz reports liveness only; it does not probe the database or
// object store.
func (h *Handler) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRead serves GET /{workspace}/artifacts/{alias}.
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	al := chi.URLParam(r, "alias")

	rc := artifact.RequestContext{User: identityFromRequest(r), Workspace: workspace}
	view, err := h.controller.Read(r.Context(), rc, artifact.ReadRequest{
		ArtifactID: workspace + "/" + al,
		Version:    parseVersionSelector(r.URL.Query().Get("version")),
		Silent:     isSilent(r),
	})
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleListChildren serves GET /{workspace}/artifacts/{alias}/children.
func (h *Handler) HandleListChildren(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	al := chi.URLParam(r, "alias")
	q := r.URL.Query()

	var keywords []string
	if raw := q.Get("keywords"); raw != "" {
		keywords = strings.Split(raw, ",")
	}

	var filters map[string]interface{}
	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			writeProblem(w, invalidQuery("filters must be a JSON object: "+err.Error()))
			return
		}
	}

	req := artifact.ListRequest{
		ParentID:   workspace + "/" + al,
		Keywords:   keywords,
		Filters:    filters,
		Mode:       q.Get("mode"),
		Offset:     atoiOr(q.Get("offset"), 0),
		Limit:      atoiOr(q.Get("limit"), 0),
		OrderBy:    q.Get("order_by"),
		Pagination: q.Get("pagination") == "true" || q.Get("pagination") == "1",
		Silent:     isSilent(r),
	}

	rc := artifact.RequestContext{User: identityFromRequest(r), Workspace: workspace}
	result, err := h.controller.ListChildren(r.Context(), rc, req)
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleFiles serves GET /{workspace}/artifacts/{alias}/files/{path...}:
// an empty or trailing-slash path lists the version's files, any other
// path streams the blob itself.
func (h *Handler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	al := chi.URLParam(r, "alias")
	path := chi.URLParam(r, "*")

	rc := artifact.RequestContext{User: identityFromRequest(r), Workspace: workspace}
	artifactID := workspace + "/" + al
	sel := parseVersionSelector(r.URL.Query().Get("version"))

	if path == "" || strings.HasSuffix(path, "/") {
		h.listFiles(w, r, rc, artifactID, sel)
		return
	}

	result, err := h.controller.GetFile(r.Context(), rc, artifact.GetFileRequest{
		ArtifactID: artifactID,
		Path:       path,
		Version:    sel,
		Silent:     isSilent(r),
	})
	if err != nil {
		writeProblem(w, err)
		return
	}

	upstream, err := h.httpClient.Get(result.URL)
	if err != nil {
		writeProblem(w, apperrors.NewBackendError("object store", err))
		return
	}
	defer upstream.Body.Close()

	if ct := upstream.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(upstream.StatusCode)
	_, _ = io.Copy(w, upstream.Body)
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request, rc artifact.RequestContext, artifactID string, sel version.Selector) {
	q := r.URL.Query()
	var token *string
	if raw := q.Get("continuation_token"); raw != "" {
		token = &raw
	}

	result, err := h.controller.ListFiles(r.Context(), rc, artifact.ListFilesRequest{
		ArtifactID:        artifactID,
		Version:           sel,
		Limit:             int32(atoiOr(q.Get("limit"), 0)),
		ContinuationToken: token,
	})
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func atoiOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
