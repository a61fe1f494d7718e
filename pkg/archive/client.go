// Package archive implements the external publishing adapter: pushing a
// committed artifact's manifest and file tree into a Zenodo (or Zenodo
// sandbox) deposition. Request/response payloads are hand-authored in
// ogen's generated-struct idiom — duck-typed GetStatus/GetMessage
// accessors — so pkg/ogenx can normalize error responses the
// same way it would for a codegen'd client.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/ogenx"
	sharederrors "github.com/vaultspace/artifactd/pkg/shared/errors"
)

// Target names accepted by Resolve, matching the "to" parameter of the
// publish operation.
const (
	TargetZenodo        = "zenodo"
	TargetSandboxZenodo = "sandbox_zenodo"
)

const (
	zenodoBaseURL        = "https://zenodo.org/api"
	sandboxZenodoBaseURL = "https://sandbox.zenodo.org/api"
)

// DepositionRef identifies an in-progress deposition, persisted back into
// an artifact's config.zenodo between publish calls.
type DepositionRef struct {
	ID           int64  `json:"id"`
	ConceptRecID string `json:"conceptrecid,omitempty"`
	BucketURL    string `json:"bucket_url,omitempty"`
}

// Creator is one entry of a deposition's metadata.creators list.
type Creator struct {
	Name string `json:"name"`
}

// Metadata is the subset of Zenodo deposition metadata this adapter sets.
type Metadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UploadType  string    `json:"upload_type"`
	Creators    []Creator `json:"creators,omitempty"`
}

// Record is the durable result of a successful publish, stored back into
// config.zenodo.
type Record struct {
	ID           int64  `json:"id"`
	ConceptRecID string `json:"conceptrecid"`
	DOI          string `json:"doi,omitempty"`
	HTMLURL      string `json:"html_url,omitempty"`
}

// Client publishes artifacts to an external archive.
type Client interface {
	// CreateOrReuseDeposition fetches the deposition existing identifies
	// and returns a fresh ref for it, otherwise creates a new draft
	// deposition.
	CreateOrReuseDeposition(ctx context.Context, existing *DepositionRef) (*DepositionRef, error)
	UpdateMetadata(ctx context.Context, ref *DepositionRef, meta Metadata) error
	// ImportFile streams the content at sourceURL (a presigned GET URL
	// from the object store) into the deposition under filename.
	ImportFile(ctx context.Context, ref *DepositionRef, filename, sourceURL string) error
	Publish(ctx context.Context, ref *DepositionRef) (*Record, error)
}

// Resolve returns the Client for the named publish target.
func Resolve(to string, token string, httpClient *http.Client) (Client, error) {
	if token == "" {
		return nil, apperrors.NewPreconditionError("archive credentials not configured")
	}
	var baseURL string
	switch to {
	case TargetZenodo:
		baseURL = zenodoBaseURL
	case TargetSandboxZenodo:
		baseURL = sandboxZenodoBaseURL
	default:
		return nil, apperrors.Newf(apperrors.ErrorTypeValidation, "unsupported publish target: %s", to)
	}
	if httpClient == nil {
		return nil, apperrors.NewPreconditionError("http client not configured for archive publish")
	}
	return &zenodoClient{baseURL: baseURL, token: token, http: httpClient}, nil
}

// TokenFromSecrets extracts the access token for the given publish target
// out of an artifact's merged secrets map (parent then artifact-owned,
// already merged by the caller per the credential resolution rule).
func TokenFromSecrets(merged map[string]interface{}, to string) (string, error) {
	key := "ZENODO_TOKEN"
	if to == TargetSandboxZenodo {
		key = "SANDBOX_ZENODO_TOKEN"
	}
	raw, ok := merged[key]
	if !ok {
		return "", apperrors.Newf(apperrors.ErrorTypePrecondition, "missing %s secret for publish target %s", key, to)
	}
	token, ok := raw.(string)
	if !ok || token == "" {
		return "", apperrors.Newf(apperrors.ErrorTypePrecondition, "%s secret is not a non-empty string", key)
	}
	return token, nil
}

type zenodoClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// depositionResponse mirrors the fields of a Zenodo deposition resource
// this adapter consumes.
type depositionResponse struct {
	ID           int64  `json:"id"`
	ConceptRecID string `json:"conceptrecid"`
	DOI          string `json:"doi"`
	Links        struct {
		Bucket string `json:"bucket"`
		HTML   string `json:"html"`
	} `json:"links"`
	statusCode int32
}

func (r *depositionResponse) GetStatus() int32 { return r.statusCode }

// errorResponse mirrors Zenodo's {"status":..,"message":..} error shape.
type errorResponse struct {
	Status  int32  `json:"status"`
	Message string `json:"message"`
}

func (r *errorResponse) GetStatus() int32    { return r.Status }
func (r *errorResponse) GetMessage() string { return r.Message }

func (c *zenodoClient) CreateOrReuseDeposition(ctx context.Context, existing *DepositionRef) (*DepositionRef, error) {
	if existing != nil && existing.ID != 0 {
		resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/deposit/depositions/%d", existing.ID), nil)
		if err != nil {
			return nil, sharederrors.FailedTo("reuse zenodo deposition", err)
		}
		return refFrom(resp), nil
	}
	resp, err := c.do(ctx, http.MethodPost, "/deposit/depositions", map[string]interface{}{})
	if err != nil {
		return nil, sharederrors.FailedTo("create zenodo deposition", err)
	}
	return refFrom(resp), nil
}

func refFrom(resp *depositionResponse) *DepositionRef {
	return &DepositionRef{ID: resp.ID, ConceptRecID: resp.ConceptRecID, BucketURL: resp.Links.Bucket}
}

func (c *zenodoClient) UpdateMetadata(ctx context.Context, ref *DepositionRef, meta Metadata) error {
	body := map[string]interface{}{"metadata": meta}
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/deposit/depositions/%d", ref.ID), body)
	if err != nil {
		return sharederrors.FailedTo("update zenodo deposition metadata", err)
	}
	return nil
}

func (c *zenodoClient) ImportFile(ctx context.Context, ref *DepositionRef, filename, sourceURL string) error {
	if ref.BucketURL == "" {
		return apperrors.NewPreconditionError("deposition has no upload bucket; create the deposition first")
	}

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return sharederrors.FailedTo("build source file request", err)
	}
	getResp, err := c.http.Do(getReq)
	if err != nil {
		return sharederrors.FailedTo("fetch source file for import", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode < 200 || getResp.StatusCode >= 300 {
		return apperrors.Newf(apperrors.ErrorTypeNetwork, "fetching %s returned status %d", filename, getResp.StatusCode)
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, ref.BucketURL+"/"+filename, getResp.Body)
	if err != nil {
		return sharederrors.FailedTo("build import upload request", err)
	}
	putReq.Header.Set("Authorization", "Bearer "+c.token)
	putReq.Header.Set("Content-Type", "application/octet-stream")
	putResp, err := c.http.Do(putReq)
	if err != nil {
		return sharederrors.FailedTo("upload file to zenodo bucket", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode < 200 || putResp.StatusCode >= 300 {
		return apperrors.Newf(apperrors.ErrorTypeNetwork, "importing %s into deposition returned status %d", filename, putResp.StatusCode)
	}
	return nil
}

func (c *zenodoClient) Publish(ctx context.Context, ref *DepositionRef) (*Record, error) {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/deposit/depositions/%d/actions/publish", ref.ID), nil)
	if err != nil {
		return nil, sharederrors.FailedTo("publish zenodo deposition", err)
	}
	return &Record{ID: resp.ID, ConceptRecID: resp.ConceptRecID, DOI: resp.DOI, HTMLURL: resp.Links.HTML}, nil
}

// do issues one request against the Zenodo API and normalizes any
// non-2xx response through pkg/ogenx.
func (c *zenodoClient) do(ctx context.Context, method, path string, body interface{}) (*depositionResponse, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, sharederrors.FailedTo("encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, sharederrors.FailedTo("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewBackendError("zenodo request", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp errorResponse
		errResp.Status = int32(httpResp.StatusCode)
		_ = json.NewDecoder(httpResp.Body).Decode(&errResp)
		return nil, ogenx.ToError(&errResp, nil)
	}

	var resp depositionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, sharederrors.FailedTo("decode zenodo response", err)
	}
	resp.statusCode = int32(httpResp.StatusCode)
	return &resp, nil
}
