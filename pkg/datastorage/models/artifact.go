// Package models defines the artifact metadata row and its derived,
// client-facing views.
package models

import (
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// VersionEntry is one committed version in an artifact's version list.
// versions[i] corresponds to S3 prefix .../<artifact-id>/v<i>/.
type VersionEntry struct {
	Version   string    `json:"version"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// StagingEntry is one pending file in the in-progress (uncommitted)
// version. A non-nil, non-empty Staging list on an Artifact defines the
// "staged" state.
type StagingEntry struct {
	Path           string  `json:"path"`
	DownloadWeight float64 `json:"download_weight,omitempty"`
}

// Config holds the recognized sub-keys of an artifact's config document.
// Unrecognized keys are dropped when the document is decoded.
type Config struct {
	Permissions      map[string]interface{}    `json:"permissions,omitempty"`
	IDParts          map[string]interface{}    `json:"id_parts,omitempty"`
	ListFields       []string                  `json:"list_fields,omitempty"`
	DownloadWeights  map[string]float64         `json:"download_weights,omitempty"`
	CollectionSchema map[string]interface{}    `json:"collection_schema,omitempty"`
	VectorsConfig    *VectorsConfig            `json:"vectors_config,omitempty"`
	Zenodo           map[string]interface{}    `json:"zenodo,omitempty"`
	ChildCount       *int                      `json:"child_count,omitempty"`
	VectorCount      *int                      `json:"vector_count,omitempty"`
}

// VectorsConfig describes the backing vector collection created for a
// "vector-collection" typed artifact.
type VectorsConfig struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

const (
	DefaultVectorSize     = 128
	DefaultVectorDistance = "Cosine"
)

// Artifact is the primary entity: a versioned, permissioned unit of
// metadata plus a directory of blobs. See §3 for the full invariant set.
type Artifact struct {
	ID             string                 `json:"id" db:"id"`
	Workspace      string                 `json:"workspace" db:"workspace"`
	ParentID       *string                `json:"parent_id" db:"parent_id"`
	Alias          *string                `json:"alias" db:"alias"`
	Type           string                 `json:"type" db:"type"`
	Manifest       map[string]interface{} `json:"manifest" db:"manifest"`
	Config         *Config                `json:"config" db:"config"`
	Secrets        map[string]interface{} `json:"secrets" db:"secrets"`
	Staging        []StagingEntry         `json:"staging" db:"staging"`
	Versions       []VersionEntry         `json:"versions" db:"versions"`
	DownloadCount  float64                `json:"download_count" db:"download_count"`
	ViewCount      float64                `json:"view_count" db:"view_count"`
	FileCount      int                    `json:"file_count" db:"file_count"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	CreatedBy      string                 `json:"created_by" db:"created_by"`
	LastModified   time.Time              `json:"last_modified" db:"last_modified"`
}

// IsStaged reports whether the artifact currently has a pending,
// uncommitted version.
func (a *Artifact) IsStaged() bool {
	return len(a.Staging) > 0
}

// StageIndex is the index a staged version would occupy: always
// len(versions).
func (a *Artifact) StageIndex() int {
	return len(a.Versions)
}

// EffectivePermissions returns Config.Permissions, or an empty map if
// Config or Permissions is nil, so callers never need a nil check.
func (a *Artifact) EffectivePermissions() map[string]interface{} {
	if a.Config == nil || a.Config.Permissions == nil {
		return map[string]interface{}{}
	}
	return a.Config.Permissions
}

// ArtifactView is the client-facing, sanitized rendering of an Artifact:
// every column except secrets, with id/parent_id rendered as
// "workspace/alias" pairs and the internal UUID carried separately.
type ArtifactView struct {
	ID             string                 `json:"id"`
	InternalID     string                 `json:"_id"`
	Workspace      string                 `json:"workspace"`
	ParentID       *string                `json:"parent_id,omitempty"`
	Type           string                 `json:"type"`
	Manifest       map[string]interface{} `json:"manifest"`
	Config         *Config                `json:"config,omitempty"`
	Staging        []StagingEntry         `json:"staging,omitempty"`
	Versions       []VersionEntry         `json:"versions"`
	DownloadCount  float64                `json:"download_count"`
	ViewCount      float64                `json:"view_count"`
	FileCount      int                    `json:"file_count"`
	CreatedAt      time.Time              `json:"created_at"`
	CreatedBy      string                 `json:"created_by"`
	LastModified   time.Time              `json:"last_modified"`
}

// SanitizedView renders the client-facing view of an artifact. selfRef is
// the artifact's own resolved "workspace/alias" identifier (an explicit
// parameter rather than derived from a.Alias, since callers need the
// id/alias rendering even for callers that addressed the artifact by
// raw UUID) and parentRef is the precomputed "workspace/alias" of its
// parent, or nil when there is none.
func (a *Artifact) SanitizedView(selfRef string, parentRef *string) *ArtifactView {
	var staging []StagingEntry
	if a.IsStaged() {
		staging = a.Staging
	}
	return &ArtifactView{
		ID:            selfRef,
		InternalID:    a.ID,
		Workspace:     a.Workspace,
		ParentID:      parentRef,
		Type:          a.Type,
		Manifest:      a.Manifest,
		Config:        a.Config,
		Staging:       staging,
		Versions:      a.Versions,
		DownloadCount: a.DownloadCount,
		ViewCount:     a.ViewCount,
		FileCount:     a.FileCount,
		CreatedAt:     a.CreatedAt,
		CreatedBy:     a.CreatedBy,
		LastModified:  a.LastModified,
	}
}

// Snapshot is the document persisted to S3 at each version index
// (".../v<i>.json"): a point-in-time copy of the row's versioned fields.
type Snapshot struct {
	Manifest map[string]interface{} `json:"manifest"`
	Config   *Config                `json:"config"`
	Type     string                 `json:"type"`
	Version  string                 `json:"version"`
	Comment  string                 `json:"comment"`
}

// The per-type schemas are exposed here through Schema (rather than only
// in internal/validation) so repository/query code can introspect an
// artifact type's shape without importing up through internal/.

// Schema returns the built-in JSON schema document for this artifact's
// declared type, mirroring internal/validation.SchemaFor's table.
func (a *Artifact) Schema() *openapi3.Schema {
	switch a.Type {
	case "collection":
		s := openapi3.NewObjectSchema()
		s.Properties = openapi3.Schemas{
			"name":        openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
			"description": openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
		}
		s.Required = []string{"name", "description"}
		return s
	default:
		return openapi3.NewObjectSchema()
	}
}
