package artifact

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/archive"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
)

// PublishRequest is the publish operation's input.
type PublishRequest struct {
	ArtifactID string
	To         string // "zenodo" or "sandbox_zenodo"
}

// PublishResult is publish's output: the archive's durable record,
// already persisted back into config.zenodo.
type PublishResult struct {
	Record archive.Record
}

// Publish implements §4.4's publish operation: it creates or reuses a
// deposition, pushes the artifact's manifest as metadata, imports every
// file of the current committed version via its presigned GET URL, and
// finally publishes the deposition.
func (c *Controller) Publish(ctx context.Context, rc RequestContext, req PublishRequest) (result *PublishResult, err error) {
	sess, err := c.deps.Pool.Begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return nil, err
	}
	if err = c.authorize(ctx, rc, a, "publish"); err != nil {
		return nil, err
	}
	if a.IsStaged() || len(a.Versions) == 0 {
		return nil, apperrors.NewPreconditionError("publish requires a committed version")
	}

	name, _ := a.Manifest["name"].(string)
	description, _ := a.Manifest["description"].(string)
	if name == "" || description == "" {
		return nil, apperrors.NewValidationError("publish requires manifest.name and manifest.description")
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			return nil, err
		}
	}

	secrets := mergedSecrets(parent, a)
	token, err := archive.TokenFromSecrets(secrets, req.To)
	if err != nil {
		return nil, err
	}
	client, err := archive.Resolve(req.To, token, c.deps.HTTPClient)
	if err != nil {
		return nil, err
	}

	existing := existingDeposition(a)
	ref, err := client.CreateOrReuseDeposition(ctx, existing)
	if err != nil {
		return nil, err
	}

	if err = client.UpdateMetadata(ctx, ref, archive.Metadata{
		Title:       name,
		Description: description,
		UploadType:  "dataset",
	}); err != nil {
		return nil, err
	}

	creds := c.resolveCredentials(parent, a)
	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return nil, err
	}

	currentIndex := uint(len(a.Versions) - 1)
	prefix := c.versionPrefix(creds, a, currentIndex)
	var token2 *string
	for {
		page, lerr := store.List(ctx, prefix, 1000, token2)
		if lerr != nil {
			return nil, lerr
		}
		for _, key := range page.Keys {
			relPath := strings.TrimPrefix(key, prefix)
			url, uerr := store.PresignGet(ctx, key, c.deps.PresignTTL)
			if uerr != nil {
				return nil, uerr
			}
			if ierr := client.ImportFile(ctx, ref, relPath, url); ierr != nil {
				return nil, ierr
			}
		}
		if page.ContinuationToken == nil {
			break
		}
		token2 = page.ContinuationToken
	}

	record, err := client.Publish(ctx, ref)
	if err != nil {
		return nil, err
	}

	zenodoConfig, err := encodeZenodoRecord(record)
	if err != nil {
		return nil, err
	}
	merged := cloneConfig(a.Config)
	merged.Zenodo = zenodoConfig
	a.Config = merged

	if err = c.deps.Repo.Update(ctx, sess, a); err != nil {
		return nil, err
	}

	return &PublishResult{Record: *record}, nil
}

// existingDeposition decodes a.Config.Zenodo back into a DepositionRef,
// or nil when the artifact has never been published.
func existingDeposition(a *models.Artifact) *archive.DepositionRef {
	if a.Config == nil || len(a.Config.Zenodo) == 0 {
		return nil
	}
	encoded, err := json.Marshal(a.Config.Zenodo)
	if err != nil {
		return nil
	}
	var ref archive.DepositionRef
	if err := json.Unmarshal(encoded, &ref); err != nil || ref.ID == 0 {
		return nil
	}
	return &ref
}

func encodeZenodoRecord(record *archive.Record) (map[string]interface{}, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode zenodo record")
	}
	var out map[string]interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode zenodo record")
	}
	return out, nil
}
