package version

import (
	"fmt"
	"path"
	"strings"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// SnapshotKey builds the canonical object key for a version's metadata
// snapshot: <prefix>/<workspace>/<artifactsDir>/<artifactID>/v<index>.json
func SnapshotKey(prefix, workspace, artifactsDir, artifactID string, index uint) string {
	return joinKey(prefix, workspace, artifactsDir, artifactID, fmt.Sprintf("v%d.json", index))
}

// BlobKey builds the canonical object key for a file within a version:
// <prefix>/<workspace>/<artifactsDir>/<artifactID>/v<index>/<relativePath>
func BlobKey(prefix, workspace, artifactsDir, artifactID string, index uint, relativePath string) (string, error) {
	clean, err := safeJoin(relativePath)
	if err != nil {
		return "", err
	}
	return joinKey(prefix, workspace, artifactsDir, artifactID, fmt.Sprintf("v%d", index), clean), nil
}

// VersionPrefix builds the object-store prefix for an entire version
// directory, used by recursive deletes and file listings.
func VersionPrefix(prefix, workspace, artifactsDir, artifactID string, index uint) string {
	return joinKey(prefix, workspace, artifactsDir, artifactID, fmt.Sprintf("v%d", index)) + "/"
}

// ArtifactPrefix builds the object-store prefix for an artifact's entire
// directory across all versions, used by delete(delete_files=true).
func ArtifactPrefix(prefix, workspace, artifactsDir, artifactID string) string {
	return joinKey(prefix, workspace, artifactsDir, artifactID) + "/"
}

func joinKey(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, strings.Trim(p, "/"))
		}
	}
	return path.Join(nonEmpty...)
}

// safeJoin rejects an empty path and any path containing ".." so the
// result cannot escape the directory it is joined into; a leading "/" is
// stripped, keeping an absolute-looking path inside that directory.
func safeJoin(relativePath string) (string, error) {
	if relativePath == "" {
		return "", apperrors.NewValidationError("file path must not be empty")
	}
	cleaned := path.Clean("/" + relativePath)
	if cleaned == "/" || strings.Contains(relativePath, "..") {
		return "", apperrors.NewValidationErrorf("file path %q escapes its artifact directory", relativePath)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
