// Package version is the Version Index & Layout component: it resolves
// a version selector to a concrete index against an artifact's version
// list, and computes the canonical S3 key layout for snapshots and
// blobs.
package version

import (
	"fmt"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
)

// Selector is the closed sum type of ways a caller can address a
// version: Null (prefer latest, else 0), Latest (N-1, fails if N=0),
// Stage (index N, only valid while staged), a named Label, or a
// non-negative Index.
type Selector interface {
	isSelector()
}

type Null struct{}
type Latest struct{}
type Stage struct{}
type Label string
type Index uint

func (Null) isSelector()    {}
func (Latest) isSelector()  {}
func (Stage) isSelector()   {}
func (Label) isSelector()   {}
func (Index) isSelector()   {}

// Resolve maps a Selector to a concrete version index, given the
// artifact's committed versions and whether it is currently staged.
//
// Per §9's resolved open question: a Label that looks numeric but isn't
// found in versions is a hard NotFound error — it is never
// reinterpreted as an Index.
func Resolve(sel Selector, versions []models.VersionEntry, staged bool) (uint, error) {
	n := uint(len(versions))

	switch s := sel.(type) {
	case Null, nil:
		if n == 0 {
			return 0, nil
		}
		return n - 1, nil

	case Latest:
		if n == 0 {
			return 0, apperrors.NewNotFoundError("no committed versions exist")
		}
		return n - 1, nil

	case Stage:
		if !staged {
			return 0, apperrors.NewPreconditionError("selector \"stage\" requires a pending staged version")
		}
		return n, nil

	case Label:
		for i, v := range versions {
			if v.Version == string(s) {
				return uint(i), nil
			}
		}
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("version label %q", string(s)))

	case Index:
		if uint(s) >= n {
			return 0, apperrors.NewNotFoundError(fmt.Sprintf("version index %d", uint(s)))
		}
		return uint(s), nil

	default:
		return 0, apperrors.NewValidationError("unrecognized version selector")
	}
}
