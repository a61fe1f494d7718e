// Package alias is the Alias Allocator: it generates unique,
// human-friendly aliases per workspace, either as a four-word HRID or by
// substituting {placeholder} patterns, batch-probing the workspace for
// collisions before reserving one.
package alias

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/alias/wordlists"
)

const (
	maxCandidatesPerRound = 10
	maxRounds             = 10
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// uuidShape matches the canonical 8-4-4-4-12 hex UUID rendering; an
// explicit alias matching this shape is rejected at create time so
// the identifier space it would occupy stays reserved for ids.
var uuidShape = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsUUIDShaped reports whether s looks like a canonical UUID.
func IsUUIDShaped(s string) bool {
	return uuidShape.MatchString(s)
}

// ValidateExplicit checks a caller-supplied alias against the two
// boundary rules from §8: UUID-shaped aliases and aliases
// containing '^' (reserved as the vector-collection name separator)
// are both rejected.
func ValidateExplicit(aliasVal string) error {
	if IsUUIDShaped(aliasVal) {
		return apperrors.NewValidationError("alias must not look like a UUID")
	}
	if strings.Contains(aliasVal, "^") {
		return apperrors.NewValidationError("alias must not contain '^'")
	}
	return nil
}

// Prober checks which of a batch of candidate aliases are already taken
// in a workspace, e.g. repository.ArtifactRepository.FindExistingAliases.
type Prober func(ctx context.Context, workspace string, candidates []string) (map[string]bool, error)

// Allocator generates and reserves unique aliases.
type Allocator struct {
	words  *wordlists.Loader
	probe  Prober
}

// NewAllocator constructs an Allocator over a word-list loader and an
// existence prober.
func NewAllocator(words *wordlists.Loader, probe Prober) *Allocator {
	return &Allocator{words: words, probe: probe}
}

// SyntheticParts returns the built-in placeholder values always
// available to an alias pattern, regardless of parent.config.id_parts:
// uuid, timestamp, user_id, and (when publishing) zenodo_id /
// zenodo_conceptrecid.
func SyntheticParts(userID string, zenodoID, zenodoConceptRecID string) map[string]interface{} {
	parts := map[string]interface{}{
		"uuid":      uuid.NewString(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"user_id":   userID,
	}
	if zenodoID != "" {
		parts["zenodo_id"] = zenodoID
	}
	if zenodoConceptRecID != "" {
		parts["zenodo_conceptrecid"] = zenodoConceptRecID
	}
	return parts
}

// Allocate resolves the alias to reserve for a create call: an explicit
// alias (validated and returned without a probe; the collision check for
// it happens in the caller against the existing row), a pattern with
// {placeholder} substitution, or an auto-generated HRID when pattern is
// empty.
func (a *Allocator) Allocate(ctx context.Context, workspace string, explicit, pattern string, idParts map[string]interface{}, synthetic map[string]interface{}) (string, error) {
	if explicit != "" {
		if err := ValidateExplicit(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	for round := 0; round < maxRounds; round++ {
		candidates := a.generateCandidates(pattern, idParts, synthetic)
		if len(candidates) == 0 {
			continue
		}
		existing, err := a.probe(ctx, workspace, candidates)
		if err != nil {
			return "", err
		}
		for _, c := range candidates {
			if !existing[c] {
				return c, nil
			}
		}
	}

	return "", apperrors.NewBackendError("alias allocator", nil).WithDetails("exhausted all attempt rounds without finding a unique alias")
}

func (a *Allocator) generateCandidates(pattern string, idParts map[string]interface{}, synthetic map[string]interface{}) []string {
	if pattern == "" {
		return a.generateHRIDCandidates()
	}

	placeholders := uniqueMatches(placeholderPattern.FindAllStringSubmatch(pattern, -1))
	if len(placeholders) == 0 {
		return []string{pattern}
	}

	merged := map[string]interface{}{}
	for k, v := range idParts {
		merged[k] = v
	}
	for k, v := range synthetic {
		merged[k] = v
	}

	seen := map[string]bool{}
	var out []string
	for i := 0; i < maxCandidatesPerRound*10 && len(out) < maxCandidatesPerRound; i++ {
		candidate := pattern
		for _, ph := range placeholders {
			candidate = strings.ReplaceAll(candidate, "{"+ph+"}", resolvePlaceholder(ph, merged))
		}
		if !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out
}

func resolvePlaceholder(name string, parts map[string]interface{}) string {
	v, ok := parts[name]
	if !ok {
		return uuid.NewString()
	}
	switch t := v.(type) {
	case []interface{}:
		if len(t) == 0 {
			return uuid.NewString()
		}
		s, _ := t[rand.Intn(len(t))].(string)
		return s
	case []string:
		if len(t) == 0 {
			return uuid.NewString()
		}
		return t[rand.Intn(len(t))]
	case string:
		return t
	default:
		return uuid.NewString()
	}
}

func (a *Allocator) generateHRIDCandidates() []string {
	pools := wordlists.Default()
	if a.words != nil {
		pools = a.words.Pools()
	}
	out := make([]string, 0, maxCandidatesPerRound)
	for i := 0; i < maxCandidatesPerRound; i++ {
		out = append(out, strings.Join([]string{
			pick(pools.Adjectives), pick(pools.Nouns), pick(pools.Verbs), pick(pools.Adverbs),
		}, "-"))
	}
	return out
}

func pick(words []string) string {
	if len(words) == 0 {
		return uuid.NewString()
	}
	return words[rand.Intn(len(words))]
}

func uniqueMatches(matches [][]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
