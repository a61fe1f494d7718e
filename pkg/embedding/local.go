// Package embedding is the Embedding Service: converts a batch of texts
// into vectors using a pluggable "provider:model" selection, with a
// deterministic hash-based local provider requiring no external call.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"go.uber.org/zap"
)

const defaultDimension = 384

// LocalService produces deterministic, normalized embeddings from a
// SHA-256 hash of the input text — no network call, same input always
// yields the same vector. Useful as a zero-dependency default and in
// tests; not semantically meaningful beyond exact/near-exact text reuse.
type LocalService struct {
	dimension int
	logger    *zap.Logger
}

// NewLocalService builds a LocalService producing vectors of the given
// dimension. A non-positive dimension falls back to 384.
func NewLocalService(dimension int, logger *zap.Logger) *LocalService {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalService{dimension: dimension, logger: logger}
}

// Dimension reports the vector length this service produces.
func (s *LocalService) Dimension() int {
	return s.dimension
}

// Embed converts text into an L2-normalized vector. Empty text returns
// the zero vector.
func (s *LocalService) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, s.dimension)
	if strings.TrimSpace(text) == "" {
		return vec, nil
	}

	seed := sha256.Sum256([]byte(text))
	for i := range vec {
		// Derive each component from a distinct 8-byte slice of a
		// repeated-hash stream so dimension can exceed 32 bytes.
		chunk := sha256.Sum256(append(seed[:], byte(i), byte(i>>8)))
		bits := binary.BigEndian.Uint64(chunk[:8])
		vec[i] = (float64(bits%2000001) / 1000000.0) - 1.0 // in [-1, 1]
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently, preserving order.
func (s *LocalService) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func normalize(vec []float64) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range vec {
		vec[i] /= norm
	}
}
