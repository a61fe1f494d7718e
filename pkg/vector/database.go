package vector

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	sharedmath "github.com/vaultspace/artifactd/pkg/shared/math"
)

// Database is the Vector Collection Adapter's backend contract. Every
// method takes the fully-qualified collection name ("<workspace>^<alias>")
// produced by the caller.
type Database interface {
	CreateCollection(ctx context.Context, name string, cfg CollectionConfig) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Get(ctx context.Context, collection, id string) (*Point, error)
	Scroll(ctx context.Context, collection string, offset, limit int) ([]Point, int, error)
	Search(ctx context.Context, collection string, query []float64, limit int, filter SearchFilter) ([]ScoredPoint, error)
	Delete(ctx context.Context, collection string, ids []string) error
	Count(ctx context.Context, collection string) (int, error)
}

// MemoryDatabase is an in-process Database used as the zero-configuration
// fallback and in tests. Collections and points are held in memory and do
// not survive a process restart.
type MemoryDatabase struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point
	configs     map[string]CollectionConfig
}

// NewMemoryDatabase builds an empty MemoryDatabase.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		collections: make(map[string]map[string]Point),
		configs:     make(map[string]CollectionConfig),
	}
}

func (m *MemoryDatabase) CreateCollection(_ context.Context, name string, cfg CollectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return apperrors.NewAlreadyExistsError("vector collection " + name)
	}
	m.collections[name] = make(map[string]Point)
	m.configs[name] = cfg
	return nil
}

func (m *MemoryDatabase) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	delete(m.configs, name)
	return nil
}

func (m *MemoryDatabase) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, err := m.collectionLocked(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if p.ID == "" {
			return apperrors.NewValidationError("point id must not be empty")
		}
		if len(p.Vector) == 0 {
			return apperrors.NewValidationError("point vector must not be empty")
		}
		coll[p.ID] = p
	}
	return nil
}

func (m *MemoryDatabase) Get(_ context.Context, collection, id string) (*Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, err := m.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	p, ok := coll[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("vector point " + id)
	}
	return &p, nil
}

func (m *MemoryDatabase) Scroll(_ context.Context, collection string, offset, limit int) ([]Point, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, err := m.collectionLocked(collection)
	if err != nil {
		return nil, 0, err
	}
	all := sortedPoints(coll)
	total := len(all)
	if offset >= total {
		return []Point{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MemoryDatabase) Search(_ context.Context, collection string, query []float64, limit int, filter SearchFilter) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, err := m.collectionLocked(collection)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredPoint, 0, len(coll))
	for _, p := range coll {
		if filter != nil && !matchesFilter(p.Payload, filter) {
			continue
		}
		scored = append(scored, ScoredPoint{Point: p, Score: cosineSimilarity(query, p.Vector)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (m *MemoryDatabase) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, err := m.collectionLocked(collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

func (m *MemoryDatabase) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, err := m.collectionLocked(collection)
	if err != nil {
		return 0, err
	}
	return len(coll), nil
}

func (m *MemoryDatabase) collectionLocked(name string) (map[string]Point, error) {
	coll, ok := m.collections[name]
	if !ok {
		return nil, apperrors.NewNotFoundError("vector collection " + name)
	}
	return coll, nil
}

func sortedPoints(coll map[string]Point) []Point {
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Point, len(ids))
	for i, id := range ids {
		out[i] = coll[id]
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	return sharedmath.CosineSimilarity(a, b)
}
