package vector

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// PostgresDatabase is a Database backed by the metadata store's own
// connection pool, used when an operator wants vector collections
// co-located with the rest of the service's state instead of a dedicated
// vector product. Vectors are stored as JSON and scored in the
// application layer; this trades index-assisted ANN search for zero
// extra infrastructure, appropriate at the scale this adapter targets.
type PostgresDatabase struct {
	db      *sql.DB
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewPostgresDatabase wraps db, creating its bookkeeping tables if absent.
func NewPostgresDatabase(ctx context.Context, db *sql.DB, logger *zap.Logger) (*PostgresDatabase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PostgresDatabase{
		db:     db,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "vector:postgres",
			MaxRequests: 5,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
			},
		}),
	}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PostgresDatabase) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vector_collections (
			name TEXT PRIMARY KEY,
			size INT NOT NULL,
			distance TEXT NOT NULL
		)`)
	if err != nil {
		return apperrors.NewDatabaseError("create vector_collections table", err)
	}
	_, err = p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vector_points (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			vector TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return apperrors.NewDatabaseError("create vector_points table", err)
	}
	return nil
}

func (p *PostgresDatabase) call(op string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := p.breaker.Execute(fn)
	if err != nil {
		return nil, apperrors.NewBackendError("vector database: "+op, err)
	}
	return result, nil
}

func (p *PostgresDatabase) CreateCollection(ctx context.Context, name string, cfg CollectionConfig) error {
	_, err := p.call("create_collection", func() (interface{}, error) {
		return p.db.ExecContext(ctx,
			`INSERT INTO vector_collections (name, size, distance) VALUES ($1, $2, $3)`,
			name, cfg.Size, cfg.Distance)
	})
	return err
}

func (p *PostgresDatabase) DeleteCollection(ctx context.Context, name string) error {
	_, err := p.call("delete_collection", func() (interface{}, error) {
		if _, err := p.db.ExecContext(ctx, `DELETE FROM vector_points WHERE collection = $1`, name); err != nil {
			return nil, err
		}
		return p.db.ExecContext(ctx, `DELETE FROM vector_collections WHERE name = $1`, name)
	})
	return err
}

func (p *PostgresDatabase) Upsert(ctx context.Context, collection string, points []Point) error {
	_, err := p.call("upsert", func() (interface{}, error) {
		for _, pt := range points {
			if pt.ID == "" {
				return nil, apperrors.NewValidationError("point id must not be empty")
			}
			if len(pt.Vector) == 0 {
				return nil, apperrors.NewValidationError("point vector must not be empty")
			}
			vecJSON, err := json.Marshal(pt.Vector)
			if err != nil {
				return nil, err
			}
			payloadJSON, err := json.Marshal(pt.Payload)
			if err != nil {
				return nil, err
			}
			_, err = p.db.ExecContext(ctx, `
				INSERT INTO vector_points (collection, id, vector, payload) VALUES ($1, $2, $3, $4)
				ON CONFLICT (collection, id) DO UPDATE SET vector = EXCLUDED.vector, payload = EXCLUDED.payload`,
				collection, pt.ID, string(vecJSON), string(payloadJSON))
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (p *PostgresDatabase) Get(ctx context.Context, collection, id string) (*Point, error) {
	result, err := p.call("get", func() (interface{}, error) {
		row := p.db.QueryRowContext(ctx,
			`SELECT id, vector, payload FROM vector_points WHERE collection = $1 AND id = $2`, collection, id)
		return scanPoint(row)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("vector point " + id)
		}
		return nil, err
	}
	pt := result.(*Point)
	return pt, nil
}

func (p *PostgresDatabase) Scroll(ctx context.Context, collection string, offset, limit int) ([]Point, int, error) {
	result, err := p.call("scroll", func() (interface{}, error) {
		total, err := p.countLocked(ctx, collection)
		if err != nil {
			return nil, err
		}
		rows, err := p.db.QueryContext(ctx,
			`SELECT id, vector, payload FROM vector_points WHERE collection = $1 ORDER BY id OFFSET $2 LIMIT $3`,
			collection, offset, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		points, err := scanPoints(rows)
		if err != nil {
			return nil, err
		}
		return struct {
			points []Point
			total  int
		}{points, total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	r := result.(struct {
		points []Point
		total  int
	})
	return r.points, r.total, nil
}

func (p *PostgresDatabase) Search(ctx context.Context, collection string, query []float64, limit int, filter SearchFilter) ([]ScoredPoint, error) {
	result, err := p.call("search", func() (interface{}, error) {
		rows, err := p.db.QueryContext(ctx,
			`SELECT id, vector, payload FROM vector_points WHERE collection = $1`, collection)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		points, err := scanPoints(rows)
		if err != nil {
			return nil, err
		}
		scored := make([]ScoredPoint, 0, len(points))
		for _, pt := range points {
			if filter != nil && !matchesFilter(pt.Payload, filter) {
				continue
			}
			scored = append(scored, ScoredPoint{Point: pt, Score: cosineSimilarity(query, pt.Vector)})
		}
		return scored, nil
	})
	if err != nil {
		return nil, err
	}
	scored := result.([]ScoredPoint)
	sortScoredDescending(scored)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (p *PostgresDatabase) Delete(ctx context.Context, collection string, ids []string) error {
	_, err := p.call("delete", func() (interface{}, error) {
		for _, id := range ids {
			if _, err := p.db.ExecContext(ctx,
				`DELETE FROM vector_points WHERE collection = $1 AND id = $2`, collection, id); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (p *PostgresDatabase) Count(ctx context.Context, collection string) (int, error) {
	result, err := p.call("count", func() (interface{}, error) {
		return p.countLocked(ctx, collection)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (p *PostgresDatabase) countLocked(ctx context.Context, collection string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_points WHERE collection = $1`, collection).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPoint(row rowScanner) (*Point, error) {
	var id, vecJSON, payloadJSON string
	if err := row.Scan(&id, &vecJSON, &payloadJSON); err != nil {
		return nil, err
	}
	pt := Point{ID: id}
	if err := json.Unmarshal([]byte(vecJSON), &pt.Vector); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payloadJSON), &pt.Payload); err != nil {
		return nil, err
	}
	return &pt, nil
}

func scanPoints(rows *sql.Rows) ([]Point, error) {
	var out []Point
	for rows.Next() {
		pt, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pt)
	}
	return out, rows.Err()
}

func sortScoredDescending(scored []ScoredPoint) {
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j-1].Score < scored[j].Score; j-- {
			scored[j-1], scored[j] = scored[j], scored[j-1]
		}
	}
}
