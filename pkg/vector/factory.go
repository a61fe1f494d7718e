package vector

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/internal/config"
)

// Factory builds a Database from the server's vector-db configuration,
// falling back to an in-memory store whenever the backend is disabled or
// configured as "memory".
type Factory struct {
	config *config.VectorDBConfig
	db     *sql.DB
	logger *zap.Logger
}

// NewFactory builds a Factory. db may be nil unless cfg.Backend requires
// a metadata-store connection (e.g. "postgresql").
func NewFactory(cfg *config.VectorDBConfig, db *sql.DB, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{config: cfg, db: db, logger: logger}
}

// CreateDatabase builds the configured Database. A disabled or unset
// config falls back to a fresh in-memory store.
func (f *Factory) CreateDatabase(ctx context.Context) (Database, error) {
	if f.config == nil || !f.config.Enabled {
		return NewMemoryDatabase(), nil
	}

	switch f.config.Backend {
	case "", "memory":
		return NewMemoryDatabase(), nil
	case "postgresql":
		if f.db == nil {
			return nil, apperrors.NewPreconditionError("main database connection not available for postgresql vector backend")
		}
		return NewPostgresDatabase(ctx, f.db, f.logger)
	case "pinecone", "qdrant", "weaviate":
		return nil, apperrors.Newf(apperrors.ErrorTypeValidation, "%s vector database not implemented yet", f.config.Backend)
	default:
		return nil, apperrors.Newf(apperrors.ErrorTypeValidation, "unsupported vector database backend: %s", f.config.Backend)
	}
}
