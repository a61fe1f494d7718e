// Package repository is the Metadata Store Adapter: typed CRUD over the
// artifacts table, plus the batch alias-existence probe the Alias
// Allocator drives.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/internal/database"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/datastorage/query"
	"github.com/vaultspace/artifactd/pkg/datastorage/repository/sqldialect"
	"github.com/vaultspace/artifactd/pkg/datastorage/repository/sqlutil"
)

// Executor is the subset of *database.Session the repository needs. A
// bare *sql.DB does not satisfy it (its methods are the *Context
// variants); tests wrap one in a small adapter.
type Executor interface {
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ArtifactRepository is the Metadata Store Adapter over the artifacts
// table.
type ArtifactRepository struct {
	dialect database.Dialect
	builder sqldialect.Builder
	logger  *zap.Logger
}

// NewArtifactRepository constructs an ArtifactRepository for the given
// dialect.
func NewArtifactRepository(dialect database.Dialect, logger *zap.Logger) *ArtifactRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactRepository{dialect: dialect, builder: sqldialect.For(dialect), logger: logger}
}

const artifactColumns = `id, workspace, parent_id, alias, type, manifest, config, secrets, staging, versions, download_count, view_count, file_count, created_at, created_by, last_modified`

// Create inserts a new artifact row.
func (r *ArtifactRepository) Create(ctx context.Context, exec Executor, a *models.Artifact) error {
	manifest, config, secrets, staging, versions, err := marshalJSONColumns(a)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO artifacts (%s) VALUES (%s)`,
		artifactColumns, placeholders(r.builder, 16))

	_, err = exec.Exec(ctx, query,
		a.ID, a.Workspace, sqlutil.ToNullString(a.ParentID), sqlutil.ToNullString(a.Alias),
		a.Type, manifest, config, secrets, staging, versions,
		a.DownloadCount, a.ViewCount, a.FileCount, a.CreatedAt, a.CreatedBy, a.LastModified,
	)
	if err != nil {
		return apperrors.NewDatabaseError("insert artifact", err)
	}
	return nil
}

// GetByID loads an artifact by its internal id. Returns a not-found
// AppError if no row matches.
func (r *ArtifactRepository) GetByID(ctx context.Context, exec Executor, id string) (*models.Artifact, error) {
	query := fmt.Sprintf(`SELECT %s FROM artifacts WHERE id = %s`, artifactColumns, r.builder.Placeholder(1))
	row := exec.QueryRow(ctx, query, id)
	return r.scanRow(row)
}

// GetByAlias loads an artifact by (workspace, alias).
func (r *ArtifactRepository) GetByAlias(ctx context.Context, exec Executor, workspace, alias string) (*models.Artifact, error) {
	query := fmt.Sprintf(`SELECT %s FROM artifacts WHERE workspace = %s AND alias = %s`,
		artifactColumns, r.builder.Placeholder(1), r.builder.Placeholder(2))
	row := exec.QueryRow(ctx, query, workspace, alias)
	return r.scanRow(row)
}

// Update persists every mutable column of an artifact (everything but
// id/workspace/created_at/created_by, which never change post-create).
func (r *ArtifactRepository) Update(ctx context.Context, exec Executor, a *models.Artifact) error {
	manifest, config, secrets, staging, versions, err := marshalJSONColumns(a)
	if err != nil {
		return err
	}

	b := r.builder
	query := fmt.Sprintf(`UPDATE artifacts SET parent_id = %s, alias = %s, type = %s, manifest = %s,
		config = %s, secrets = %s, staging = %s, versions = %s, download_count = %s, view_count = %s,
		file_count = %s, last_modified = %s WHERE id = %s`,
		b.Placeholder(1), b.Placeholder(2), b.Placeholder(3), b.Placeholder(4), b.Placeholder(5),
		b.Placeholder(6), b.Placeholder(7), b.Placeholder(8), b.Placeholder(9), b.Placeholder(10),
		b.Placeholder(11), b.Placeholder(12), b.Placeholder(13))

	res, err := exec.Exec(ctx, query,
		sqlutil.ToNullString(a.ParentID), sqlutil.ToNullString(a.Alias), a.Type, manifest, config,
		secrets, staging, versions, a.DownloadCount, a.ViewCount, a.FileCount, a.LastModified, a.ID,
	)
	if err != nil {
		return apperrors.NewDatabaseError("update artifact", err)
	}
	return requireOneRow(res, "update artifact", a.ID)
}

// IncrementCounters applies a compare-and-update delta to view_count
// and/or download_count so concurrent readers never lose an update.
func (r *ArtifactRepository) IncrementCounters(ctx context.Context, exec Executor, id string, viewDelta, downloadDelta float64) error {
	b := r.builder
	query := fmt.Sprintf(`UPDATE artifacts SET view_count = view_count + %s, download_count = download_count + %s
		WHERE id = %s`, b.Placeholder(1), b.Placeholder(2), b.Placeholder(3))
	_, err := exec.Exec(ctx, query, viewDelta, downloadDelta, id)
	if err != nil {
		return apperrors.NewDatabaseError("increment artifact counters", err)
	}
	return nil
}

// Delete removes an artifact row by id.
func (r *ArtifactRepository) Delete(ctx context.Context, exec Executor, id string) error {
	query := fmt.Sprintf(`DELETE FROM artifacts WHERE id = %s`, r.builder.Placeholder(1))
	_, err := exec.Exec(ctx, query, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete artifact", err)
	}
	return nil
}

// ClearParent nulls out parent_id, used to detach a subtree root before
// a recursive delete removes its children.
func (r *ArtifactRepository) ClearParent(ctx context.Context, exec Executor, id string) error {
	query := fmt.Sprintf(`UPDATE artifacts SET parent_id = NULL WHERE id = %s`, r.builder.Placeholder(1))
	_, err := exec.Exec(ctx, query, id)
	if err != nil {
		return apperrors.NewDatabaseError("detach artifact parent", err)
	}
	return nil
}

// FindExistingAliases probes a workspace for which of the candidate
// aliases are already taken, in a single query, as the Alias
// Allocator's batch-probe optimization over the unique constraint.
func (r *ArtifactRepository) FindExistingAliases(ctx context.Context, exec Executor, workspace string, candidates []string) (map[string]bool, error) {
	existing := map[string]bool{}
	if len(candidates) == 0 {
		return existing, nil
	}

	b := r.builder
	placeholders := make([]string, len(candidates))
	args := make([]interface{}, 0, len(candidates)+1)
	args = append(args, workspace)
	for i, c := range candidates {
		placeholders[i] = b.Placeholder(i + 2)
		args = append(args, c)
	}

	query := fmt.Sprintf(`SELECT alias FROM artifacts WHERE workspace = %s AND alias IN (%s)`,
		b.Placeholder(1), strings.Join(placeholders, ", "))

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("probe existing aliases", err)
	}
	defer rows.Close()

	for rows.Next() {
		var alias sql.NullString
		if err := rows.Scan(&alias); err != nil {
			return nil, apperrors.NewDatabaseError("scan alias probe row", err)
		}
		if alias.Valid {
			existing[alias.String] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate alias probe rows", err)
	}
	return existing, nil
}

// CountChildren counts an artifact's immediate children, for the
// read operation's config.child_count attachment.
func (r *ArtifactRepository) CountChildren(ctx context.Context, exec Executor, parentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM artifacts WHERE parent_id = %s`, r.builder.Placeholder(1))
	var count int
	if err := exec.QueryRow(ctx, query, parentID).Scan(&count); err != nil {
		return 0, apperrors.NewDatabaseError("count children", err)
	}
	return count, nil
}

// Query runs a rendered Plan (see pkg/datastorage/query) and returns the
// matching rows, optionally paginated by offset/limit. When plan.Pagination
// is set, total also reports the predicate's unpaginated row count.
func (r *ArtifactRepository) Query(ctx context.Context, exec Executor, plan *query.Plan) (items []models.Artifact, total int, err error) {
	rendered := query.Render(plan, r.builder)

	selectQuery := fmt.Sprintf(`SELECT %s FROM artifacts WHERE %s`, artifactColumns, rendered.Where)
	if rendered.OrderBy != "" {
		selectQuery += " ORDER BY " + rendered.OrderBy
	}
	args := append([]interface{}{}, rendered.Args...)
	if plan.Limit > 0 {
		selectQuery += fmt.Sprintf(" LIMIT %s", r.builder.Placeholder(len(args)+1))
		args = append(args, plan.Limit)
	}
	if plan.Offset > 0 {
		selectQuery += fmt.Sprintf(" OFFSET %s", r.builder.Placeholder(len(args)+1))
		args = append(args, plan.Offset)
	}

	rows, err := exec.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("query artifacts", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := r.scanRows(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewDatabaseError("iterate artifact rows", err)
	}

	if !plan.Pagination {
		return items, 0, nil
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM artifacts WHERE %s`, rendered.Where)
	if err := exec.QueryRow(ctx, countQuery, rendered.Args...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewDatabaseError("count artifacts", err)
	}
	return items, total, nil
}

func (r *ArtifactRepository) scanRows(rows *sql.Rows) (*models.Artifact, error) {
	var (
		a                          models.Artifact
		parentID, alias            sql.NullString
		manifest, config, secrets  sql.NullString
		staging, versions          sql.NullString
	)

	err := rows.Scan(&a.ID, &a.Workspace, &parentID, &alias, &a.Type, &manifest, &config, &secrets,
		&staging, &versions, &a.DownloadCount, &a.ViewCount, &a.FileCount, &a.CreatedAt, &a.CreatedBy, &a.LastModified)
	if err != nil {
		return nil, apperrors.NewDatabaseError("scan artifact row", err)
	}
	if err := decodeArtifactColumns(&a, parentID, alias, manifest, config, secrets, staging, versions); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ArtifactRepository) scanRow(row *sql.Row) (*models.Artifact, error) {
	var (
		a                                    models.Artifact
		parentID, alias                      sql.NullString
		manifest, config, secrets            sql.NullString
		staging, versions                    sql.NullString
	)

	err := row.Scan(&a.ID, &a.Workspace, &parentID, &alias, &a.Type, &manifest, &config, &secrets,
		&staging, &versions, &a.DownloadCount, &a.ViewCount, &a.FileCount, &a.CreatedAt, &a.CreatedBy, &a.LastModified)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("artifact")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("scan artifact row", err)
	}
	if err := decodeArtifactColumns(&a, parentID, alias, manifest, config, secrets, staging, versions); err != nil {
		return nil, err
	}
	return &a, nil
}

func decodeArtifactColumns(a *models.Artifact, parentID, alias, manifest, config, secrets, staging, versions sql.NullString) error {
	a.ParentID = sqlutil.FromNullString(parentID)
	a.Alias = sqlutil.FromNullString(alias)

	if manifest.Valid && manifest.String != "" {
		if err := json.Unmarshal([]byte(manifest.String), &a.Manifest); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode manifest column")
		}
	}
	if config.Valid && config.String != "" {
		var c models.Config
		if err := json.Unmarshal([]byte(config.String), &c); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode config column")
		}
		a.Config = &c
	}
	if secrets.Valid && secrets.String != "" {
		if err := json.Unmarshal([]byte(secrets.String), &a.Secrets); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode secrets column")
		}
	}
	if staging.Valid && staging.String != "" && staging.String != "null" {
		if err := json.Unmarshal([]byte(staging.String), &a.Staging); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode staging column")
		}
	}
	if versions.Valid && versions.String != "" {
		if err := json.Unmarshal([]byte(versions.String), &a.Versions); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode versions column")
		}
	}
	return nil
}

func marshalJSONColumns(a *models.Artifact) (manifest, config, secrets, staging, versions []byte, err error) {
	if manifest, err = json.Marshal(a.Manifest); err != nil {
		return nil, nil, nil, nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode manifest")
	}
	if config, err = json.Marshal(a.Config); err != nil {
		return nil, nil, nil, nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode config")
	}
	if secrets, err = json.Marshal(a.Secrets); err != nil {
		return nil, nil, nil, nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode secrets")
	}
	if staging, err = json.Marshal(a.Staging); err != nil {
		return nil, nil, nil, nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode staging")
	}
	if versions, err = json.Marshal(a.Versions); err != nil {
		return nil, nil, nil, nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode versions")
	}
	return manifest, config, secrets, staging, versions, nil
}

func placeholders(b sqldialect.Builder, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = b.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func requireOneRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError(op, err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("artifact " + id)
	}
	return nil
}
