package artifact

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/vector"
)

// requireVectorCollection loads and authorizes a, then checks that it is
// a vector collection with a backend wired, per §4.4's blanket vector
// precondition.
func (c *Controller) requireVectorCollection(ctx context.Context, rc RequestContext, artifactID, operation string) (name string, err error) {
	if c.deps.VectorDB == nil {
		return "", apperrors.New(apperrors.ErrorTypePrecondition, "no vector backend configured")
	}
	sess, err := c.deps.Pool.Begin(ctx, true)
	if err != nil {
		return "", err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, artifactID, rc.Workspace)
	if err != nil {
		return "", err
	}
	if err = c.authorize(ctx, rc, a, operation); err != nil {
		return "", err
	}
	if a.Type != "vector-collection" {
		return "", apperrors.New(apperrors.ErrorTypePrecondition, operation+" requires type \"vector-collection\"")
	}
	return vectorCollectionName(a), nil
}

// AddVectorsRequest is the add_vectors operation's input.
type AddVectorsRequest struct {
	ArtifactID string
	Points     []vector.Point
}

// AddVectors implements §4.4's add_vectors operation: caller-supplied
// points are upserted verbatim, a UUID assigned where id is missing.
func (c *Controller) AddVectors(ctx context.Context, rc RequestContext, req AddVectorsRequest) (err error) {
	name, err := c.requireVectorCollection(ctx, rc, req.ArtifactID, "add_vectors")
	if err != nil {
		return err
	}
	points := make([]vector.Point, len(req.Points))
	copy(points, req.Points)
	for i := range points {
		if points[i].ID == "" {
			points[i].ID = uuid.NewString()
		}
	}
	err = c.deps.VectorDB.Upsert(ctx, name, points)
	c.deps.Metrics.RecordVectorOp("add_vectors", err)
	return err
}

// Document is one add_documents input: free text to embed, plus the
// payload it is stored with.
type Document struct {
	ID      string
	Text    string
	Payload map[string]interface{}
}

// AddDocumentsRequest is the add_documents operation's input.
type AddDocumentsRequest struct {
	ArtifactID string
	Documents  []Document
}

// AddDocuments implements §4.4's add_documents operation: each
// document's text is embedded, then upserted with the document itself
// folded into its payload.
func (c *Controller) AddDocuments(ctx context.Context, rc RequestContext, req AddDocumentsRequest) (err error) {
	if c.deps.Embeddings == nil {
		return apperrors.New(apperrors.ErrorTypePrecondition, "no embedding service configured")
	}
	name, err := c.requireVectorCollection(ctx, rc, req.ArtifactID, "add_documents")
	if err != nil {
		return err
	}

	texts := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		texts[i] = d.Text
	}
	vectors, err := c.deps.Embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	points := make([]vector.Point, len(req.Documents))
	for i, d := range req.Documents {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		payload := map[string]interface{}{}
		for k, v := range d.Payload {
			payload[k] = v
		}
		payload["text"] = d.Text
		points[i] = vector.Point{ID: id, Vector: vectors[i], Payload: payload}
	}

	err = c.deps.VectorDB.Upsert(ctx, name, points)
	c.deps.Metrics.RecordVectorOp("add_documents", err)
	return err
}

// RemoveVectorsRequest is the remove_vectors operation's input.
type RemoveVectorsRequest struct {
	ArtifactID string
	IDs        []string
}

// RemoveVectors implements §4.4's remove_vectors operation.
func (c *Controller) RemoveVectors(ctx context.Context, rc RequestContext, req RemoveVectorsRequest) (err error) {
	name, err := c.requireVectorCollection(ctx, rc, req.ArtifactID, "remove_vectors")
	if err != nil {
		return err
	}
	err = c.deps.VectorDB.Delete(ctx, name, req.IDs)
	c.deps.Metrics.RecordVectorOp("remove_vectors", err)
	return err
}

// GetVectorRequest is the get_vector operation's input.
type GetVectorRequest struct {
	ArtifactID string
	ID         string
}

// GetVector implements §4.4's get_vector operation.
func (c *Controller) GetVector(ctx context.Context, rc RequestContext, req GetVectorRequest) (*vector.Point, error) {
	name, err := c.requireVectorCollection(ctx, rc, req.ArtifactID, "get_vector")
	if err != nil {
		return nil, err
	}
	point, err := c.deps.VectorDB.Get(ctx, name, req.ID)
	c.deps.Metrics.RecordVectorOp("get_vector", err)
	return point, err
}

// ListVectorsRequest is the list_vectors operation's input.
type ListVectorsRequest struct {
	ArtifactID string
	Offset     int
	Limit      int
}

// ListVectorsResult is list_vectors' output.
type ListVectorsResult struct {
	Points []vector.Point
	Total  int
}

// ListVectors implements §4.4's list_vectors operation.
func (c *Controller) ListVectors(ctx context.Context, rc RequestContext, req ListVectorsRequest) (*ListVectorsResult, error) {
	name, err := c.requireVectorCollection(ctx, rc, req.ArtifactID, "list_vectors")
	if err != nil {
		return nil, err
	}
	points, total, err := c.deps.VectorDB.Scroll(ctx, name, req.Offset, req.Limit)
	c.deps.Metrics.RecordVectorOp("list_vectors", err)
	if err != nil {
		return nil, err
	}
	return &ListVectorsResult{Points: points, Total: total}, nil
}

// SearchRequest is shared input shape for search_by_vector and
// search_by_text.
type SearchRequest struct {
	ArtifactID string
	Limit      int
	Filter     vector.SearchFilter
	WithTotal  bool
}

// SearchByVectorRequest is the search_by_vector operation's input.
type SearchByVectorRequest struct {
	SearchRequest
	Vector []float64
}

// SearchResult is the output shared by both search operations.
type SearchResult struct {
	Points []vector.ScoredPoint
	Total  *int
}

// SearchByVector implements §4.4's search_by_vector operation.
func (c *Controller) SearchByVector(ctx context.Context, rc RequestContext, req SearchByVectorRequest) (*SearchResult, error) {
	name, err := c.requireVectorCollection(ctx, rc, req.ArtifactID, "search_by_vector")
	if err != nil {
		return nil, err
	}
	points, err := c.deps.VectorDB.Search(ctx, name, req.Vector, req.Limit, req.Filter)
	c.deps.Metrics.RecordVectorOp("search_by_vector", err)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Points: points}
	if req.WithTotal {
		total := len(points)
		result.Total = &total
	}
	return result, nil
}

// SearchByTextRequest is the search_by_text operation's input.
type SearchByTextRequest struct {
	SearchRequest
	Text string
}

// SearchByText implements §4.4's search_by_text operation: the query
// text is embedded, then handled identically to search_by_vector.
func (c *Controller) SearchByText(ctx context.Context, rc RequestContext, req SearchByTextRequest) (*SearchResult, error) {
	if c.deps.Embeddings == nil {
		return nil, apperrors.New(apperrors.ErrorTypePrecondition, "no embedding service configured")
	}
	queryVector, err := c.deps.Embeddings.Embed(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	return c.SearchByVector(ctx, rc, SearchByVectorRequest{SearchRequest: req.SearchRequest, Vector: queryVector})
}
