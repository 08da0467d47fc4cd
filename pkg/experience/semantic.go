package experience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Embedder turns text into a vector. The concrete embedding backend is an
// external collaborator; tests use a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const semanticCollection = "experiences"

// SemanticIndex wraps a Repository and maintains a chromem-go similarity
// index over saved experiences, giving Search a real implementation.
// Indexing is best-effort: a failed embed never fails the save.
type SemanticIndex struct {
	Repository

	embedder Embedder
	db       *chromem.DB

	mu  sync.Mutex
	col *chromem.Collection
}

func NewSemanticIndex(repo Repository, embedder Embedder) (*SemanticIndex, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &SemanticIndex{
		Repository: repo,
		embedder:   embedder,
		db:         chromem.NewDB(),
	}, nil
}

func (s *SemanticIndex) collection() (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.col != nil {
		return s.col, nil
	}
	col, err := s.db.GetOrCreateCollection(semanticCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	s.col = col
	return col, nil
}

func (s *SemanticIndex) Save(ctx context.Context, e *Experience) error {
	if err := s.Repository.Save(ctx, e); err != nil {
		return err
	}
	s.index(ctx, e)
	return nil
}

func (s *SemanticIndex) BatchSave(ctx context.Context, es []*Experience) error {
	err := s.Repository.BatchSave(ctx, es)
	for _, e := range es {
		s.index(ctx, e)
	}
	return err
}

func (s *SemanticIndex) index(ctx context.Context, e *Experience) {
	text := e.Title + "\n" + e.EffectiveContent()
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("Failed to embed experience for semantic index",
			"id", e.ID,
			"error", err)
		return
	}

	col, err := s.collection()
	if err != nil {
		slog.Warn("Failed to open semantic index collection", "error", err)
		return
	}

	doc := chromem.Document{
		ID:        e.ID,
		Content:   text,
		Embedding: vector,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		slog.Warn("Failed to index experience", "id", e.ID, "error", err)
	}
}

// Search returns experiences most similar to text, best match first.
func (s *SemanticIndex) Search(ctx context.Context, text string, limit int) ([]*Experience, error) {
	if limit <= 0 {
		limit = 5
	}

	col, err := s.collection()
	if err != nil {
		return nil, err
	}
	if col.Count() == 0 {
		return nil, nil
	}
	if limit > col.Count() {
		limit = col.Count()
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic query failed: %w", err)
	}

	out := make([]*Experience, 0, len(results))
	for _, r := range results {
		if e, ok := s.Repository.FindByID(ctx, r.ID); ok {
			out = append(out, e)
		}
	}
	return out, nil
}
