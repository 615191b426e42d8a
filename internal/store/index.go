package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	indexCollection = "artifacts"
	embeddingDim    = 256
)

// Match is one similarity-search hit over committed artifacts.
type Match struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	ArtifactType string  `json:"artifact_type"`
	Content      string  `json:"content"`
	Similarity   float32 `json:"similarity"`
}

// Index is a chromem-backed similarity index over committed artifacts, so
// later phases can retrieve governing artifacts by content rather than ID.
type Index struct {
	col    *chromem.Collection
	logger *zap.Logger
}

// NewIndex opens (or creates) a persistent index at path. It uses a local
// deterministic embedding so indexing works without any provider credentials;
// swap the embedding func when a real embedder is configured.
func NewIndex(path string, embed chromem.EmbeddingFunc, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if embed == nil {
		embed = localEmbedding
	}

	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}
	col, err := db.GetOrCreateCollection(indexCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", indexCollection, err)
	}

	logger.Info("artifact index opened",
		zap.String("path", path),
		zap.Int("documents", col.Count()))

	return &Index{col: col, logger: logger}, nil
}

// Add indexes one committed artifact under its durable ID.
func (i *Index) Add(ctx context.Context, rec *StoredArtifact, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc := chromem.Document{
		ID: rec.ID,
		Metadata: map[string]string{
			"session_id":    rec.SessionID,
			"artifact_type": string(rec.Artifact.Type),
		},
		Content: text,
	}
	if err := i.col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("indexing artifact %s: %w", rec.ID, err)
	}
	return nil
}

// Search returns up to limit artifacts most similar to the query, optionally
// scoped to one session.
func (i *Index) Search(ctx context.Context, query string, limit int, sessionID string) ([]Match, error) {
	// chromem requires nResults <= doc count
	count := i.col.Count()
	if count == 0 {
		return []Match{}, nil
	}
	if limit < 1 || limit > count {
		limit = count
	}

	var where map[string]string
	if sessionID != "" {
		where = map[string]string{"session_id": sessionID}
	}

	results, err := i.col.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying artifact index: %w", err)
	}

	matches := make([]Match, len(results))
	for n, r := range results {
		matches[n] = Match{
			ID:           r.ID,
			SessionID:    r.Metadata["session_id"],
			ArtifactType: r.Metadata["artifact_type"],
			Content:      r.Content,
			Similarity:   r.Similarity,
		}
	}

	i.logger.Debug("artifact index searched",
		zap.Int("limit", limit),
		zap.Int("results", len(matches)))

	return matches, nil
}

// localEmbedding is a deterministic bag-of-words embedding: tokens are hashed
// into a fixed-dimension vector which is then L2-normalized. It gives stable,
// credential-free similarity good enough for retrieving governing artifacts.
func localEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]{}")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%embeddingDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors; a constant unit vector keeps
		// degenerate input indexable.
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for n := range vec {
		vec[n] *= scale
	}
	return vec, nil
}
