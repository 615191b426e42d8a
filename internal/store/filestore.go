package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
)

// FileStore persists artifacts as JSON files under
// <basePath>/<sessionID>/<artifactType>-<uuid>.json. Writes are atomic
// (temp file + rename) so a crash never leaves a half-written artifact, and
// distinct records never contend.
type FileStore struct {
	basePath string
	logger   *zap.Logger
}

// NewFileStore creates the base directory if needed.
func NewFileStore(basePath string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{basePath: basePath, logger: logger}, nil
}

// Commit writes the artifact and returns its durable ID.
func (s *FileStore) Commit(_ context.Context, sessionID string, a *artifact.Artifact) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("empty session id")
	}

	dir := filepath.Join(s.basePath, sessionID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}

	rec := &StoredArtifact{
		ID:        fmt.Sprintf("%s-%s", a.Type, uuid.New().String()),
		SessionID: sessionID,
		Artifact:  a.Clone(),
		StoredAt:  time.Now().UTC(),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact: %w", err)
	}

	// Write atomically
	path := filepath.Join(dir, rec.ID+".json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename artifact: %w", err)
	}

	s.logger.Info("artifact committed",
		zap.String("session_id", sessionID),
		zap.String("artifact_id", rec.ID),
		zap.String("artifact_type", string(a.Type)))

	return rec.ID, nil
}

// Get retrieves a committed artifact.
func (s *FileStore) Get(_ context.Context, sessionID, id string) (*StoredArtifact, error) {
	path := filepath.Join(s.basePath, sessionID, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, id)
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var rec StoredArtifact
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", id, err)
	}
	return &rec, nil
}

// List returns the session's committed artifacts, oldest first.
func (s *FileStore) List(_ context.Context, sessionID string) ([]*StoredArtifact, error) {
	dir := filepath.Join(s.basePath, sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*StoredArtifact{}, nil
		}
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	records := make([]*StoredArtifact, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.Get(context.Background(), sessionID, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable artifact file",
				zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StoredAt.Before(records[j].StoredAt)
	})
	return records, nil
}

// Interface check.
var _ Store = (*FileStore)(nil)
