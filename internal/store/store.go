// Package store persists accepted artifacts. The contract is deliberately
// narrow: the engine needs commit-on-confirmation and retrieval, nothing
// about the underlying medium leaks upward.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
)

// ErrNotFound marks a lookup for an artifact that was never committed.
var ErrNotFound = errors.New("artifact not found")

// StoredArtifact is one committed artifact with its storage envelope.
type StoredArtifact struct {
	// ID is the durable identifier returned by Commit.
	ID string `json:"id"`

	// SessionID scopes the artifact to the session that produced it.
	SessionID string `json:"session_id"`

	// Artifact is the committed snapshot.
	Artifact *artifact.Artifact `json:"artifact"`

	// StoredAt is the commit time in UTC.
	StoredAt time.Time `json:"stored_at"`
}

// Store is the persistence contract. Commit is atomic per artifact: either
// the full artifact is durable under the returned ID or nothing changed.
// Implementations support concurrent writers to distinct records.
type Store interface {
	// Commit durably stores an artifact and returns its ID.
	Commit(ctx context.Context, sessionID string, a *artifact.Artifact) (string, error)

	// Get retrieves a committed artifact by ID.
	Get(ctx context.Context, sessionID, id string) (*StoredArtifact, error)

	// List returns the committed artifacts of a session, oldest first.
	List(ctx context.Context, sessionID string) ([]*StoredArtifact, error)
}
