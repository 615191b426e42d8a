// Package reference loads the plain-text documents whose hard requirements
// the requirement binder enforces: ingestion specs, interface contracts,
// policy documents. Documents are read once and served from memory; the
// optional watcher reloads them on change.
package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Document is one loaded reference document.
type Document struct {
	// Name is the file name relative to the library directory.
	Name string

	// Text is the full document content.
	Text string
}

// Library holds the reference documents in memory. Reads and reloads may
// race freely; readers always see a consistent snapshot.
type Library struct {
	mu     sync.RWMutex
	dir    string
	docs   []Document
	logger *zap.Logger
}

// NewLibrary creates a library over a directory. An empty dir yields an
// empty library; a missing directory is an error only when dir is set.
func NewLibrary(dir string, logger *zap.Logger) (*Library, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Library{dir: dir, logger: logger}
	if dir == "" {
		return l, nil
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads every .txt and .md file in the directory, replacing the
// previous snapshot atomically.
func (l *Library) Reload() error {
	if l.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("reading reference directory: %w", err)
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			l.logger.Warn("skipping unreadable reference document",
				zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		docs = append(docs, Document{Name: e.Name(), Text: string(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })

	l.mu.Lock()
	l.docs = docs
	l.mu.Unlock()

	l.logger.Info("reference library loaded",
		zap.String("dir", l.dir),
		zap.Int("documents", len(docs)))
	return nil
}

// Documents returns the current snapshot.
func (l *Library) Documents() []Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Document{}, l.docs...)
}

// Texts returns the document contents in name order, the shape the
// guardrails consume.
func (l *Library) Texts() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	texts := make([]string, len(l.docs))
	for i, d := range l.docs {
		texts[i] = d.Text
	}
	return texts
}
