package store

import (
	"context"
	"fmt"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is the durable set of links that were delivered to the channel. Links are only
// ever added.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Append(ctx context.Context, link string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Snapshot is an in-memory copy of the store taken at cycle start.
type Snapshot map[string]struct{}

func (s Snapshot) Contains(link string) bool {
	_, ok := s[link]
	return ok
}

func (s Snapshot) Add(link string) {
	s[link] = struct{}{}
}

func (s Snapshot) Len() int {
	return len(s)
}

// Open returns the store for the configured backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown dedup backend: %s", backend)
	}
}
