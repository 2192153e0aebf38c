package store

import (
	"context"
	"log/slog"
)

var _ Store = (*ReadOnlyStore)(nil)

// ReadOnlyStore reads links from the wrapped store and discards appends. Dry runs use it
// so that nothing they "publish" is marked as delivered.
type ReadOnlyStore struct {
	Store
}

func NewReadOnlyStore(st Store) *ReadOnlyStore {
	return &ReadOnlyStore{Store: st}
}

func (s *ReadOnlyStore) Append(ctx context.Context, link string) error {
	slog.Info("Dry run: link not recorded", "link", link)
	return nil
}
