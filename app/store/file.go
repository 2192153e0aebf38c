package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps one link per line in a plain text file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("dedup file path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create dedup directory: %w", err)
		}
	}

	return &FileStore{path: path}, nil
}

// Snapshot reads every link in the file. A missing file is an empty set.
func (s *FileStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(Snapshot)

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return snapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			snapshot.Add(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dedup file: %w", err)
	}

	return snapshot, nil
}

// Append adds the link with a single write so a crash never leaves a partial line
// followed by another link.
func (s *FileStore) Append(ctx context.Context, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return fmt.Errorf("link is empty")
	}
	if strings.ContainsAny(link, "\r\n") {
		return fmt.Errorf("link contains a line break: %q", link)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open dedup file: %w", err)
	}

	if _, err := file.WriteString(link + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("failed to append link: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close dedup file: %w", err)
	}

	return nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snapshot.Len(), nil
}

func (s *FileStore) Close() error {
	return nil
}
