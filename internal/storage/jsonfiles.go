package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"flat_bot/internal/model"
)

// File names used by JSONFiles.
const (
	SeenFile        = "seen.json"
	SubscribersFile = "subscribers.json"
)

// JSONFiles implements Storage with two JSON documents in a directory:
// an array of seen listing IDs and an array of subscribed chat IDs.
// Each file is read in full and rewritten in full.
type JSONFiles struct {
	dir string
	mu  sync.Mutex
}

// NewJSONFiles returns a store rooted at dir, creating it if needed.
func NewJSONFiles(dir string) (*JSONFiles, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFiles{dir: dir}, nil
}

// Close implements Storage. There is nothing to release.
func (s *JSONFiles) Close() error {
	return nil
}

// LoadSeen implements Storage.
func (s *JSONFiles) LoadSeen(_ context.Context) (model.IDSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	if err := s.read(SeenFile, &ids); err != nil {
		return nil, err
	}
	return model.NewIDSet(ids...), nil
}

// SaveSeen implements Storage.
func (s *JSONFiles) SaveSeen(_ context.Context, seen model.IDSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(SeenFile, seen.Sorted())
}

// ListSubscribers implements Storage.
func (s *JSONFiles) ListSubscribers(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers()
}

// AddSubscriber implements Storage.
func (s *JSONFiles) AddSubscriber(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.subscribers()
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, chatID) {
		return false, nil
	}
	if err := s.write(SubscribersFile, append(ids, chatID)); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveSubscriber implements Storage.
func (s *JSONFiles) RemoveSubscriber(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.subscribers()
	if err != nil {
		return false, err
	}
	i := slices.Index(ids, chatID)
	if i < 0 {
		return false, nil
	}
	if err := s.write(SubscribersFile, slices.Delete(ids, i, i+1)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONFiles) subscribers() ([]int64, error) {
	var ids []int64
	if err := s.read(SubscribersFile, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// read decodes name into v. A missing file leaves v untouched.
func (s *JSONFiles) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write replaces name atomically through a temp file in the same directory.
func (s *JSONFiles) write(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
