package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Storage persists the whole cart. It is the single source of truth; the
// Store never keeps an in-memory copy between mutations.
type Storage interface {
	Load() ([]Line, error)
	Save(lines []Line) error
	Remove() error
}

// Locker is implemented by storages shared between processes.
type Locker interface {
	Lock() (unlock func(), err error)
}

type MemoryStorage struct {
	mu    sync.Mutex
	lines []Line
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneLines(m.lines), nil
}

func (m *MemoryStorage) Save(lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = cloneLines(lines)
	return nil
}

func (m *MemoryStorage) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = nil
	return nil
}

// FileStorage keeps the cart as JSON on local disk. Several CLI processes may
// share one file, so mutations take an advisory lock on "<path>.lock".
type FileStorage struct {
	path        string
	lockTimeout time.Duration
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path, lockTimeout: 5 * time.Second}
}

func (f *FileStorage) Load() ([]Line, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}
	if len(data) == 0 {
		return []Line{}, nil
	}

	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode cart file: %w", err)
	}
	return lines, nil
}

func (f *FileStorage) Save(lines []Line) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cart file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}

func (f *FileStorage) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cart file: %w", err)
	}
	return nil
}

func (f *FileStorage) Lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}

	fl := flock.New(f.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), f.lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock cart file: %w", err)
	}
	if !locked {
		return nil, errors.New("lock cart file: timed out")
	}
	return func() { _ = fl.Unlock() }, nil
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return []Line{}
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
