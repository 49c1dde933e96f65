package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileBackend persists state as a single JSON snapshot on disk. Reads always
// see the snapshot currently on disk. Apply takes an exclusive lock on a
// sibling .lock file, re-reads the snapshot, checks the view's reads against
// it and rewrites it through a tmp file and rename, so several processes can
// share one path.
type FileBackend struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
}

type fileSnapshot struct {
	Accounts  map[string][]byte `json:"accounts"`
	UpdatedAt string            `json:"updated_at"`
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, lock: flock.New(path + ".lock")}
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := f.load()
	if err != nil {
		return nil, false, err
	}
	value, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

func (f *FileBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	data, err := f.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	for key := range data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileBackend) Apply(ctx context.Context, reads []Read, changes []Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureDir(); err != nil {
		return err
	}
	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock state: %s is held", f.lock.Path())
	}
	defer f.lock.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if err := Validate(reads, data); err != nil {
		return err
	}
	applyChanges(data, changes)
	return f.write(data)
}

func (f *FileBackend) load() (map[string][]byte, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]byte), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if snap.Accounts == nil {
		snap.Accounts = make(map[string][]byte)
	}
	return snap.Accounts, nil
}

func (f *FileBackend) ensureDir() error {
	dir := filepath.Dir(f.path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}

func (f *FileBackend) write(accounts map[string][]byte) error {
	snap := fileSnapshot{
		Accounts:  accounts,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
