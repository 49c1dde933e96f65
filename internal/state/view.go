package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNilBackend is returned when a View is used without a backend.
	ErrNilBackend = errors.New("state backend is nil")
	// ErrConflict is returned by Apply when a value the view read was
	// changed by another writer before the commit.
	ErrConflict = errors.New("state changed since read")
)

// Change is a single staged key mutation.
type Change struct {
	Key    string
	Value  []byte
	Delete bool
}

// Read is a backend value observed by a view. Found is false when the key
// was absent.
type Read struct {
	Key   string
	Value []byte
	Found bool
}

// Backend persists committed account data. Apply must be all-or-nothing and
// must fail with ErrConflict unless every read still matches the stored
// value at the moment the changes are written.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Apply(ctx context.Context, reads []Read, changes []Change) error
}

// View stages reads and writes on top of a Backend. Nothing reaches the
// backend until Commit; dropping the View discards every staged change.
type View struct {
	ctx     context.Context
	backend Backend
	writes  map[string]Change
	order   []string
	reads   map[string]Read
	seen    []string
}

func NewView(ctx context.Context, backend Backend) *View {
	if ctx == nil {
		ctx = context.Background()
	}
	return &View{
		ctx:     ctx,
		backend: backend,
		writes:  make(map[string]Change),
		reads:   make(map[string]Read),
	}
}

// Context returns the context the view was opened with.
func (v *View) Context() context.Context {
	return v.ctx
}

// Get returns the staged value for key, falling through to the backend.
func (v *View) Get(key string) ([]byte, bool, error) {
	if change, ok := v.writes[key]; ok {
		if change.Delete {
			return nil, false, nil
		}
		return cloneBytes(change.Value), true, nil
	}
	if v.backend == nil {
		return nil, false, ErrNilBackend
	}
	if read, ok := v.reads[key]; ok {
		return cloneBytes(read.Value), read.Found, nil
	}
	value, ok, err := v.backend.Get(v.ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	v.reads[key] = Read{Key: key, Value: cloneBytes(value), Found: ok}
	v.seen = append(v.seen, key)
	return value, ok, nil
}

// Has reports whether key currently exists in the view.
func (v *View) Has(key string) (bool, error) {
	_, ok, err := v.Get(key)
	return ok, err
}

func (v *View) Put(key string, value []byte) {
	v.stage(Change{Key: key, Value: cloneBytes(value)})
}

func (v *View) Delete(key string) {
	v.stage(Change{Key: key, Delete: true})
}

func (v *View) stage(change Change) {
	if _, ok := v.writes[change.Key]; !ok {
		v.order = append(v.order, change.Key)
	}
	v.writes[change.Key] = change
}

// Keys lists keys under prefix, merging staged writes with the backend.
func (v *View) Keys(prefix string) ([]string, error) {
	if v.backend == nil {
		return nil, ErrNilBackend
	}
	stored, err := v.backend.Keys(v.ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	set := make(map[string]struct{}, len(stored))
	for _, key := range stored {
		set[key] = struct{}{}
	}
	for key, change := range v.writes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if change.Delete {
			delete(set, key)
			continue
		}
		set[key] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

// Changes returns staged changes in first-write order.
func (v *View) Changes() []Change {
	out := make([]Change, 0, len(v.order))
	for _, key := range v.order {
		out = append(out, v.writes[key])
	}
	return out
}

// Reads returns the backend values the view observed, in first-read order.
func (v *View) Reads() []Read {
	out := make([]Read, 0, len(v.seen))
	for _, key := range v.seen {
		out = append(out, v.reads[key])
	}
	return out
}

// Commit applies every staged change to the backend in one call and resets
// the view. It fails with ErrConflict when anything the view read has been
// changed underneath it.
func (v *View) Commit() error {
	if len(v.order) == 0 {
		return nil
	}
	if v.backend == nil {
		return ErrNilBackend
	}
	if err := v.backend.Apply(v.ctx, v.Reads(), v.Changes()); err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	v.writes = make(map[string]Change)
	v.order = nil
	v.reads = make(map[string]Read)
	v.seen = nil
	return nil
}

// Validate reports ErrConflict when a read no longer matches stored.
func Validate(reads []Read, stored map[string][]byte) error {
	for _, read := range reads {
		value, ok := stored[read.Key]
		if ok != read.Found || !bytes.Equal(value, read.Value) {
			return fmt.Errorf("%w: %s", ErrConflict, read.Key)
		}
	}
	return nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
