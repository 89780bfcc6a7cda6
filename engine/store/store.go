// Package store implements the path-addressable reactive state container
// shared by every engine component.
//
// Paths are dot-delimited strings such as "pet.hp". Values are anything that
// serializes to JSON and are kept in their JSON form (float64, string, bool,
// []any, map[string]any), so a value reads back the same before and after a
// snapshot round-trip. Set notifies the watchers of a path synchronously,
// before it returns, and outside the store lock so a watcher may call Set.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nathoo/petcore/engine/save"
)

// Handler is called with the new and previous value of a path.
type Handler func(newValue, oldValue any)

// WatchID identifies one subscription.
type WatchID uint64

type watcher struct {
	id WatchID
	fn Handler
}

// Store holds the engine state.
type Store struct {
	mu       sync.RWMutex
	values   map[string]any
	watchers map[string][]watcher
	nextID   WatchID

	saveMu    sync.Mutex
	persister save.Persister
	autoSave  bool
	version   string
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister sets the durable backend used by SaveAll, LoadAll and auto-save.
func WithPersister(p save.Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithAutoSave enables write-through snapshots on every Set.
func WithAutoSave(enabled bool) Option {
	return func(s *Store) { s.autoSave = enabled }
}

// WithVersion sets the content version stamped on snapshots.
func WithVersion(v string) Option {
	return func(s *Store) { s.version = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		values:   map[string]any{},
		watchers: map[string][]watcher{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join builds a path from its segments.
func Join(parts ...string) string {
	return strings.Join(parts, ".")
}

// Init sets path to value only if the path is unset.
func (s *Store) Init(path string, value any) {
	value = s.canonical(path, value)
	s.mu.Lock()
	if _, ok := s.values[path]; ok {
		s.mu.Unlock()
		return
	}
	s.values[path] = value
	s.mu.Unlock()
}

// Get returns the value at path. The bool is false for an unset path.
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[path]
	return v, ok
}

// Has reports whether path is set.
func (s *Store) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Set overwrites path and notifies its watchers.
func (s *Store) Set(path string, value any) {
	value = s.canonical(path, value)
	s.mu.Lock()
	old := s.values[path]
	s.values[path] = value
	ws := s.snapshotWatchers(path)
	s.mu.Unlock()

	notify(ws, value, old)
	s.persist()
}

// Update applies fn to the current value of path under the store lock and
// stores the result, so concurrent read-modify-write cycles do not lose
// updates. Watchers are notified as for Set. Returns the new value.
func (s *Store) Update(path string, fn func(old any) any) any {
	s.mu.Lock()
	old := s.values[path]
	value := s.canonical(path, fn(old))
	s.values[path] = value
	ws := s.snapshotWatchers(path)
	s.mu.Unlock()

	notify(ws, value, old)
	s.persist()
	return value
}

// Watch subscribes fn to changes of path.
func (s *Store) Watch(path string, fn Handler) WatchID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.watchers[path] = append(s.watchers[path], watcher{id: s.nextID, fn: fn})
	return s.nextID
}

// Unwatch removes one subscription.
func (s *Store) Unwatch(path string, id WatchID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.watchers[path]
	for i, w := range ws {
		if w.id == id {
			s.watchers[path] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	if len(s.watchers[path]) == 0 {
		delete(s.watchers, path)
	}
}

// UnwatchAll removes every subscription on path.
func (s *Store) UnwatchAll(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, path)
}

// WatcherCount returns the number of subscriptions on path.
func (s *Store) WatcherCount(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers[path])
}

// Paths returns every set path in sorted order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.values))
	for p := range s.values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot returns a shallow copy of all values.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// SaveAll writes a snapshot of every path to the persister.
func (s *Store) SaveAll(ctx context.Context) error {
	if s.persister == nil {
		return errors.New("persistence is not configured")
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := save.Encode(s.version, s.Snapshot())
	if err != nil {
		return err
	}
	return s.persister.Save(ctx, data)
}

// LoadAll restores the persisted snapshot over the current values and
// notifies watchers of every restored path. It returns false when no usable
// snapshot exists; the error then says why a present snapshot was ignored.
// The in-memory values are untouched in that case.
func (s *Store) LoadAll(ctx context.Context) (bool, error) {
	if s.persister == nil {
		return false, nil
	}
	data, err := s.persister.Load(ctx)
	if errors.Is(err, save.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	sd, err := save.Decode(data, s.version)
	if err != nil {
		return false, err
	}

	type change struct {
		ws       []watcher
		new, old any
	}
	var changes []change

	s.mu.Lock()
	for path, v := range sd.Values {
		old := s.values[path]
		s.values[path] = v
		if ws := s.snapshotWatchers(path); len(ws) > 0 {
			changes = append(changes, change{ws: ws, new: v, old: old})
		}
	}
	s.mu.Unlock()

	for _, c := range changes {
		notify(c.ws, c.new, c.old)
	}
	return true, nil
}

// persist writes through when auto-save is on. Failures are logged and skipped.
func (s *Store) persist() {
	if !s.autoSave || s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.SaveAll(ctx); err != nil {
		s.logger.Warn("auto-save failed", "error", err)
	}
}

// snapshotWatchers copies the watcher list of path. Caller holds s.mu.
func (s *Store) snapshotWatchers(path string) []watcher {
	ws := s.watchers[path]
	if len(ws) == 0 {
		return nil
	}
	out := make([]watcher, len(ws))
	copy(out, ws)
	return out
}

func notify(ws []watcher, value, old any) {
	for _, w := range ws {
		w.fn(value, old)
	}
}

// canonical converts value to the form JSON decoding produces. Values that
// do not encode are stored as given and logged.
func (s *Store) canonical(path string, value any) any {
	switch v := value.(type) {
	case nil, string, bool, float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case float32:
		return float64(v)
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("storing value without JSON form", "path", path, "error", err)
		return value
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("storing value without JSON form", "path", path, "error", err)
		return value
	}
	return out
}

// Decode re-decodes the value at path into out through JSON. It serves typed
// reads of values that came back from a snapshot as generic maps and slices.
func (s *Store) Decode(path string, out any) error {
	v, ok := s.Get(path)
	if !ok {
		return fmt.Errorf("store path %q is not set", path)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %q: %w", path, err)
	}
	return nil
}

// Number returns the value at path as a float64.
func (s *Store) Number(path string) (float64, bool) {
	v, ok := s.Get(path)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// String returns the value at path as a string.
func (s *Store) String(path string) (string, bool) {
	v, ok := s.Get(path)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Bool returns the value at path as a bool; unset or non-bool values are false.
func (s *Store) Bool(path string) bool {
	v, _ := s.Get(path)
	b, _ := v.(bool)
	return b
}

// ToFloat converts the numeric types that reach the store to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
