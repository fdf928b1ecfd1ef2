// Package pending correlates in-flight request ids with the direction and
// method they were sent under, so responses can be matched, translated, and
// delivered exactly once.
package pending

import (
	"sort"
	"sync"
	"time"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/clock"
	"go.uber.org/zap"
)

// Direction records which side originated a request.
type Direction int

const (
	// EditorToServer marks requests sent by the editor toward the language server.
	EditorToServer Direction = iota
	// ServerToEditor marks requests sent by the language server toward the editor.
	ServerToEditor
)

// Entry describes one tracked request. Entries are owned exclusively by the
// table; no other component holds request state.
type Entry struct {
	ID        string
	Method    string
	Direction Direction
	CreatedAt time.Time
}

// Table is a per-session pending request table. It is safe for concurrent
// use by the two relay pumps of a session.
type Table struct {
	mu      sync.Mutex
	entries map[string]Entry
	clk     clock.Clock
	logger  *zap.SugaredLogger
}

// Option customizes a Table.
type Option func(*Table)

// WithLogger overrides the default noop logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// New creates an empty table using the given clock for staleness decisions.
func New(clk clock.Clock, opts ...Option) *Table {
	t := &Table{
		entries: make(map[string]Entry),
		clk:     clk,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records a request crossing the proxy. A duplicate id within a
// session indicates a protocol violation; the newer request wins and the
// older entry is dropped with a log.
func (t *Table) Track(id, method string, dir Direction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[id]; ok {
		t.logger.Warnw("request id reused before response", "id", id, "oldMethod", old.Method, "newMethod", method)
	}
	t.entries[id] = Entry{
		ID:        id,
		Method:    method,
		Direction: dir,
		CreatedAt: t.clk.Now(),
	}
}

// Resolve removes and returns the entry for a response id. The second
// resolution of the same id, or a response to an unknown id, returns false
// so the caller can forward or drop it without double delivery.
func (t *Table) Resolve(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	delete(t.entries, id)
	return e, true
}

// CancelAll drains the table and returns every abandoned entry, oldest
// first, so the session can synthesize cancellation responses for each
// still-waiting caller.
func (t *Table) CancelAll() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	drained := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		drained = append(drained, e)
	}
	t.entries = make(map[string]Entry)
	sortByAge(drained)
	return drained
}

// SweepOlderThan removes and returns entries older than the staleness
// threshold, bounding memory growth from requests the server never answered.
func (t *Table) SweepOlderThan(threshold time.Duration) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clk.Now().Add(-threshold)
	var stale []Entry
	for id, e := range t.entries {
		if e.CreatedAt.Before(cutoff) {
			stale = append(stale, e)
			delete(t.entries, id)
		}
	}
	sortByAge(stale)
	return stale
}

// Count returns the number of requests currently awaiting a response.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

func sortByAge(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
