// Package session tracks open previews per originating page. Each origin
// holds at most one preview; opening a new one replaces the previous.
package session

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ppiankov/glimpse/internal/metrics"
)

// ErrNotFound is returned when an origin has no open preview
var ErrNotFound = errors.New("no open preview for origin")

// Session is one open preview
type Session struct {
	ID       string    `json:"id"`
	Origin   string    `json:"origin"`
	Target   string    `json:"target"`
	OpenedAt time.Time `json:"openedAt"`

	seq uint64
}

// Table maps origin ids to their open preview
type Table struct {
	mu       sync.Mutex
	sessions map[string]Session
	nextID   uint64
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewTable creates an empty table. m may be nil.
func NewTable(m *metrics.Metrics) *Table {
	return &Table{
		sessions: make(map[string]Session),
		metrics:  m,
		now:      time.Now,
	}
}

// Open records a preview of target for origin and returns it. Any preview
// the origin already had is replaced.
func (t *Table) Open(origin, target string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	s := Session{
		ID:       "p" + strconv.FormatUint(t.nextID, 10),
		Origin:   origin,
		Target:   target,
		OpenedAt: t.now(),
		seq:      t.nextID,
	}
	t.sessions[origin] = s
	t.metrics.SetSessionCount(len(t.sessions))
	return s
}

// Get returns the open preview of origin
func (t *Table) Get(origin string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[origin]
	return s, ok
}

// CloseOrigin drops the preview of origin, if any. It reports whether
// something was removed.
func (t *Table) CloseOrigin(origin string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[origin]; !ok {
		return false
	}
	delete(t.sessions, origin)
	t.metrics.SetSessionCount(len(t.sessions))
	return true
}

// Close drops the preview with the given id. Origin narrows the search when
// non-empty; otherwise every origin is checked.
func (t *Table) Close(origin, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, s := range t.sessions {
		if s.ID != id || (origin != "" && key != origin) {
			continue
		}
		delete(t.sessions, key)
		t.metrics.SetSessionCount(len(t.sessions))
		return true
	}
	return false
}

// Expand hands the preview of origin over to a full page: it returns the
// target URL and forgets the session.
func (t *Table) Expand(origin string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[origin]
	if !ok {
		return "", ErrNotFound
	}
	delete(t.sessions, origin)
	t.metrics.SetSessionCount(len(t.sessions))
	return s.Target, nil
}

// List returns the open previews ordered by id
func (t *Table) List() []Session {
	t.mu.Lock()
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Len returns the number of open previews
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
