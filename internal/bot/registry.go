package bot

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Default bounds for the cursor registry.
const (
	defaultMaxCursors   = 1000
	defaultCursorMaxAge = 7 * 24 * time.Hour
)

type registryEntry struct {
	token     string
	cursor    Cursor
	timestamp time.Time
	element   *list.Element
	// group lists every token issued for the same displayed page, this one
	// included. Consuming any of them retires the whole page.
	group []string
}

// Registry holds live cursors keyed by the opaque token that travels in a
// button payload. Telegram caps callback data at 64 bytes, so the cursor
// value lives here and only the token goes over the wire. Oldest entries
// are evicted first.
type Registry struct {
	lock    sync.Mutex
	entries map[string]*registryEntry
	order   *list.List // oldest at Front, newest at Back
	maxSize int
	maxAge  time.Duration
}

// NewRegistry creates a Registry with the given size and age bounds; zero
// values select the defaults.
func NewRegistry(maxSize int, maxAge time.Duration) *Registry {
	if maxSize <= 0 {
		maxSize = defaultMaxCursors
	}
	if maxAge <= 0 {
		maxAge = defaultCursorMaxAge
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		order:   list.New(),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Put stores a cursor and returns its token.
func (r *Registry) Put(cursor Cursor) string {
	r.lock.Lock()
	defer r.lock.Unlock()

	token := uuid.NewString()
	entry := &registryEntry{token: token, cursor: cursor, timestamp: time.Now()}
	entry.element = r.order.PushBack(entry)
	r.entries[token] = entry

	for len(r.entries) > r.maxSize {
		r.evictOldestLocked()
	}
	return token
}

// Get returns the cursor for a token. Expired or unknown tokens miss.
func (r *Registry) Get(token string) (Cursor, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	entry, ok := r.entries[token]
	if !ok {
		return Cursor{}, false
	}
	if time.Since(entry.timestamp) > r.maxAge {
		r.removeLocked(entry)
		return Cursor{}, false
	}
	return entry.cursor, true
}

// SetMessages records the displayed message ids on an existing cursor.
func (r *Registry) SetMessages(token string, messageIDs []int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if entry, ok := r.entries[token]; ok {
		entry.cursor.MessageIDs = messageIDs
	}
}

// Link records the sibling tokens of one displayed page on each entry.
func (r *Registry) Link(tokens []string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, token := range tokens {
		if entry, ok := r.entries[token]; ok {
			entry.group = append([]string(nil), tokens...)
		}
	}
}

// Drop removes a consumed token together with every sibling issued for the
// same page; superseded buttons must not linger until LRU eviction.
func (r *Registry) Drop(token string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry, ok := r.entries[token]
	if !ok {
		return
	}
	for _, sibling := range entry.group {
		if e, ok := r.entries[sibling]; ok {
			r.removeLocked(e)
		}
	}
	if _, ok := r.entries[token]; ok {
		r.removeLocked(entry)
	}
}

func (r *Registry) evictOldestLocked() {
	front := r.order.Front()
	if front == nil {
		return
	}
	r.removeLocked(front.Value.(*registryEntry))
}

func (r *Registry) removeLocked(entry *registryEntry) {
	r.order.Remove(entry.element)
	delete(r.entries, entry.token)
}

type persistedEntry struct {
	Cursor    Cursor    `json:"cursor"`
	Timestamp time.Time `json:"timestamp"`
	Group     []string  `json:"group,omitempty"`
}

// Save writes the registry to the chat-session persistence file so cursors
// survive a restart.
func (r *Registry) Save(path string) error {
	r.lock.Lock()
	snapshot := make(map[string]persistedEntry, len(r.entries))
	for token, entry := range r.entries {
		snapshot[token] = persistedEntry{Cursor: entry.cursor, Timestamp: entry.timestamp, Group: entry.group}
	}
	r.lock.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("error marshaling cursor registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing cursor registry to %s: %w", path, err)
	}
	return nil
}

// Load restores a previously saved registry. A missing file is not an
// error; a corrupt one is logged and skipped.
func (r *Registry) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading cursor registry from %s: %w", path, err)
	}

	var snapshot map[string]persistedEntry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logrus.WithError(err).Warnf("Cursor registry file %s is unreadable, starting empty", path)
		return nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	for token, persisted := range snapshot {
		if time.Since(persisted.Timestamp) > r.maxAge {
			continue
		}
		entry := &registryEntry{token: token, cursor: persisted.Cursor, timestamp: persisted.Timestamp, group: persisted.Group}
		entry.element = r.order.PushBack(entry)
		r.entries[token] = entry
	}
	return nil
}
