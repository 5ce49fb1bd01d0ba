package fs

import (
	"sync"
	"time"
)

// indexEntry is what the watcher last observed for a single file.
type indexEntry struct {
	ID           string
	Text         string
	Updated      int64
	LastModified time.Time
}

// index remembers the observed state of the directory so that raw
// filesystem events can be classified as create, update or delete.
// Only the watcher writes to it; the service's own writes go through the
// directory like anyone else's.
type index struct {
	mu      sync.RWMutex
	entries map[string]*indexEntry // key is the file base name
	primed  bool
}

func newIndex() *index {
	return &index{entries: make(map[string]*indexEntry)}
}

// Get retrieves the entry for a file.
func (i *index) Get(name string) (*indexEntry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.entries[name]
	return e, ok
}

// Set updates the entry for a file.
func (i *index) Set(name string, entry *indexEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[name] = entry
}

// Delete removes a single entry and returns it.
func (i *index) Delete(name string) (*indexEntry, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	e, ok := i.entries[name]
	delete(i.entries, name)
	return e, ok
}

// Range iterates over a copy of the entries.
// callback returns true to continue, false to stop.
func (i *index) Range(callback func(name string, entry indexEntry) bool) {
	i.mu.RLock()
	copied := make(map[string]indexEntry, len(i.entries))
	for k, v := range i.entries {
		copied[k] = *v
	}
	i.mu.RUnlock()

	for k, v := range copied {
		if !callback(k, v) {
			break
		}
	}
}

// Len returns the number of entries.
func (i *index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Primed reports whether a baseline scan has been recorded.
func (i *index) Primed() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.primed
}

func (i *index) markPrimed() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.primed = true
}
