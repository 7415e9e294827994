// Package autocomplete offers entity-id completions from the latest known
// set of home-automation entities.
package autocomplete

import (
	"strings"
	"sync"
)

// Entity is one automation entity as reported by the backend.
type Entity struct {
	EntityID     string `json:"entity_id"`
	FriendlyName string `json:"friendly_name"`
	Domain       string `json:"domain"`
	State        string `json:"state"`
}

// Index holds the entity set. It is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	ids   []string
	lower []string
	byID  map[string]Entity
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{byID: make(map[string]Entity)}
}

// SetEntities replaces the index. For duplicate ids the last record wins
// but the id keeps the position of its first occurrence.
func (ix *Index) SetEntities(entities []Entity) {
	ids := make([]string, 0, len(entities))
	lower := make([]string, 0, len(entities))
	byID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		if _, seen := byID[e.EntityID]; !seen {
			ids = append(ids, e.EntityID)
			lower = append(lower, strings.ToLower(e.EntityID))
		}
		byID[e.EntityID] = e
	}

	ix.mu.Lock()
	ix.ids, ix.lower, ix.byID = ids, lower, byID
	ix.mu.Unlock()
}

// Len returns the number of distinct entities.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Match returns up to limit entities whose id contains query
// case-insensitively, in index order. limit <= 0 means no limit. The
// result comes from a single snapshot of the index.
func (ix *Index) Match(query string, limit int) []Entity {
	q := strings.ToLower(query)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []Entity
	for i, id := range ix.lower {
		if !strings.Contains(id, q) {
			continue
		}
		out = append(out, ix.byID[ix.ids[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
