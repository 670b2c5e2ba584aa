package registry

import (
	"strings"
	"sync"

	"github.com/kloudmate/metrics-core/internal/models"
)

// Separator joins nested scope segments into a dotted namespace.
const Separator = "."

// Registry interns hierarchical scope names into stable integer ids. The
// mapping is a bijection for the registry's lifetime: once a name has an
// id, neither side is ever revoked or reused. Interning happens from
// arbitrary producer goroutines; reads vastly outnumber inserts, so a
// read-locked lookup with a write-locked insert-or-get is sufficient.
type Registry struct {
	mu     sync.RWMutex
	ids    map[string]models.ScopeID
	names  []string
	nextID models.ScopeID
}

func New() *Registry {
	r := &Registry{
		ids:    make(map[string]models.ScopeID),
		names:  make([]string, 0, 16),
		nextID: models.RootScope,
	}
	// The root scope is pre-established so id 0 always resolves.
	r.ids[""] = models.RootScope
	r.names = append(r.names, "")
	r.nextID++

	return r
}

// Intern returns the id for name, assigning the next unused id on first
// encounter.
func (r *Registry) Intern(name string) models.ScopeID {
	r.mu.RLock()
	id, ok := r.ids[name]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have interned it between the locks.
	if id, ok := r.ids[name]; ok {
		return id
	}

	id = r.nextID
	r.nextID++
	r.ids[name] = id
	r.names = append(r.names, name)

	return id
}

// Resolve is the inverse of Intern, used when producing a snapshot.
func (r *Registry) Resolve(id models.ScopeID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.names) {
		return "", false
	}

	return r.names[id], true
}

// Len reports the number of interned scopes, the root scope included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.names)
}

// Join nests name under base with the scope separator. An empty base
// yields name unchanged.
func Join(base, name string) string {
	if base == "" {
		return name
	}
	if name == "" {
		return base
	}

	return base + Separator + name
}

// Split breaks a scope into its segments for display or grouping. The
// engine itself treats scopes as opaque.
func Split(scope string) []string {
	if scope == "" {
		return nil
	}

	return strings.Split(scope, Separator)
}
