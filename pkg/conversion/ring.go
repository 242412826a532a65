package conversion

import "sync"

// recentRing is a bounded, insertion-ordered cache of names of seekers who
// recently reached the belief stage, most recent first. It lives for the
// process lifetime and is deliberately not persisted: after a restart it
// rebuilds empty.
type recentRing struct {
	mu    sync.Mutex
	cap   int
	names []string
}

func newRecentRing(capacity int) *recentRing {
	if capacity <= 0 {
		capacity = 10
	}
	return &recentRing{cap: capacity}
}

// Push prepends a name, evicting the oldest entry when full.
func (r *recentRing) Push(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append([]string{name}, r.names...)
	if len(r.names) > r.cap {
		r.names = r.names[:r.cap]
	}
}

// Snapshot returns a copy of the current contents, most recent first.
func (r *recentRing) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
