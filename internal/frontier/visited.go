package frontier

import "sync"

// VisitTracker records dedup keys across every scheduler of a session.
type VisitTracker interface {
	MarkIfNew(key string) bool
	Seen(key string) bool
	// Forget releases a key that was marked but never fetched.
	Forget(key string)
}

// Visited is a VisitTracker safe for concurrent use.
type Visited struct {
	seen sync.Map
}

// NewVisited returns an empty tracker.
func NewVisited() *Visited {
	return &Visited{}
}

// MarkIfNew stores key if it has not been seen before and returns true.
func (v *Visited) MarkIfNew(key string) bool {
	if key == "" {
		return false
	}
	_, loaded := v.seen.LoadOrStore(key, struct{}{})
	return !loaded
}

// Seen reports whether key has been marked.
func (v *Visited) Seen(key string) bool {
	_, ok := v.seen.Load(key)
	return ok
}

// Forget removes key.
func (v *Visited) Forget(key string) {
	v.seen.Delete(key)
}
