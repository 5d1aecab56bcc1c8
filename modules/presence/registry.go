// Package presence tracks which usernames currently hold a live connection.
package presence

import "sync"

// Handle is a connection that can be listed in the roster.
type Handle interface {
	ID() string
}

// Roster maps usernames to connection handle IDs.
type Roster map[string]string

// Notifier receives the roster after every mutation.
type Notifier interface {
	RosterChanged(roster Roster)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Roster)

// RosterChanged calls f.
func (f NotifierFunc) RosterChanged(roster Roster) { f(roster) }

// Registry is the process-wide username to connection mapping.
//
// Connect overwrites: the most recent connection for a username wins.
// Disconnect removes the username whatever handle currently holds it, so a
// newer session under the same name can be reported offline by an older
// session's disconnect.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]Handle
	notifier Notifier
}

// NewRegistry creates an empty registry. notifier may be nil.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{
		entries:  make(map[string]Handle),
		notifier: notifier,
	}
}

// Connect records handle as the connection for username and notifies.
func (r *Registry) Connect(username string, handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[username] = handle
	r.notifyLocked()
}

// Disconnect removes username and notifies.
func (r *Registry) Disconnect(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, username)
	r.notifyLocked()
}

// Snapshot returns a copy of the current roster.
func (r *Registry) Snapshot() Roster {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// Len returns the number of online usernames.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) rosterLocked() Roster {
	roster := make(Roster, len(r.entries))
	for username, h := range r.entries {
		roster[username] = h.ID()
	}
	return roster
}

// notifyLocked runs under the lock so notifications follow mutation order.
// The notifier must not call back into the registry.
func (r *Registry) notifyLocked() {
	if r.notifier != nil {
		r.notifier.RosterChanged(r.rosterLocked())
	}
}
