// Package chat coordinates ephemeral typing indicators scoped to a room or a
// private sender/recipient pair. Typing state is never persisted and never
// paginated.
package chat

import "time"

// typingScope identifies the audience of a typing indicator: a room, or a
// directional private pair.
type typingScope struct {
	Room string
	From string
	To   string
}

type typingEntry struct {
	scope  typingScope
	userID string
}

// typingTable records which identities are currently composing in each scope,
// stamped with their latest signal so stale entries can be swept. An identity
// whose connection dies mid-compose would otherwise stay "typing" forever.
// Not safe for concurrent use; the engine serializes access.
type typingTable struct {
	active map[typingScope]map[string]time.Time
}

func newTypingTable() *typingTable {
	return &typingTable{active: make(map[typingScope]map[string]time.Time)}
}

func (t *typingTable) start(scope typingScope, userID string, now time.Time) {
	typists, ok := t.active[scope]
	if !ok {
		typists = make(map[string]time.Time)
		t.active[scope] = typists
	}
	typists[userID] = now
}

func (t *typingTable) stop(scope typingScope, userID string) {
	typists, ok := t.active[scope]
	if !ok {
		return
	}
	delete(typists, userID)
	if len(typists) == 0 {
		delete(t.active, scope)
	}
}

// typists returns the identities currently typing in scope.
func (t *typingTable) typists(scope typingScope) []string {
	out := make([]string, 0, len(t.active[scope]))
	for userID := range t.active[scope] {
		out = append(out, userID)
	}
	return out
}

// expire removes every entry last refreshed at or before cutoff and returns
// the removed entries so the engine can emit explicit stopTyping signals.
func (t *typingTable) expire(cutoff time.Time) []typingEntry {
	var expired []typingEntry
	for scope, typists := range t.active {
		for userID, last := range typists {
			if !last.After(cutoff) {
				delete(typists, userID)
				expired = append(expired, typingEntry{scope: scope, userID: userID})
			}
		}
		if len(typists) == 0 {
			delete(t.active, scope)
		}
	}
	return expired
}
