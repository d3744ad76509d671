// Package chat publishes presence: on every auth success, disconnect, or
// explicit presence toggle the full identity directory is recomputed and
// pushed to every connected connection. This is a full replace, not a diff;
// the O(identities) payload per change is accepted at this scale.
package chat

// publishPresence pushes a fresh directory snapshot to all connections.
// Callers must hold the engine lock.
func (e *Engine) publishPresence() {
	snapshot := e.dir.snapshot()
	ev := Event{Name: EventUserList, Data: snapshot}
	for conn := range e.dir.conns {
		conn.Deliver(ev)
	}
}

// notifyConns pushes a notification toast to the given connections.
// Callers must hold the engine lock.
func (e *Engine) notifyConns(conns []Conn, text string) {
	ev := Event{Name: EventNotification, Data: Notification{Text: text, TS: e.clock().UnixMilli()}}
	for _, conn := range conns {
		conn.Deliver(ev)
	}
}

// notifyAll pushes a notification toast to every connected connection.
// Callers must hold the engine lock.
func (e *Engine) notifyAll(text string) {
	ev := Event{Name: EventNotification, Data: Notification{Text: text, TS: e.clock().UnixMilli()}}
	for conn := range e.dir.conns {
		conn.Deliver(ev)
	}
}
