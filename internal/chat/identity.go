// Package chat tracks the identity directory and the binding between live
// connections and identities.
package chat

import (
	"sort"

	"github.com/google/uuid"
)

// directory owns identity state: the stable username->userId mapping, one
// record per known identity, and the binding of open connections to
// identities. Directory entries persist for the process lifetime; bindings
// live only as long as their connection. Not safe for concurrent use; the
// engine serializes access.
type directory struct {
	idsByName map[string]string
	records   map[string]*Identity
	conns     map[Conn]string
}

func newDirectory() *directory {
	return &directory{
		idsByName: make(map[string]string),
		records:   make(map[string]*Identity),
		conns:     make(map[Conn]string),
	}
}

// authenticate binds conn to the identity for username, minting a userId on
// first sight of the name. The userId is looked up, never regenerated, so it
// is stable across disconnect/reconnect. Re-authenticating an already bound
// connection simply remaps it.
func (d *directory) authenticate(conn Conn, username string) Identity {
	if _, bound := d.conns[conn]; bound {
		d.unbind(conn)
	}

	userID, known := d.idsByName[username]
	if !known {
		userID = uuid.NewString()
		d.idsByName[username] = userID
		d.records[userID] = &Identity{UserRef: UserRef{Username: username, UserID: userID}}
	}

	d.conns[conn] = userID
	rec := d.records[userID]
	rec.Online = true
	return *rec
}

// unbind removes a connection binding and flips the identity offline once its
// last connection is gone. The directory record itself is kept.
func (d *directory) unbind(conn Conn) (Identity, bool) {
	userID, ok := d.conns[conn]
	if !ok {
		return Identity{}, false
	}
	delete(d.conns, conn)

	rec := d.records[userID]
	if len(d.connsOf(userID)) == 0 {
		rec.Online = false
	}
	return *rec, true
}

// identity returns the identity currently bound to conn.
func (d *directory) identity(conn Conn) (Identity, bool) {
	userID, ok := d.conns[conn]
	if !ok {
		return Identity{}, false
	}
	return *d.records[userID], true
}

// setOnline overrides the online flag of the identity bound to conn.
func (d *directory) setOnline(conn Conn, online bool) (Identity, bool) {
	userID, ok := d.conns[conn]
	if !ok {
		return Identity{}, false
	}
	rec := d.records[userID]
	rec.Online = online
	return *rec, true
}

// connsOf returns every connection currently bound to userID. An identity may
// hold several simultaneous connections.
func (d *directory) connsOf(userID string) []Conn {
	var conns []Conn
	for conn, id := range d.conns {
		if id == userID {
			conns = append(conns, conn)
		}
	}
	return conns
}

// snapshot returns the full identity directory, sorted by username so
// successive snapshots are comparable.
func (d *directory) snapshot() []Identity {
	out := make([]Identity, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
