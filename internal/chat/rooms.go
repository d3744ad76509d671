// Package chat tracks room membership: which connections are joined to which
// named broadcast groups.
package chat

// GlobalRoom is the implicit default room every connection joins at auth time.
const GlobalRoom = "global"

// roomTable maps room names to their member connection sets. Rooms are
// created on first join and membership is per-connection: a second connection
// of the same identity joins rooms independently. Not safe for concurrent
// use; the engine serializes access.
type roomTable struct {
	rooms map[string]map[Conn]struct{}
}

func newRoomTable() *roomTable {
	return &roomTable{rooms: make(map[string]map[Conn]struct{})}
}

func (t *roomTable) join(conn Conn, room string) {
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[Conn]struct{})
		t.rooms[room] = members
	}
	members[conn] = struct{}{}
}

func (t *roomTable) leave(conn Conn, room string) bool {
	members, ok := t.rooms[room]
	if !ok {
		return false
	}
	if _, member := members[conn]; !member {
		return false
	}
	delete(members, conn)
	return true
}

// members returns the current member set of a room, used by the engine as the
// broadcast fan-out set. The returned slice is a snapshot.
func (t *roomTable) members(room string) []Conn {
	members := t.rooms[room]
	out := make([]Conn, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	return out
}

// dropAll removes a connection from every room it is joined to. Called on
// disconnect: a closed connection can never be a fan-out target again.
func (t *roomTable) dropAll(conn Conn) {
	for _, members := range t.rooms {
		delete(members, conn)
	}
}
