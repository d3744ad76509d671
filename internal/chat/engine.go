// Package chat wires the directory, room table, message log, and typing
// table together behind the Engine, the single entry point the transport
// layer calls for every inbound event.
package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Options tunes engine behavior.
type Options struct {
	// TypingTTL is how long a typing indicator survives without a refresh
	// before the engine sweeps it and emits an explicit stopTyping to its
	// scope. Zero disables the sweep entirely.
	TypingTTL time.Duration
}

// Engine validates each inbound action, updates the relevant state container,
// computes the fan-out set, and emits outbound events to the affected
// connections.
//
// A single mutex guards all state so every operation runs to completion
// before the next starts, reproducing the sequential-per-event guarantee the
// relay promises. There is deliberately no cross-event atomicity: state may
// change between two events from the same connection. Delivery is
// fire-and-forget through Conn.Deliver and failed targets are skipped, never
// retried.
//
// React and MarkRead accept any authenticated identity that knows a message
// id, including ids of private conversations it is not part of. That matches
// the relay's historical behavior and is a known policy choice, not an
// oversight.
type Engine struct {
	mu     sync.Mutex
	dir    *directory
	rooms  *roomTable
	log    *messageLog
	typing *typingTable

	logger    *slog.Logger
	typingTTL time.Duration
	clock     func() time.Time

	wg sync.WaitGroup
}

// NewEngine creates an engine with empty state. The logger must not be nil.
func NewEngine(logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		dir:       newDirectory(),
		rooms:     newRoomTable(),
		log:       newMessageLog(),
		typing:    newTypingTable(),
		logger:    logger,
		typingTTL: opts.TypingTTL,
		clock:     time.Now,
	}
}

// Start launches the typing expiry sweeper when a TTL is configured. The
// sweeper stops when ctx is canceled.
func (e *Engine) Start(ctx context.Context) {
	if e.typingTTL <= 0 {
		return
	}
	e.wg.Add(1)
	go e.sweepTyping(ctx)
	e.logger.Info("typing expiry sweeper started", "ttl", e.typingTTL)
}

// Wait blocks until background goroutines have exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Authenticate binds conn to the identity claimed by username, joins it to
// the global room, and publishes a presence refresh plus a join notification.
// The returned userId is stable for the username across reconnects.
func (e *Engine) Authenticate(conn Conn, username string) (Identity, error) {
	if username == "" {
		return Identity{}, &ValidationError{Field: "username", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	identity := e.dir.authenticate(conn, username)
	e.rooms.join(conn, GlobalRoom)
	e.publishPresence()
	e.notifyConns(e.rooms.members(GlobalRoom), username+" joined global room")

	e.logger.Info("authenticated", "username", username, "user_id", identity.UserID)
	return identity, nil
}

// Disconnect removes the connection's identity binding and every room
// membership it held, then publishes a presence refresh and a departure
// notification. Unknown connections are a no-op, so a failure on one
// connection can never corrupt state reachable by others.
func (e *Engine) Disconnect(conn Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rooms.dropAll(conn)
	identity, ok := e.dir.unbind(conn)
	if !ok {
		return
	}

	e.publishPresence()
	e.notifyAll(identity.Username + " disconnected")
	e.logger.Info("disconnected", "username", identity.Username, "user_id", identity.UserID)
}

// SetPresence overrides the online flag of the connection's identity and
// publishes a presence refresh.
func (e *Engine) SetPresence(conn Conn, online bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.dir.setOnline(conn, online); !ok {
		return ErrNotAuthenticated
	}
	e.publishPresence()
	return nil
}

// Join adds the connection to a room, creating it on first join, and emits a
// room-scoped notification.
func (e *Engine) Join(conn Conn, room string) error {
	if room == "" {
		return &ValidationError{Field: "room", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	identity, ok := e.dir.identity(conn)
	if !ok {
		return ErrNotAuthenticated
	}

	e.rooms.join(conn, room)
	e.notifyConns(e.rooms.members(room), identity.Username+" joined "+room)
	e.logger.Debug("joined room", "username", identity.Username, "room", room)
	return nil
}

// Leave removes the connection from a room and notifies the remaining
// members.
func (e *Engine) Leave(conn Conn, room string) error {
	if room == "" {
		return &ValidationError{Field: "room", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	identity, ok := e.dir.identity(conn)
	if !ok {
		return ErrNotAuthenticated
	}

	e.rooms.leave(conn, room)
	e.notifyConns(e.rooms.members(room), identity.Username+" left "+room)
	e.logger.Debug("left room", "username", identity.Username, "room", room)
	return nil
}

// SendMessage appends the message to the log and delivers it to the fan-out
// set computed at this instant: the room's current members for a broadcast,
// or every connection of the sender and recipient identities for a private
// message. Private messages additionally raise a toast notification on the
// recipient's connections. Returns an explicit delivery acknowledgment for
// the sender.
func (e *Engine) SendMessage(conn Conn, req MessageRequest) (DeliveryAck, error) {
	if req.Room != "" && req.RecipientUserID != "" {
		return DeliveryAck{}, &ValidationError{Field: "message", Reason: "room and recipientUserId are mutually exclusive"}
	}
	msgType := req.Type
	if msgType == "" {
		msgType = MessageTypeText
	}
	if msgType != MessageTypeText && msgType != MessageTypeImage {
		return DeliveryAck{}, &ValidationError{Field: "type", Reason: "must be text or image"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	identity, ok := e.dir.identity(conn)
	if !ok {
		return DeliveryAck{}, ErrNotAuthenticated
	}

	room := req.Room
	if room == "" && req.RecipientUserID == "" {
		room = GlobalRoom
	}

	msg := e.log.append(room, identity.UserRef, req.RecipientUserID, req.Text, msgType, e.clock())

	targets := e.fanout(msg)
	ev := Event{Name: EventMessage, Data: msg}
	for _, target := range targets {
		target.Deliver(ev)
	}

	if msg.To != "" {
		e.notifyConns(e.dir.connsOf(msg.To), "New private message from "+identity.Username)
	}

	e.logger.Debug("message routed",
		"id", msg.ID,
		"room", msg.Room,
		"private", msg.To != "",
		"targets", len(targets),
	)
	return DeliveryAck{ID: msg.ID, TS: msg.TS}, nil
}

// Typing records the identity as composing and signals the scope's audience.
// Fire-and-forget: no acknowledgment and nothing is logged to the message
// store.
func (e *Engine) Typing(conn Conn, req TypingRequest) error {
	return e.signalTyping(conn, req, true)
}

// StopTyping clears the identity's typing state and signals the scope's
// audience.
func (e *Engine) StopTyping(conn Conn, req TypingRequest) error {
	return e.signalTyping(conn, req, false)
}

func (e *Engine) signalTyping(conn Conn, req TypingRequest, start bool) error {
	if req.Room != "" && req.RecipientUserID != "" {
		return &ValidationError{Field: "typing", Reason: "room and recipientUserId are mutually exclusive"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	identity, ok := e.dir.identity(conn)
	if !ok {
		return ErrNotAuthenticated
	}

	scope := typingScope{Room: req.Room}
	if req.RecipientUserID != "" {
		scope = typingScope{From: identity.UserID, To: req.RecipientUserID}
	} else if scope.Room == "" {
		scope.Room = GlobalRoom
	}

	name := EventTyping
	if start {
		e.typing.start(scope, identity.UserID, e.clock())
	} else {
		e.typing.stop(scope, identity.UserID)
		name = EventStopTyping
	}

	ev := Event{Name: name, Data: TypingSignal{From: identity.UserRef}}
	for _, target := range e.typingAudience(scope, conn) {
		target.Deliver(ev)
	}
	return nil
}

// typingAudience computes who sees a typing signal: the scope's room members
// or the private recipient's connections, minus the emitting connection.
// Callers must hold the engine lock.
func (e *Engine) typingAudience(scope typingScope, except Conn) []Conn {
	var candidates []Conn
	if scope.Room != "" {
		candidates = e.rooms.members(scope.Room)
	} else {
		candidates = e.dir.connsOf(scope.To)
	}

	out := candidates[:0]
	for _, conn := range candidates {
		if conn != except {
			out = append(out, conn)
		}
	}
	return out
}

// React appends a reaction to the message and re-broadcasts the full updated
// message to the same fan-out shape the original message used.
func (e *Engine) React(conn Conn, messageID, symbol string) error {
	if messageID == "" {
		return &ValidationError{Field: "messageId", Reason: "must not be empty"}
	}
	if symbol == "" {
		return &ValidationError{Field: "reaction", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	identity, ok := e.dir.identity(conn)
	if !ok {
		return ErrNotAuthenticated
	}

	msg, err := e.log.addReaction(messageID, identity.UserID, symbol, e.clock())
	if err != nil {
		return err
	}

	ev := Event{Name: EventMessageUpdate, Data: msg}
	for _, target := range e.fanout(msg) {
		target.Deliver(ev)
	}
	return nil
}

// MarkRead adds the identity to the message's read set (idempotent) and
// emits the full current read set to the author's connections only. The
// whole fan-out saw the message, but only the author learns who read it.
func (e *Engine) MarkRead(conn Conn, messageID string) error {
	if messageID == "" {
		return &ValidationError{Field: "messageId", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	identity, ok := e.dir.identity(conn)
	if !ok {
		return ErrNotAuthenticated
	}

	msg, err := e.log.markRead(messageID, identity.UserID)
	if err != nil {
		return err
	}

	ev := Event{Name: EventReadUpdate, Data: ReadUpdate{MessageID: msg.ID, ReadBy: msg.ReadBy}}
	for _, target := range e.dir.connsOf(msg.From.UserID) {
		target.Deliver(ev)
	}
	return nil
}

// Page returns one reverse-chronological page of a room's history.
func (e *Engine) Page(room string, page, size int) []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.page(room, page, size)
}

// fanout computes the delivery set for a message: current room members for a
// broadcast, or the union of all connections bound to the sender and
// recipient identities for a private message. Callers must hold the engine
// lock.
func (e *Engine) fanout(msg *Message) []Conn {
	if msg.To == "" {
		return e.rooms.members(msg.Room)
	}

	seen := make(map[Conn]struct{})
	var out []Conn
	for _, conn := range e.dir.connsOf(msg.From.UserID) {
		if _, dup := seen[conn]; !dup {
			seen[conn] = struct{}{}
			out = append(out, conn)
		}
	}
	for _, conn := range e.dir.connsOf(msg.To) {
		if _, dup := seen[conn]; !dup {
			seen[conn] = struct{}{}
			out = append(out, conn)
		}
	}
	return out
}

// sweepTyping periodically expires stale typing entries and emits explicit
// stopTyping signals to their scopes, so an identity whose connection died
// mid-compose does not stay "typing" forever.
func (e *Engine) sweepTyping(ctx context.Context) {
	defer e.wg.Done()

	interval := e.typingTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.expireTyping(e.clock())
		}
	}
}

// expireTyping sweeps entries older than the TTL as of now.
func (e *Engine) expireTyping(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range e.typing.expire(now.Add(-e.typingTTL)) {
		rec, ok := e.dir.records[entry.userID]
		if !ok {
			continue
		}
		ev := Event{Name: EventStopTyping, Data: TypingSignal{From: rec.UserRef}}
		for _, target := range e.expiredAudience(entry) {
			target.Deliver(ev)
		}
		e.logger.Debug("typing entry expired", "username", rec.Username, "room", entry.scope.Room)
	}
}

// expiredAudience mirrors typingAudience for a swept entry, excluding the
// stale typist's own connections. Callers must hold the engine lock.
func (e *Engine) expiredAudience(entry typingEntry) []Conn {
	var candidates []Conn
	if entry.scope.Room != "" {
		candidates = e.rooms.members(entry.scope.Room)
	} else {
		candidates = e.dir.connsOf(entry.scope.To)
	}

	own := make(map[Conn]struct{})
	for _, conn := range e.dir.connsOf(entry.userID) {
		own[conn] = struct{}{}
	}

	out := candidates[:0]
	for _, conn := range candidates {
		if _, mine := own[conn]; !mine {
			out = append(out, conn)
		}
	}
	return out
}
