// Package chat defines the event names and payload shapes exchanged with the
// transport layer on both directions of the wire.
package chat

// Inbound event names delivered by the transport layer.
const (
	EventAuth        = "auth"
	EventJoin        = "join"
	EventLeave       = "leave"
	EventMessage     = "message"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventReact       = "react"
	EventRead        = "read"
	EventPresence    = "presence"
	EventGetMessages = "getMessages"
)

// Outbound event names emitted back to connections.
const (
	EventUserList      = "user:list"
	EventNotification  = "notification"
	EventMessageUpdate = "message:update"
	EventReadUpdate    = "read:update"
	EventMessagesPage  = "messages_page"
	EventAck           = "ack"
	EventError         = "error"
)

// Event is the envelope delivered to a connection: a named event plus its
// JSON-serializable payload.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Conn is one live transport session able to receive outbound events.
// Deliver is fire-and-forget: it must never block, and returns false when the
// session can no longer accept frames (closed or backed up). The engine does
// not retry failed deliveries.
type Conn interface {
	Deliver(ev Event) bool
}

// UserRef identifies a participant on the wire without presence state.
type UserRef struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// Identity is a directory entry: a stable participant plus its online flag.
type Identity struct {
	UserRef
	Online bool `json:"online"`
}

// Reaction is a single appended reaction on a message.
type Reaction struct {
	ByUserID string `json:"by"`
	Symbol   string `json:"reaction"`
	TS       int64  `json:"ts"`
}

// Message is a logged chat message. Exactly one of Room and To is set: Room
// for broadcast messages, To (a recipient userId) for private ones.
type Message struct {
	ID        string     `json:"id"`
	Room      string     `json:"room,omitempty"`
	From      UserRef    `json:"from"`
	To        string     `json:"to,omitempty"`
	Text      string     `json:"text"`
	Type      string     `json:"type"`
	TS        int64      `json:"ts"`
	ReadBy    []string   `json:"readBy"`
	Reactions []Reaction `json:"reactions"`
}

// Message payload types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// MessageRequest is the inbound payload of a "message" event.
type MessageRequest struct {
	Room            string `json:"room,omitempty"`
	RecipientUserID string `json:"recipientUserId,omitempty"`
	Text            string `json:"text"`
	Type            string `json:"type,omitempty"`
}

// TypingRequest is the inbound payload of "typing" and "stopTyping" events.
type TypingRequest struct {
	Room            string `json:"room,omitempty"`
	RecipientUserID string `json:"recipientUserId,omitempty"`
}

// PageRequest is the inbound payload of a "getMessages" event.
type PageRequest struct {
	Room     string `json:"room,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// DeliveryAck acknowledges a sent message back to its author. "Delivered"
// means handed to the transport layer, not confirmed rendered.
type DeliveryAck struct {
	ID string `json:"id"`
	TS int64  `json:"ts"`
}

// Notification is a human-readable toast pushed outside the message stream.
type Notification struct {
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// TypingSignal is the outbound payload of "typing" and "stopTyping" events.
type TypingSignal struct {
	From UserRef `json:"from"`
}

// ReadUpdate carries the full read-receipt set of one message to its author.
type ReadUpdate struct {
	MessageID string   `json:"messageId"`
	ReadBy    []string `json:"readBy"`
}

// MessagesPage is one reverse-chronological slice of a room's history.
type MessagesPage struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// ErrorEvent surfaces a rejected request back to the requester instead of
// silently dropping it.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
