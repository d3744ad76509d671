// Package chat keeps the append-only message log with reaction and
// read-receipt accounting plus reverse-chronological paging.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// messageLog stores messages in insertion order, which equals chronological
// order since the log is append-only and ids never change once assigned.
// Not safe for concurrent use; the engine serializes access.
type messageLog struct {
	entries []*Message
	index   map[string]*Message
}

func newMessageLog() *messageLog {
	return &messageLog{index: make(map[string]*Message)}
}

// append assigns an id and server timestamp to a draft, initializes empty
// reaction and read-receipt accounting, and stores it.
func (l *messageLog) append(room string, from UserRef, to, text, msgType string, now time.Time) *Message {
	msg := &Message{
		ID:        uuid.NewString(),
		Room:      room,
		From:      from,
		To:        to,
		Text:      text,
		Type:      msgType,
		TS:        now.UnixMilli(),
		ReadBy:    []string{},
		Reactions: []Reaction{},
	}
	l.entries = append(l.entries, msg)
	l.index[msg.ID] = msg
	return msg
}

func (l *messageLog) get(id string) (*Message, error) {
	msg, ok := l.index[id]
	if !ok {
		return nil, &NotFoundError{MessageID: id}
	}
	return msg, nil
}

// addReaction appends one reaction to the message's ordered reaction list.
// Reactions are never removed, so the count is monotonically non-decreasing.
func (l *messageLog) addReaction(id, byUserID, symbol string, now time.Time) (*Message, error) {
	msg, err := l.get(id)
	if err != nil {
		return nil, err
	}
	msg.Reactions = append(msg.Reactions, Reaction{ByUserID: byUserID, Symbol: symbol, TS: now.UnixMilli()})
	return msg, nil
}

// markRead adds byUserID to the message's read set. Duplicate adds are no-ops.
func (l *messageLog) markRead(id, byUserID string) (*Message, error) {
	msg, err := l.get(id)
	if err != nil {
		return nil, err
	}
	for _, reader := range msg.ReadBy {
		if reader == byUserID {
			return msg, nil
		}
	}
	msg.ReadBy = append(msg.ReadBy, byUserID)
	return msg, nil
}

// page returns the page'th newest-first slice of the room's messages: page 1
// holds the most recent size messages, page N the next-older slice with no
// overlap or gap against page N-1 over a static log. Private messages are
// delivered only at send time and never appear in room pages.
func (l *messageLog) page(room string, page, size int) []Message {
	if size <= 0 {
		return []Message{}
	}
	if page < 1 {
		page = 1
	}

	out := make([]Message, 0, size)
	skip := (page - 1) * size
	for i := len(l.entries) - 1; i >= 0 && len(out) < size; i-- {
		msg := l.entries[i]
		if msg.To != "" || msg.Room != room {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, *msg)
	}
	return out
}
