// Package server decodes inbound event envelopes and dispatches them to the
// routing engine, surfacing explicit acknowledgments and errors back to the
// requester instead of silently dropping bad requests.
package server

import (
	"encoding/json"
	"errors"

	"github.com/chatrelay/chatrelay/internal/chat"
)

// envelope is the inbound wire frame: a named event plus its raw payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// handleFrame parses one inbound frame and dispatches it. A failure is
// reported to this connection only and never affects any other session.
func (c *Client) handleFrame(raw []byte) bool {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("malformed inbound frame", "error", err)
		c.sendError("validation", "malformed event envelope")
		return false
	}

	if err := c.dispatch(env); err != nil {
		c.logger.Debug("request rejected", "event", env.Event, "error", err)
		c.sendError(errorCode(err), err.Error())
		return false
	}
	return true
}

func (c *Client) dispatch(env envelope) error {
	engine := c.hub.engine

	switch env.Event {
	case chat.EventAuth:
		var req struct {
			Username string `json:"username"`
		}
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		_, err := engine.Authenticate(c, req.Username)
		return err

	case chat.EventJoin:
		var req struct {
			Room string `json:"room"`
		}
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		return engine.Join(c, req.Room)

	case chat.EventLeave:
		var req struct {
			Room string `json:"room"`
		}
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		return engine.Leave(c, req.Room)

	case chat.EventMessage:
		var req chat.MessageRequest
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		ack, err := engine.SendMessage(c, req)
		if err != nil {
			return err
		}
		c.Deliver(chat.Event{Name: chat.EventAck, Data: ack})
		return nil

	case chat.EventTyping:
		var req chat.TypingRequest
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		return engine.Typing(c, req)

	case chat.EventStopTyping:
		var req chat.TypingRequest
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		return engine.StopTyping(c, req)

	case chat.EventReact:
		var req struct {
			MessageID string `json:"messageId"`
			Reaction  string `json:"reaction"`
		}
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		return engine.React(c, req.MessageID, req.Reaction)

	case chat.EventRead:
		var req struct {
			MessageID string `json:"messageId"`
		}
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		return engine.MarkRead(c, req.MessageID)

	case chat.EventPresence:
		var req struct {
			Online bool `json:"online"`
		}
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		return engine.SetPresence(c, req.Online)

	case chat.EventGetMessages:
		var req chat.PageRequest
		if err := unmarshalPayload(env, &req); err != nil {
			return err
		}
		room := req.Room
		if room == "" {
			room = chat.GlobalRoom
		}
		page := req.Page
		if page < 1 {
			page = 1
		}
		size := clampPageSize(req.PageSize, c.history)
		messages := engine.Page(room, page, size)
		c.Deliver(chat.Event{
			Name: chat.EventMessagesPage,
			Data: chat.MessagesPage{Messages: messages, Page: page, PageSize: size},
		})
		return nil

	default:
		return &chat.ValidationError{Field: "event", Reason: "unknown event " + env.Event}
	}
}

func unmarshalPayload(env envelope, dst any) error {
	if len(env.Data) == 0 {
		return &chat.ValidationError{Field: env.Event, Reason: "missing payload"}
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return &chat.ValidationError{Field: env.Event, Reason: "malformed payload"}
	}
	return nil
}

func clampPageSize(size int, bounds HistoryConfig) int {
	if size < 1 {
		return bounds.DefaultPageSize
	}
	if size > bounds.MaxPageSize {
		return bounds.MaxPageSize
	}
	return size
}

// sendError surfaces a rejected request back to this connection.
func (c *Client) sendError(code, message string) {
	c.Deliver(chat.Event{Name: chat.EventError, Data: chat.ErrorEvent{Code: code, Message: message}})
}

// errorCode maps engine errors onto wire error codes.
func errorCode(err error) string {
	if errors.Is(err, chat.ErrNotAuthenticated) {
		return "unauthenticated"
	}
	var notFound *chat.NotFoundError
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var validation *chat.ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	return "internal"
}
