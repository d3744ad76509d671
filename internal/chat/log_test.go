package chat

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func seedLog(l *messageLog, room string, count int) {
	from := UserRef{Username: "alice", UserID: "u-alice"}
	base := time.Unix(1700000000, 0)
	for i := 0; i < count; i++ {
		l.append(room, from, "", fmt.Sprintf("%s-%d", room, i), MessageTypeText, base.Add(time.Duration(i)*time.Second))
	}
}

func TestAppendAssignsIdentityAndAccounting(t *testing.T) {
	l := newMessageLog()
	now := time.Unix(1700000000, 0)

	msg := l.append("global", UserRef{Username: "alice", UserID: "u1"}, "", "hi", MessageTypeText, now)

	if msg.ID == "" {
		t.Error("append did not assign an id")
	}
	if msg.TS != now.UnixMilli() {
		t.Errorf("TS = %d, want %d", msg.TS, now.UnixMilli())
	}
	if msg.ReadBy == nil || len(msg.ReadBy) != 0 {
		t.Error("readBy should be initialized empty")
	}
	if msg.Reactions == nil || len(msg.Reactions) != 0 {
		t.Error("reactions should be initialized empty")
	}

	got, err := l.get(msg.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != msg.ID {
		t.Error("lookup returned a different message")
	}
}

func TestPageNewestFirstNoGapNoOverlap(t *testing.T) {
	l := newMessageLog()
	seedLog(l, "dev", 7)
	seedLog(l, "global", 3)

	page1 := l.page("dev", 1, 3)
	page2 := l.page("dev", 2, 3)
	page3 := l.page("dev", 3, 3)

	var texts []string
	for _, p := range [][]Message{page1, page2, page3} {
		for _, m := range p {
			texts = append(texts, m.Text)
		}
	}

	want := []string{"dev-6", "dev-5", "dev-4", "dev-3", "dev-2", "dev-1", "dev-0"}
	if len(texts) != len(want) {
		t.Fatalf("paged %d messages, want %d", len(texts), len(want))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestPageEdgeCases(t *testing.T) {
	l := newMessageLog()
	seedLog(l, "dev", 2)

	tests := []struct {
		name string
		room string
		page int
		size int
		want int
	}{
		{name: "past the end", room: "dev", page: 5, size: 10, want: 0},
		{name: "unknown room", room: "ops", page: 1, size: 10, want: 0},
		{name: "zero size", room: "dev", page: 1, size: 0, want: 0},
		{name: "page below one treated as one", room: "dev", page: 0, size: 10, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.page(tt.room, tt.page, tt.size); len(got) != tt.want {
				t.Errorf("page(%q, %d, %d) returned %d messages, want %d",
					tt.room, tt.page, tt.size, len(got), tt.want)
			}
		})
	}
}

func TestPageExcludesPrivateMessages(t *testing.T) {
	l := newMessageLog()
	now := time.Unix(1700000000, 0)
	from := UserRef{Username: "alice", UserID: "u1"}

	l.append("dev", from, "", "public", MessageTypeText, now)
	l.append("", from, "u2", "private", MessageTypeText, now)

	got := l.page("dev", 1, 10)
	if len(got) != 1 || got[0].Text != "public" {
		t.Fatalf("room page = %+v, want only the public message", got)
	}
	if got := l.page("", 1, 10); len(got) != 0 {
		t.Errorf("private messages must not be pageable, got %d", len(got))
	}
}

func TestAddReactionAppendOnly(t *testing.T) {
	l := newMessageLog()
	now := time.Unix(1700000000, 0)
	msg := l.append("dev", UserRef{UserID: "u1"}, "", "hi", MessageTypeText, now)

	if _, err := l.addReaction(msg.ID, "u2", "+1", now); err != nil {
		t.Fatalf("addReaction failed: %v", err)
	}
	updated, err := l.addReaction(msg.ID, "u3", "🎉", now.Add(time.Second))
	if err != nil {
		t.Fatalf("addReaction failed: %v", err)
	}

	if len(updated.Reactions) != 2 {
		t.Fatalf("expected 2 reactions, got %d", len(updated.Reactions))
	}
	if updated.Reactions[0].Symbol != "+1" || updated.Reactions[1].Symbol != "🎉" {
		t.Error("reactions must keep insertion order")
	}

	_, err = l.addReaction("missing", "u2", "+1", now)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	l := newMessageLog()
	now := time.Unix(1700000000, 0)
	msg := l.append("dev", UserRef{UserID: "u1"}, "", "hi", MessageTypeText, now)

	for i := 0; i < 3; i++ {
		if _, err := l.markRead(msg.ID, "u2"); err != nil {
			t.Fatalf("markRead failed: %v", err)
		}
	}
	updated, err := l.markRead(msg.ID, "u3")
	if err != nil {
		t.Fatalf("markRead failed: %v", err)
	}

	if len(updated.ReadBy) != 2 {
		t.Fatalf("readBy = %v, want exactly two readers", updated.ReadBy)
	}

	_, err = l.markRead("missing", "u2")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
