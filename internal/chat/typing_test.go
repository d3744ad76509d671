package chat

import (
	"testing"
	"time"
)

func TestTypingTableStartStop(t *testing.T) {
	tb := newTypingTable()
	scope := typingScope{Room: "dev"}
	now := time.Unix(1700000000, 0)

	tb.start(scope, "u1", now)
	tb.start(scope, "u2", now)
	tb.start(scope, "u1", now.Add(time.Second)) // refresh, not duplicate

	if got := tb.typists(scope); len(got) != 2 {
		t.Fatalf("expected 2 typists, got %d", len(got))
	}

	tb.stop(scope, "u1")
	if got := tb.typists(scope); len(got) != 1 {
		t.Fatalf("expected 1 typist after stop, got %d", len(got))
	}

	tb.stop(scope, "u2")
	if got := tb.typists(scope); len(got) != 0 {
		t.Fatalf("expected empty scope, got %d", len(got))
	}
	if len(tb.active) != 0 {
		t.Error("empty scopes should be removed from the table")
	}

	// Stopping in an unknown scope is a no-op.
	tb.stop(typingScope{Room: "ops"}, "u1")
}

func TestTypingTableExpire(t *testing.T) {
	tb := newTypingTable()
	room := typingScope{Room: "dev"}
	pair := typingScope{From: "u1", To: "u2"}
	base := time.Unix(1700000000, 0)

	tb.start(room, "u1", base)
	tb.start(room, "u2", base.Add(10*time.Second))
	tb.start(pair, "u1", base)

	expired := tb.expire(base.Add(5 * time.Second))

	if len(expired) != 2 {
		t.Fatalf("expected 2 expired entries, got %d", len(expired))
	}
	for _, entry := range expired {
		if entry.userID != "u1" {
			t.Errorf("unexpected expired typist %q", entry.userID)
		}
	}
	if got := tb.typists(room); len(got) != 1 || got[0] != "u2" {
		t.Errorf("fresh typist should survive the sweep, got %v", got)
	}
	if _, ok := tb.active[pair]; ok {
		t.Error("fully expired scope should be dropped")
	}

	// Second sweep finds nothing new.
	if again := tb.expire(base.Add(5 * time.Second)); len(again) != 0 {
		t.Errorf("repeat sweep expired %d entries", len(again))
	}
}
