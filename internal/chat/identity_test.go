package chat

import "testing"

func TestDirectoryMultipleConnectionsPerIdentity(t *testing.T) {
	d := newDirectory()
	phone := &fakeConn{name: "phone"}
	laptop := &fakeConn{name: "laptop"}

	first := d.authenticate(phone, "alice")
	second := d.authenticate(laptop, "alice")

	if first.UserID != second.UserID {
		t.Fatal("same username must resolve to the same userId")
	}
	if got := d.connsOf(first.UserID); len(got) != 2 {
		t.Fatalf("expected 2 bound connections, got %d", len(got))
	}

	// Identity stays online until its last connection unbinds.
	if identity, _ := d.unbind(phone); !identity.Online {
		t.Error("identity went offline while a connection remained")
	}
	if identity, _ := d.unbind(laptop); identity.Online {
		t.Error("identity stayed online after its last connection unbound")
	}

	if _, ok := d.unbind(laptop); ok {
		t.Error("double unbind should report no binding")
	}

	// The directory record survives for the process lifetime.
	if got := d.snapshot(); len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("snapshot = %+v, want the persisted alice entry", got)
	}
}

func TestDirectoryReauthRemapsConnection(t *testing.T) {
	d := newDirectory()
	conn := &fakeConn{}

	alice := d.authenticate(conn, "alice")
	bob := d.authenticate(conn, "bob")

	if alice.UserID == bob.UserID {
		t.Fatal("different usernames must not share a userId")
	}
	if identity, _ := d.identity(conn); identity.UserID != bob.UserID {
		t.Error("connection should be bound to the most recent identity")
	}

	snapshot := d.snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 directory entries, got %d", len(snapshot))
	}
	for _, identity := range snapshot {
		if identity.Username == "alice" && identity.Online {
			t.Error("abandoned identity should be offline")
		}
	}
}
