package server

import "testing"

// TestRegistryUnjoinedConnection verifies that a connection which never
// joined reports no membership.
func TestRegistryUnjoinedConnection(t *testing.T) {
	r := NewRegistry()
	c := &Client{}

	room, username, joined := r.Membership(c)
	if joined {
		t.Error("Expected unjoined connection to report no membership")
	}
	if room != "" || username != nil {
		t.Errorf("Expected zero membership, got room=%q username=%v", room, username)
	}
}

// TestRegistryJoinOverwrites verifies that joining again replaces the
// previous room and display name unconditionally.
func TestRegistryJoinOverwrites(t *testing.T) {
	r := NewRegistry()
	c := &Client{}

	alice := "alice"
	r.Join(c, "general", &alice)

	room, username, joined := r.Membership(c)
	if !joined || room != "general" || username == nil || *username != "alice" {
		t.Fatalf("Unexpected membership after first join: room=%q username=%v joined=%v", room, username, joined)
	}

	r.Join(c, "random", nil)

	room, username, joined = r.Membership(c)
	if !joined {
		t.Fatal("Expected connection to remain joined after rejoin")
	}
	if room != "random" {
		t.Errorf("Expected room random after rejoin, got %q", room)
	}
	if username != nil {
		t.Errorf("Expected username to be cleared on anonymous rejoin, got %q", *username)
	}
}

// TestRegistryLeave verifies that leaving discards the membership entry.
func TestRegistryLeave(t *testing.T) {
	r := NewRegistry()
	c := &Client{}

	r.Join(c, "general", nil)
	r.Leave(c)

	if _, _, joined := r.Membership(c); joined {
		t.Error("Expected no membership after leave")
	}
}

// TestRegistryIsolatesConnections verifies memberships are tracked per
// connection.
func TestRegistryIsolatesConnections(t *testing.T) {
	r := NewRegistry()
	c1 := &Client{}
	c2 := &Client{}

	r.Join(c1, "general", nil)
	r.Join(c2, "random", nil)

	if room, _, _ := r.Membership(c1); room != "general" {
		t.Errorf("Expected c1 in general, got %q", room)
	}
	if room, _, _ := r.Membership(c2); room != "random" {
		t.Errorf("Expected c2 in random, got %q", room)
	}
}
