package realtime

import (
	"testing"

	"github.com/carelink/comms/internal/domain/directory"
)

func TestSetTyping_NotifiesPeersExcludingTypist(t *testing.T) {
	m := newTestManager(0)

	typist := m.Connect("u-1", "Dr. Chen", directory.RoleDoctor)
	peer := m.Connect("u-2", "Pat Lee", directory.RolePatient)
	m.JoinRoom("u-1", "room-1")
	m.JoinRoom("u-2", "room-1")
	drainOutbox(typist)
	drainOutbox(peer)

	m.SetTyping("u-1", "room-1", true)

	evt := recvEvent(t, peer)
	if evt.Type != EventTypingStart || evt.SenderID != "u-1" {
		t.Fatalf("expected typing_start from u-1, got %s from %s", evt.Type, evt.SenderID)
	}
	expectNoEvent(t, typist)

	m.SetTyping("u-1", "room-1", false)
	if evt := recvEvent(t, peer); evt.Type != EventTypingStop {
		t.Fatalf("expected typing_stop, got %s", evt.Type)
	}
}

func TestSetTyping_RepeatedStateStillFansOut(t *testing.T) {
	m := newTestManager(0)

	m.Connect("u-1", "Dr. Chen", directory.RoleDoctor)
	peer := m.Connect("u-2", "Pat Lee", directory.RolePatient)
	m.JoinRoom("u-1", "room-1")
	m.JoinRoom("u-2", "room-1")
	drainOutbox(peer)

	// Every call broadcasts, even when the state is unchanged.
	m.SetTyping("u-1", "room-1", true)
	m.SetTyping("u-1", "room-1", true)
	for i := 0; i < 2; i++ {
		if evt := recvEvent(t, peer); evt.Type != EventTypingStart {
			t.Fatalf("call %d: expected typing_start, got %s", i+1, evt.Type)
		}
	}
	if got := m.TypingUsers("room-1"); len(got) != 1 {
		t.Fatalf("expected one typing user, got %v", got)
	}

	// Clearing a never-set state fans out too.
	m.SetTyping("u-1", "room-1", false)
	m.SetTyping("u-1", "room-1", false)
	for i := 0; i < 2; i++ {
		if evt := recvEvent(t, peer); evt.Type != EventTypingStop {
			t.Fatalf("call %d: expected typing_stop, got %s", i+1, evt.Type)
		}
	}
}

func TestSetTyping_RequiresMembership(t *testing.T) {
	m := newTestManager(0)

	m.Connect("u-1", "Dr. Chen", directory.RoleDoctor)
	member := m.Connect("u-2", "Pat Lee", directory.RolePatient)
	m.JoinRoom("u-2", "room-1")
	drainOutbox(member)

	m.SetTyping("u-1", "room-1", true)

	expectNoEvent(t, member)
	if len(m.TypingUsers("room-1")) != 0 {
		t.Fatal("non-member should not appear in the typing set")
	}
}

func TestTypingUsers_ClearedOnLeave(t *testing.T) {
	m := newTestManager(0)

	m.Connect("u-1", "Dr. Chen", directory.RoleDoctor)
	m.Connect("u-2", "Pat Lee", directory.RolePatient)
	m.JoinRoom("u-1", "room-1")
	m.JoinRoom("u-2", "room-1")

	m.SetTyping("u-1", "room-1", true)
	if len(m.TypingUsers("room-1")) != 1 {
		t.Fatal("expected one typing user")
	}

	m.LeaveRoom("u-1", "room-1")
	if len(m.TypingUsers("room-1")) != 0 {
		t.Fatal("leaving must clear the typing flag")
	}
}
