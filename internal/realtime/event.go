// Package realtime is the chat fan-out core: it owns the live connections,
// room membership, typing state, and delivery receipts for the platform's
// doctor-patient messaging. Durable message history is written by the
// surrounding layer, never here.
package realtime

import (
	"time"

	"github.com/carelink/comms/internal/domain/directory"
)

// EventType enumerates the structured events exchanged with clients.
type EventType string

const (
	// Chat messages
	EventText   EventType = "text"
	EventImage  EventType = "image"
	EventFile   EventType = "file"
	EventSystem EventType = "system"

	// Status
	EventTypingStart     EventType = "typing_start"
	EventTypingStop      EventType = "typing_stop"
	EventPresenceOnline  EventType = "presence_online"
	EventPresenceOffline EventType = "presence_offline"

	// Delivery receipts
	EventDelivered EventType = "delivered"
	EventRead      EventType = "read"

	// Room events
	EventJoinRoom  EventType = "join_room"
	EventLeaveRoom EventType = "leave_room"
	EventRoomInfo  EventType = "room_info"

	// Call events
	EventCallInitiated EventType = "call_initiated"
	EventCallAccepted  EventType = "call_accepted"
	EventCallRejected  EventType = "call_rejected"
	EventCallEnded     EventType = "call_ended"

	// Errors
	EventError EventType = "error"
	EventAck   EventType = "ack"
)

// Event is the wire message pushed to connected clients. Events are
// transient: once fanned out they are gone from this core.
type Event struct {
	Type       EventType              `json:"type"`
	RoomID     string                 `json:"room_id"`
	SenderID   string                 `json:"sender_id"`
	SenderName string                 `json:"sender_name"`
	SenderRole string                 `json:"sender_role"`
	Content    string                 `json:"content,omitempty"`
	MessageID  string                 `json:"message_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// systemEvent builds an event attributed to the system rather than a user.
func systemEvent(t EventType, roomID string) Event {
	return Event{
		Type:       t,
		RoomID:     roomID,
		SenderName: "System",
		SenderRole: "system",
		Timestamp:  time.Now().UTC(),
	}
}

// userEvent builds an event attributed to a connected user.
func userEvent(t EventType, roomID string, c *Connection) Event {
	return Event{
		Type:       t,
		RoomID:     roomID,
		SenderID:   c.UserID,
		SenderName: c.Name,
		SenderRole: c.Role.String(),
		Timestamp:  time.Now().UTC(),
	}
}

// MemberInfo describes one room member in a room_info snapshot.
type MemberInfo struct {
	UserID   string         `json:"user_id"`
	UserName string         `json:"user_name"`
	UserRole directory.Role `json:"user_role"`
	IsOnline bool           `json:"is_online"`
	IsTyping bool           `json:"is_typing"`
}
