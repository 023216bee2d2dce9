// Package calls orchestrates audio/video call sessions between doctors and
// patients and issues the media-server access tokens participants use to
// join them. Session state lives in memory; the media backend owns the
// actual rooms.
package calls

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallType is the kind of media a session carries.
type CallType string

const (
	CallAudio       CallType = "audio"
	CallVideo       CallType = "video"
	CallScreenShare CallType = "screen_share"
)

// ParseCallType maps a request string onto a CallType. The empty string
// means the caller did not choose and gets video; anything else
// unrecognized is rejected.
func ParseCallType(s string) (CallType, error) {
	switch CallType(s) {
	case CallAudio, CallVideo, CallScreenShare:
		return CallType(s), nil
	case "":
		return CallVideo, nil
	default:
		return "", fmt.Errorf("unknown call type %q", s)
	}
}

// Status is a call session's lifecycle state. Completed and Failed are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CallSession tracks one call between the two parties of an appointment.
type CallSession struct {
	SessionID       string     `json:"session_id"`
	RoomName        string     `json:"room_name"`
	AppointmentID   uuid.UUID  `json:"appointment_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	CallType        CallType   `json:"call_type"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	RecordingID     string     `json:"recording_id,omitempty"`
}
