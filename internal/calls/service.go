package calls

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the in-memory call session orchestrator. Lookups return copies,
// so callers can never mutate tracked state; absent sessions are reported
// with a false second return, not an error.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates an empty orchestrator using the wall clock.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		sessions: make(map[string]*CallSession),
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// newServiceWithClock is used by tests that need deterministic durations.
func newServiceWithClock(log zerolog.Logger, now func() time.Time) *Service {
	s := NewService(log)
	s.now = now
	return s
}

// CreateSession registers a new pending session for an appointment. The
// session id and room name are freshly generated and collision resistant.
func (s *Service) CreateSession(appointmentID, doctorID, patientID uuid.UUID, callType CallType) CallSession {
	session := &CallSession{
		SessionID:     uuid.NewString(),
		RoomName:      "consultation-" + uuid.NewString(),
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		PatientID:     patientID,
		CallType:      callType,
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}

	s.mu.Lock()
	s.sessions[session.SessionID] = session
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", session.SessionID).
		Str("appointment_id", appointmentID.String()).
		Str("call_type", string(callType)).
		Msg("call session created")
	return *session
}

// StartCall marks a pending session active and stamps its start time.
// Sessions in any other state are left untouched.
func (s *Service) StartCall(sessionID string) (CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Status != StatusPending {
		return CallSession{}, false
	}
	started := s.now()
	session.StartedAt = &started
	session.Status = StatusActive

	s.log.Info().Str("session_id", sessionID).Msg("call started")
	return *session, true
}

// EndCall completes a session and computes its duration. A session that was
// never started completes with duration zero. Terminal sessions are left
// untouched.
func (s *Service) EndCall(sessionID string) (CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Status.Terminal() {
		return CallSession{}, false
	}
	ended := s.now()
	session.EndedAt = &ended
	session.Status = StatusCompleted
	if session.StartedAt != nil {
		session.DurationSeconds = int(ended.Sub(*session.StartedAt).Seconds())
	}

	s.log.Info().
		Str("session_id", sessionID).
		Int("duration_seconds", session.DurationSeconds).
		Msg("call ended")
	return *session, true
}

// FailSession moves a non-terminal session to the failed state.
func (s *Service) FailSession(sessionID string) (CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Status.Terminal() {
		return CallSession{}, false
	}
	ended := s.now()
	session.EndedAt = &ended
	session.Status = StatusFailed

	s.log.Warn().Str("session_id", sessionID).Msg("call failed")
	return *session, true
}

// AttachRecording stores the media backend's recording id on a session.
func (s *Service) AttachRecording(sessionID, recordingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	session.RecordingID = recordingID
	return true
}

// GetSession looks up a session by id.
func (s *Service) GetSession(sessionID string) (CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return CallSession{}, false
	}
	return *session, true
}

// GetSessionByAppointment returns the appointment's pending or active
// session, if one exists. Terminal sessions never match, so a new call can
// follow a completed one.
func (s *Service) GetSessionByAppointment(appointmentID uuid.UUID) (CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.AppointmentID == appointmentID && !session.Status.Terminal() {
			return *session, true
		}
	}
	return CallSession{}, false
}

// ActiveSessions returns every session currently in the active state.
func (s *Service) ActiveSessions() []CallSession {
	return s.SessionsByStatus(StatusActive)
}

// SessionsByStatus returns every session in the given state.
func (s *Service) SessionsByStatus(status Status) []CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CallSession
	for _, session := range s.sessions {
		if session.Status == status {
			out = append(out, *session)
		}
	}
	return out
}
