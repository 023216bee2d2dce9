package calls

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/comms/internal/domain/directory"
	"github.com/carelink/comms/internal/platform/auth"
)

// Notifier pushes call lifecycle events to participants' live connections.
type Notifier interface {
	NotifyCallInitiated(userID, roomName, sessionID, callType string) bool
	NotifyCallEnded(userID, roomName, sessionID string) bool
}

type Handler struct {
	svc      *Service
	issuer   *TokenIssuer
	admin    *RoomAdminClient
	dir      directory.Repository
	notifier Notifier
	roomURL  string
	tokenTTL time.Duration
	log      zerolog.Logger
}

func NewHandler(svc *Service, issuer *TokenIssuer, admin *RoomAdminClient, dir directory.Repository, notifier Notifier, roomURL string, tokenTTL time.Duration, log zerolog.Logger) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Handler{
		svc:      svc,
		issuer:   issuer,
		admin:    admin,
		dir:      dir,
		notifier: notifier,
		roomURL:  roomURL,
		tokenTTL: tokenTTL,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/calls", h.CreateCall, auth.RequireRole("doctor"))
	api.POST("/calls/:id/start", h.StartCall)
	api.POST("/calls/:id/end", h.EndCall)
	api.POST("/calls/:id/fail", h.FailCall)
	api.GET("/calls/:id", h.GetCall)
	api.GET("/calls", h.ListCalls, auth.RequireRole("admin"))
	api.GET("/calls/active", h.ActiveCalls, auth.RequireRole("admin"))
	api.POST("/calls/token", h.IssueToken)

	api.POST("/calls/:id/recording/start", h.StartRecording, auth.RequireRole("doctor", "admin"))
	api.POST("/calls/:id/recording/stop", h.StopRecording, auth.RequireRole("doctor", "admin"))
	api.DELETE("/calls/rooms/:room/participants/:identity", h.RemoveParticipant, auth.RequireRole("admin"))
}

type createCallRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	CallType      string    `json:"call_type"`
}

type callSessionResponse struct {
	CallSession
	Token   string `json:"token,omitempty"`
	RoomURL string `json:"room_url,omitempty"`
}

// CreateCall opens a new call session for an appointment. Only the
// appointment's doctor may initiate, and an appointment can carry at most
// one session that has not yet completed or failed.
func (h *Handler) CreateCall(c echo.Context) error {
	var req createCallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	callType, err := ParseCallType(req.CallType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.dir.GetAppointment(c.Request().Context(), req.AppointmentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	if auth.UserID(c) != appt.DoctorID.String() {
		return echo.NewHTTPError(http.StatusForbidden, "only the appointment's doctor can initiate a call")
	}
	if existing, ok := h.svc.GetSessionByAppointment(req.AppointmentID); ok {
		return echo.NewHTTPError(http.StatusConflict,
			"a call session already exists for this appointment: "+existing.SessionID)
	}

	session := h.svc.CreateSession(appt.ID, appt.DoctorID, appt.PatientID, callType)

	token, err := h.issuer.Issue(session.RoomName, auth.UserID(c), auth.UserName(c), directory.RoleDoctor, h.tokenTTL)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", session.SessionID).Msg("token issue failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue media token")
	}

	if h.notifier != nil {
		h.notifier.NotifyCallInitiated(appt.PatientID.String(), session.RoomName,
			session.SessionID, string(session.CallType))
	}

	return c.JSON(http.StatusCreated, callSessionResponse{
		CallSession: session,
		Token:       token,
		RoomURL:     h.roomURL,
	})
}

func (h *Handler) StartCall(c echo.Context) error {
	session, err := h.authorizedSession(c)
	if err != nil {
		return err
	}
	updated, ok := h.svc.StartCall(session.SessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "call is not pending")
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) EndCall(c echo.Context) error {
	session, err := h.authorizedSession(c)
	if err != nil {
		return err
	}
	updated, ok := h.svc.EndCall(session.SessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "call has already finished")
	}

	if h.notifier != nil {
		h.notifier.NotifyCallEnded(updated.DoctorID.String(), updated.RoomName, updated.SessionID)
		h.notifier.NotifyCallEnded(updated.PatientID.String(), updated.RoomName, updated.SessionID)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) FailCall(c echo.Context) error {
	session, err := h.authorizedSession(c)
	if err != nil {
		return err
	}
	updated, ok := h.svc.FailSession(session.SessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "call has already finished")
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) GetCall(c echo.Context) error {
	session, err := h.authorizedSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// ListCalls returns sessions filtered by status, or every active session
// when no filter is given.
func (h *Handler) ListCalls(c echo.Context) error {
	status := Status(c.QueryParam("status"))
	switch status {
	case "":
		status = StatusActive
	case StatusPending, StatusActive, StatusCompleted, StatusFailed:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}
	sessions := h.svc.SessionsByStatus(status)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":    len(sessions),
		"sessions": sessions,
	})
}

// ActiveCalls is the live monitoring endpoint for admin dashboards.
func (h *Handler) ActiveCalls(c echo.Context) error {
	sessions := h.svc.ActiveSessions()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total_active_calls": len(sessions),
		"calls":              sessions,
	})
}

type tokenRequest struct {
	RoomName      string     `json:"room_name"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type tokenResponse struct {
	Token           string `json:"token"`
	RoomName        string `json:"room_name"`
	RoomURL         string `json:"room_url"`
	ParticipantName string `json:"participant_name"`
	ParticipantRole string `json:"participant_role"`
	ExpiresIn       int    `json:"expires_in"`
}

// IssueToken mints a media token for the caller. The role comes from the
// caller's identity, never from the request; when an appointment is named,
// the caller must be one of its parties or an admin.
func (h *Handler) IssueToken(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RoomName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room_name is required")
	}

	role, err := directory.ParseRole(auth.UserRole(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "unknown role")
	}

	if req.AppointmentID != nil && role != directory.RoleAdmin {
		appt, err := h.dir.GetAppointment(c.Request().Context(), *req.AppointmentID)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		callerID := auth.UserID(c)
		if callerID != appt.DoctorID.String() && callerID != appt.PatientID.String() {
			return echo.NewHTTPError(http.StatusForbidden, "you are not a party to this appointment")
		}
	}

	token, err := h.issuer.Issue(req.RoomName, auth.UserID(c), auth.UserName(c), role, h.tokenTTL)
	if err != nil {
		h.log.Error().Err(err).Str("room", req.RoomName).Msg("token issue failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue media token")
	}

	return c.JSON(http.StatusOK, tokenResponse{
		Token:           token,
		RoomName:        req.RoomName,
		RoomURL:         h.roomURL,
		ParticipantName: auth.UserName(c),
		ParticipantRole: role.String(),
		ExpiresIn:       int(h.tokenTTL.Seconds()),
	})
}

// StartRecording starts a media-backend recording of an active call and
// remembers its recording id on the session.
func (h *Handler) StartRecording(c echo.Context) error {
	session, err := h.authorizedSession(c)
	if err != nil {
		return err
	}
	if session.Status != StatusActive {
		return echo.NewHTTPError(http.StatusConflict, "call is not active")
	}

	recordingID, err := h.admin.StartRecording(c.Request().Context(), session.RoomName)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", session.SessionID).Msg("start recording failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to start recording")
	}
	h.svc.AttachRecording(session.SessionID, recordingID)

	return c.JSON(http.StatusOK, map[string]string{
		"session_id":   session.SessionID,
		"recording_id": recordingID,
	})
}

func (h *Handler) StopRecording(c echo.Context) error {
	session, err := h.authorizedSession(c)
	if err != nil {
		return err
	}
	if session.RecordingID == "" {
		return echo.NewHTTPError(http.StatusConflict, "no recording in progress")
	}

	if err := h.admin.StopRecording(c.Request().Context(), session.RoomName, session.RecordingID); err != nil {
		h.log.Error().Err(err).Str("session_id", session.SessionID).Msg("stop recording failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to stop recording")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"session_id":   session.SessionID,
		"recording_id": session.RecordingID,
	})
}

// RemoveParticipant forcibly ejects an identity from a media room.
func (h *Handler) RemoveParticipant(c echo.Context) error {
	roomName := c.Param("room")
	identity := c.Param("identity")

	if err := h.admin.RemoveParticipant(c.Request().Context(), roomName, identity); err != nil {
		h.log.Error().Err(err).Str("room", roomName).Str("identity", identity).
			Msg("remove participant failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to remove participant")
	}
	return c.NoContent(http.StatusNoContent)
}

// authorizedSession resolves the :id path parameter and checks that the
// caller is one of the session's parties or an admin.
func (h *Handler) authorizedSession(c echo.Context) (CallSession, error) {
	session, ok := h.svc.GetSession(c.Param("id"))
	if !ok {
		return CallSession{}, echo.NewHTTPError(http.StatusNotFound, "call session not found")
	}

	callerID := auth.UserID(c)
	if auth.UserRole(c) != "admin" &&
		callerID != session.DoctorID.String() &&
		callerID != session.PatientID.String() {
		return CallSession{}, echo.NewHTTPError(http.StatusForbidden, "you are not a party to this call")
	}
	return session, nil
}
