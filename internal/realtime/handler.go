package realtime

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/comms/internal/domain/directory"
	"github.com/carelink/comms/internal/platform/auth"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin is enforced by the CORS layer in front.
	},
}

// UserDirectory resolves authenticated identities to directory records.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*directory.User, error)
}

// clientEnvelope is an inbound frame from a WebSocket client.
type clientEnvelope struct {
	Type      EventType              `json:"type"`
	RoomID    string                 `json:"room_id"`
	Content   string                 `json:"content"`
	MessageID string                 `json:"message_id"`
	IsTyping  bool                   `json:"is_typing"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Handler terminates WebSocket connections and routes client frames into
// the Manager.
type Handler struct {
	manager *Manager
	users   UserDirectory
	secret  []byte
	log     zerolog.Logger
}

// NewHandler creates a Handler bound to the given Manager and directory.
func NewHandler(manager *Manager, users UserDirectory, secret []byte, log zerolog.Logger) *Handler {
	return &Handler{manager: manager, users: users, secret: secret, log: log}
}

// RegisterRoutes registers the WebSocket endpoint on ws and the presence
// queries on api. The upgrade endpoint authenticates its own query token, so
// ws must not carry the bearer middleware; the queries expose member names
// and roles and belong behind it.
func (h *Handler) RegisterRoutes(ws, api *echo.Group) {
	ws.GET("/ws", h.HandleConnect)
	api.GET("/presence/:id", h.GetPresence)
	api.GET("/rooms/:id/members", h.GetRoomMembers)
	api.GET("/rooms/:id/count", h.GetRoomCount)
}

// HandleConnect authenticates the token query parameter, resolves the user
// against the directory, upgrades the connection and starts the pumps.
// Browsers cannot set headers on WebSocket upgrades, hence the query token.
func (h *Handler) HandleConnect(c echo.Context) error {
	tokenString := c.QueryParam("token")
	if tokenString == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, err := auth.ValidateAccessToken(h.secret, tokenString)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
	}

	user, err := h.users.GetUser(c.Request().Context(), userID)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID.String()).Msg("unknown user on connect")
		return echo.NewHTTPError(http.StatusForbidden, "unknown user")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := h.manager.Connect(user.ID.String(), user.FullName, user.Role)

	go h.writePump(conn, ws)
	go h.readPump(conn, ws)

	return nil
}

// readPump drains inbound frames and dispatches them. Frames are handled
// one at a time on this goroutine, so a sender's events reach each room in
// the order they were sent.
func (h *Handler) readPump(conn *Connection, ws *gorillawebsocket.Conn) {
	defer func() {
		h.manager.disconnectConn(conn)
		ws.Close()
	}()

	for {
		var env clientEnvelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		h.manager.Touch(conn.UserID)
		h.dispatch(conn, env)
	}
}

// writePump drains the connection's outbox onto the socket. A write error
// closes the socket, which ends the read pump and tears the connection down.
func (h *Handler) writePump(conn *Connection, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for {
		select {
		case evt := <-conn.Outbox():
			if err := ws.WriteJSON(evt); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

func (h *Handler) dispatch(conn *Connection, env clientEnvelope) {
	switch env.Type {
	case EventJoinRoom:
		if env.RoomID == "" {
			h.sendError(conn, "", "room_id is required")
			return
		}
		h.manager.JoinRoom(conn.UserID, env.RoomID)

	case EventLeaveRoom:
		if env.RoomID == "" {
			h.sendError(conn, "", "room_id is required")
			return
		}
		h.manager.LeaveRoom(conn.UserID, env.RoomID)

	case EventText, EventImage, EventFile:
		h.handleMessage(conn, env)

	case EventTypingStart:
		h.manager.SetTyping(conn.UserID, env.RoomID, true)

	case EventTypingStop:
		h.manager.SetTyping(conn.UserID, env.RoomID, false)

	case EventDelivered:
		if env.MessageID == "" || env.RoomID == "" {
			h.sendError(conn, env.RoomID, "message_id and room_id are required")
			return
		}
		h.manager.MarkDelivered(env.MessageID, conn.UserID, env.RoomID)

	case EventRead:
		if env.MessageID == "" || env.RoomID == "" {
			h.sendError(conn, env.RoomID, "message_id and room_id are required")
			return
		}
		h.manager.MarkRead(env.MessageID, conn.UserID, env.RoomID)

	default:
		h.sendError(conn, env.RoomID, "unknown event type: "+string(env.Type))
	}
}

// handleMessage broadcasts a chat message to the sender's room and confirms
// it back to the sender with an ack carrying the message id.
func (h *Handler) handleMessage(conn *Connection, env clientEnvelope) {
	if env.RoomID == "" {
		h.sendError(conn, "", "room_id is required")
		return
	}
	if !h.manager.IsMember(conn.UserID, env.RoomID) {
		h.sendError(conn, env.RoomID, "not a member of room "+env.RoomID)
		return
	}

	messageID := env.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}

	evt := userEvent(env.Type, env.RoomID, conn)
	evt.Content = env.Content
	evt.MessageID = messageID
	evt.Metadata = env.Metadata

	h.manager.BroadcastToRoom(env.RoomID, evt, conn.UserID)

	ack := systemEvent(EventAck, env.RoomID)
	ack.MessageID = messageID
	h.manager.SendDirect(conn.UserID, ack)
}

func (h *Handler) sendError(conn *Connection, roomID, msg string) {
	evt := systemEvent(EventError, roomID)
	evt.Content = msg
	h.manager.SendDirect(conn.UserID, evt)
}

// GetPresence reports an identity's connection state, including when it
// last sent a frame.
func (h *Handler) GetPresence(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Presence(c.Param("id")))
}

// GetRoomMembers returns the member snapshot of a room.
func (h *Handler) GetRoomMembers(c echo.Context) error {
	roomID := c.Param("id")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"members": h.manager.RoomMembers(roomID),
	})
}

// GetRoomCount returns the number of members in a room.
func (h *Handler) GetRoomCount(c echo.Context) error {
	roomID := c.Param("id")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"count":   h.manager.RoomCount(roomID),
	})
}
