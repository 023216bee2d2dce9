package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/comms/internal/domain/directory"
	"github.com/carelink/comms/internal/platform/auth"
)

var testSecret = []byte("test-signing-secret")

// stubDirectory serves a fixed set of users without a database.
type stubDirectory struct {
	users map[uuid.UUID]*directory.User
}

func (s *stubDirectory) GetUser(_ context.Context, id uuid.UUID) (*directory.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: no rows", id)
	}
	return u, nil
}

func mintWSToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// newWSServer spins up an echo server with the realtime routes and two
// known users, and returns the server plus their ids.
func newWSServer(t *testing.T) (*httptest.Server, *Manager, uuid.UUID, uuid.UUID) {
	t.Helper()

	doctorID := uuid.New()
	patientID := uuid.New()
	dir := &stubDirectory{users: map[uuid.UUID]*directory.User{
		doctorID:  {ID: doctorID, FullName: "Dr. Chen", Role: directory.RoleDoctor},
		patientID: {ID: patientID, FullName: "Pat Lee", Role: directory.RolePatient},
	}}

	m := NewManager(zerolog.Nop(), 0)
	h := NewHandler(m, dir, testSecret, zerolog.Nop())

	e := echo.New()
	h.RegisterRoutes(e.Group(""), e.Group("", auth.Middleware(testSecret)))

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, m, doctorID, patientID
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *gorillawebsocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	ws, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWSEvent(t *testing.T, ws *gorillawebsocket.Conn) Event {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	if err := ws.ReadJSON(&evt); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	return evt
}

func TestHandleConnect_RejectsMissingToken(t *testing.T) {
	srv, _, _, _ := newWSServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestHandleConnect_RejectsUnknownUser(t *testing.T) {
	srv, _, _, _ := newWSServer(t)

	token := mintWSToken(t, uuid.New())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail for a user missing from the directory")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func TestHandler_JoinAndMessageFlow(t *testing.T) {
	srv, _, doctorID, patientID := newWSServer(t)

	doctor := dialWS(t, srv, mintWSToken(t, doctorID))
	patient := dialWS(t, srv, mintWSToken(t, patientID))

	roomID := "consultation-" + uuid.NewString()

	if err := doctor.WriteJSON(clientEnvelope{Type: EventJoinRoom, RoomID: roomID}); err != nil {
		t.Fatalf("doctor join failed: %v", err)
	}
	if info := readWSEvent(t, doctor); info.Type != EventRoomInfo {
		t.Fatalf("expected room_info, got %s", info.Type)
	}

	if err := patient.WriteJSON(clientEnvelope{Type: EventJoinRoom, RoomID: roomID}); err != nil {
		t.Fatalf("patient join failed: %v", err)
	}
	if join := readWSEvent(t, doctor); join.Type != EventJoinRoom {
		t.Fatalf("expected join_room broadcast, got %s", join.Type)
	}
	if info := readWSEvent(t, patient); info.Type != EventRoomInfo {
		t.Fatalf("expected room_info, got %s", info.Type)
	}

	err := doctor.WriteJSON(clientEnvelope{
		Type:    EventText,
		RoomID:  roomID,
		Content: "How are you feeling today?",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	msg := readWSEvent(t, patient)
	if msg.Type != EventText || msg.Content != "How are you feeling today?" {
		t.Fatalf("patient got %s %q", msg.Type, msg.Content)
	}
	if msg.MessageID == "" {
		t.Fatal("broadcast message should carry a message id")
	}
	if msg.SenderID != doctorID.String() {
		t.Fatalf("message attributed to %s", msg.SenderID)
	}

	ack := readWSEvent(t, doctor)
	if ack.Type != EventAck || ack.MessageID != msg.MessageID {
		t.Fatalf("expected ack for %s, got %s %s", msg.MessageID, ack.Type, ack.MessageID)
	}
}

func TestHandler_MessageOutsideRoomReturnsError(t *testing.T) {
	srv, _, doctorID, _ := newWSServer(t)

	doctor := dialWS(t, srv, mintWSToken(t, doctorID))

	err := doctor.WriteJSON(clientEnvelope{Type: EventText, RoomID: "room-x", Content: "hi"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	evt := readWSEvent(t, doctor)
	if evt.Type != EventError {
		t.Fatalf("expected error event, got %s", evt.Type)
	}
}

func TestHandler_ReceiptFlow(t *testing.T) {
	srv, m, doctorID, patientID := newWSServer(t)

	doctor := dialWS(t, srv, mintWSToken(t, doctorID))
	patient := dialWS(t, srv, mintWSToken(t, patientID))

	roomID := "consultation-" + uuid.NewString()
	doctor.WriteJSON(clientEnvelope{Type: EventJoinRoom, RoomID: roomID})
	readWSEvent(t, doctor) // room_info
	patient.WriteJSON(clientEnvelope{Type: EventJoinRoom, RoomID: roomID})
	readWSEvent(t, doctor) // join_room
	readWSEvent(t, patient)

	doctor.WriteJSON(clientEnvelope{Type: EventText, RoomID: roomID, Content: "hello"})
	msg := readWSEvent(t, patient)
	readWSEvent(t, doctor) // ack

	patient.WriteJSON(clientEnvelope{Type: EventDelivered, RoomID: roomID, MessageID: msg.MessageID})
	if evt := readWSEvent(t, doctor); evt.Type != EventDelivered {
		t.Fatalf("expected delivered receipt, got %s", evt.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		st, ok := m.ReceiptStatus(msg.MessageID)
		if ok && len(st.DeliveredTo) == 1 && st.DeliveredTo[0] == patientID.String() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("receipt record never materialized: %v %v", st, ok)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandler_PresenceEndpoints(t *testing.T) {
	srv, _, doctorID, _ := newWSServer(t)

	token := mintWSToken(t, doctorID)
	dialWS(t, srv, token)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/presence/"+doctorID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("presence request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHandler_PresenceQueriesRequireAuth(t *testing.T) {
	srv, _, doctorID, _ := newWSServer(t)

	for _, path := range []string{
		"/presence/" + doctorID.String(),
		"/rooms/room-1/members",
		"/rooms/room-1/count",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s: expected 401 without a bearer token, got %d", path, resp.StatusCode)
		}
	}
}
