package realtime

import (
	"time"

	"github.com/carelink/comms/internal/domain/directory"
)

// Connect registers a live connection for an identity. If the identity
// already has one, the old connection is evicted (best effort, errors
// ignored) so that at most one live connection exists per identity; the
// evicted connection's room memberships are cleaned up exactly as on
// disconnect.
func (m *Manager) Connect(userID, name string, role directory.Role) *Connection {
	conn := &Connection{
		UserID:       userID,
		Name:         name,
		Role:         role,
		ConnectedAt:  time.Now().UTC(),
		rooms:        make(map[string]struct{}),
		lastActivity: time.Now().UTC(),
		send:         make(chan Event, m.sendBuffer),
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	old := m.conns[userID]
	var pending []delivery
	if old != nil {
		pending = m.removeFromRoomsLocked(old)
	}
	m.conns[userID] = conn
	m.mu.Unlock()

	if old != nil {
		old.close()
		m.log.Info().Str("user_id", userID).Msg("evicted previous connection")
	}
	m.deliverAll(pending)

	m.log.Info().
		Str("user_id", userID).
		Str("user_name", name).
		Str("role", role.String()).
		Msg("user connected")
	return conn
}

// Disconnect tears down whatever connection the identity currently has. It is
// idempotent and a no-op for unknown identities. Every room the identity was
// in gets the same cleanup as an explicit leave.
func (m *Manager) Disconnect(userID string) {
	m.mu.Lock()
	conn := m.conns[userID]
	m.mu.Unlock()
	if conn == nil {
		return
	}
	m.disconnectConn(conn)
}

// disconnectConn tears down a specific connection. If the identity has since
// reconnected, the registry entry belongs to the new connection and is left
// alone; only the stale connection is closed.
func (m *Manager) disconnectConn(conn *Connection) {
	m.mu.Lock()
	if m.conns[conn.UserID] != conn {
		m.mu.Unlock()
		conn.close()
		return
	}
	delete(m.conns, conn.UserID)
	pending := m.removeFromRoomsLocked(conn)
	m.mu.Unlock()

	conn.close()
	m.deliverAll(pending)
	m.log.Info().Str("user_id", conn.UserID).Msg("user disconnected")
}

// removeFromRoomsLocked removes the connection from every room it joined,
// garbage-collecting empty rooms and their typing sets, and returns the
// departure broadcasts to perform once the lock is released.
// Callers must hold m.mu.
func (m *Manager) removeFromRoomsLocked(conn *Connection) []delivery {
	var pending []delivery
	for roomID := range conn.rooms {
		m.leaveRoomLocked(conn.UserID, roomID)
		if rest := m.roomConnsLocked(roomID, conn.UserID); len(rest) > 0 {
			pending = append(pending, delivery{
				recipients: rest,
				event:      userEvent(EventLeaveRoom, roomID, conn),
			})
		}
	}
	conn.rooms = make(map[string]struct{})
	return pending
}

// IsOnline reports whether an identity currently holds a live connection.
func (m *Manager) IsOnline(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[userID]
	return ok
}

// ConnectionCount returns the number of live connections.
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Touch records inbound activity for an identity.
func (m *Manager) Touch(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[userID]; ok {
		conn.lastActivity = time.Now().UTC()
	}
}

// PresenceInfo describes one identity's connection state. LastActive is the
// time of the last inbound frame, so dashboards can tell a live participant
// from an idle socket.
type PresenceInfo struct {
	UserID      string    `json:"user_id"`
	IsOnline    bool      `json:"is_online"`
	ConnectedAt time.Time `json:"connected_at"`
	LastActive  time.Time `json:"last_active"`
}

// Presence returns the connection state for an identity. Offline identities
// get a zero ConnectedAt and LastActive.
func (m *Manager) Presence(userID string) PresenceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := PresenceInfo{UserID: userID}
	if conn, ok := m.conns[userID]; ok {
		info.IsOnline = true
		info.ConnectedAt = conn.ConnectedAt
		info.LastActive = conn.lastActivity
	}
	return info
}
