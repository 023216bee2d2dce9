package realtime

// BroadcastToRoom delivers an event to every online member of a room except
// the excluded identity. The recipient set is snapshotted under the lock so
// membership churn during fan-out cannot skip or duplicate a recipient.
// A member whose outbox cannot accept the event is disconnected; the rest of
// the fan-out is unaffected.
func (m *Manager) BroadcastToRoom(roomID string, evt Event, exclude string) {
	m.mu.Lock()
	recipients := m.roomConnsLocked(roomID, exclude)
	m.mu.Unlock()

	m.deliver(delivery{recipients: recipients, event: evt})
}

// SendDirect delivers an event to a single identity. Returns false when
// the identity is offline or its outbox rejects the event; in the latter
// case the connection is torn down.
func (m *Manager) SendDirect(userID string, evt Event) bool {
	m.mu.Lock()
	conn, ok := m.conns[userID]
	m.mu.Unlock()
	if !ok {
		return false
	}

	if !conn.enqueue(evt) {
		m.log.Warn().Str("user_id", userID).Str("event", string(evt.Type)).
			Msg("direct send failed, disconnecting")
		m.disconnectConn(conn)
		return false
	}
	return true
}
