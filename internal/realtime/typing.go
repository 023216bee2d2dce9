package realtime

// SetTyping records a typing state and tells the other room members. Every
// call fans out, including one that repeats the current state; clients that
// want debouncing do it themselves. Identities that are not members of the
// room are ignored.
func (m *Manager) SetTyping(userID, roomID string, isTyping bool) {
	m.mu.Lock()
	conn, ok := m.conns[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if _, member := conn.rooms[roomID]; !member {
		m.mu.Unlock()
		return
	}

	typers := m.typing[roomID]
	if isTyping {
		if typers == nil {
			typers = make(map[string]struct{})
			m.typing[roomID] = typers
		}
		typers[userID] = struct{}{}
	} else {
		delete(typers, userID)
	}

	evtType := EventTypingStop
	if isTyping {
		evtType = EventTypingStart
	}
	evt := userEvent(evtType, roomID, conn)
	recipients := m.roomConnsLocked(roomID, userID)
	m.mu.Unlock()

	m.deliver(delivery{recipients: recipients, event: evt})
}

// TypingUsers returns the ids currently marked typing in a room.
func (m *Manager) TypingUsers(roomID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.typing[roomID]))
	for id := range m.typing[roomID] {
		ids = append(ids, id)
	}
	return ids
}
