package realtime

// JoinRoom adds a connected identity to a room, creating the room lazily.
// Pre-existing members get a join_room broadcast (the joiner excluded) and
// the joiner gets a room_info snapshot of current members and typing users.
// Returns false if the identity is not connected.
func (m *Manager) JoinRoom(userID, roomID string) bool {
	m.mu.Lock()
	conn, ok := m.conns[userID]
	if !ok {
		m.mu.Unlock()
		return false
	}

	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[string]struct{})
	}
	peers := m.roomConnsLocked(roomID, userID)
	m.rooms[roomID][userID] = struct{}{}
	conn.rooms[roomID] = struct{}{}

	joinEvt := userEvent(EventJoinRoom, roomID, conn)
	joinEvt.Content = conn.Name + " joined the chat"
	info := m.roomInfoLocked(roomID)
	m.mu.Unlock()

	m.deliver(delivery{recipients: peers, event: joinEvt})
	m.deliver(delivery{recipients: []*Connection{conn}, event: info})

	m.log.Info().Str("user_id", userID).Str("room_id", roomID).Msg("joined room")
	return true
}

// LeaveRoom removes the identity from a room and tells the remaining members.
// Empty rooms are deleted together with their typing set.
func (m *Manager) LeaveRoom(userID, roomID string) {
	m.mu.Lock()
	conn := m.conns[userID]
	m.leaveRoomLocked(userID, roomID)
	var pending []delivery
	if conn != nil {
		if rest := m.roomConnsLocked(roomID, userID); len(rest) > 0 {
			pending = append(pending, delivery{
				recipients: rest,
				event:      userEvent(EventLeaveRoom, roomID, conn),
			})
		}
	}
	m.mu.Unlock()

	m.deliverAll(pending)
	m.log.Info().Str("user_id", userID).Str("room_id", roomID).Msg("left room")
}

// leaveRoomLocked removes the identity from the room's member and typing
// sets and from the connection's joined-room set, deleting the room when it
// empties. Callers must hold m.mu.
func (m *Manager) leaveRoomLocked(userID, roomID string) {
	if members, ok := m.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.rooms, roomID)
			delete(m.typing, roomID)
		}
	}
	if typers, ok := m.typing[roomID]; ok {
		delete(typers, userID)
	}
	if conn, ok := m.conns[userID]; ok {
		delete(conn.rooms, roomID)
	}
}

// roomConnsLocked snapshots the live connections of a room's members,
// excluding one identity. Callers must hold m.mu.
func (m *Manager) roomConnsLocked(roomID, exclude string) []*Connection {
	members, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	conns := make([]*Connection, 0, len(members))
	for id := range members {
		if id == exclude {
			continue
		}
		if c, ok := m.conns[id]; ok {
			conns = append(conns, c)
		}
	}
	return conns
}

// memberInfoLocked builds the member snapshot for a room. Callers must hold
// m.mu.
func (m *Manager) memberInfoLocked(roomID string) []MemberInfo {
	members := make([]MemberInfo, 0, len(m.rooms[roomID]))
	for id := range m.rooms[roomID] {
		if c, ok := m.conns[id]; ok {
			_, typing := m.typing[roomID][id]
			members = append(members, MemberInfo{
				UserID:   c.UserID,
				UserName: c.Name,
				UserRole: c.Role,
				IsOnline: true,
				IsTyping: typing,
			})
		}
	}
	return members
}

// roomInfoLocked builds the room_info snapshot event. Callers must hold m.mu.
func (m *Manager) roomInfoLocked(roomID string) Event {
	members := m.memberInfoLocked(roomID)
	typing := make([]string, 0, len(m.typing[roomID]))
	for id := range m.typing[roomID] {
		typing = append(typing, id)
	}

	evt := systemEvent(EventRoomInfo, roomID)
	evt.Metadata = map[string]interface{}{
		"members":      members,
		"typing_users": typing,
	}
	return evt
}

// IsMember reports whether an identity is a member of a room.
func (m *Manager) IsMember(userID, roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[roomID][userID]
	return ok
}

// OnlineUsersInRoom returns the ids of room members that are online.
func (m *Manager) OnlineUsersInRoom(roomID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rooms[roomID]))
	for id := range m.rooms[roomID] {
		if _, ok := m.conns[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// RoomCount returns the number of members in a room.
func (m *Manager) RoomCount(roomID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms[roomID])
}

// RoomMembers returns the room_info member snapshot for dashboards.
func (m *Manager) RoomMembers(roomID string) []MemberInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberInfoLocked(roomID)
}
