package realtime

// NotifyCallInitiated tells a connected participant that a call session is
// ready to join. Best effort: an offline participant simply misses the push
// and learns about the call when they next query.
func (m *Manager) NotifyCallInitiated(userID, roomName, sessionID, callType string) bool {
	evt := systemEvent(EventCallInitiated, roomName)
	evt.Metadata = map[string]interface{}{
		"session_id": sessionID,
		"call_type":  callType,
	}
	return m.SendDirect(userID, evt)
}

// NotifyCallEnded tells a connected participant that a call session has
// finished.
func (m *Manager) NotifyCallEnded(userID, roomName, sessionID string) bool {
	evt := systemEvent(EventCallEnded, roomName)
	evt.Metadata = map[string]interface{}{"session_id": sessionID}
	return m.SendDirect(userID, evt)
}
