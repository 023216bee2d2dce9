package realtime

// DeliveryStatus tracks which identities have acknowledged a message.
// Records are created lazily on the first receipt and are kept for the
// lifetime of the process; there is no expiry.
type DeliveryStatus struct {
	DeliveredTo []string `json:"delivered_to"`
	ReadBy      []string `json:"read_by"`
}

// MarkDelivered records a delivery acknowledgement for a message and
// broadcasts a delivered event to the whole room, the acknowledger included.
func (m *Manager) MarkDelivered(messageID, userID, roomID string) {
	m.markReceipt(EventDelivered, messageID, userID, roomID)
}

// MarkRead records a read acknowledgement for a message and broadcasts a
// read event to the whole room.
func (m *Manager) MarkRead(messageID, userID, roomID string) {
	m.markReceipt(EventRead, messageID, userID, roomID)
}

func (m *Manager) markReceipt(t EventType, messageID, userID, roomID string) {
	m.mu.Lock()
	st, ok := m.receipts[messageID]
	if !ok {
		st = &DeliveryStatus{}
		m.receipts[messageID] = st
	}

	key := "delivered_to"
	if t == EventRead {
		key = "read_by"
		st.ReadBy = appendUnique(st.ReadBy, userID)
	} else {
		st.DeliveredTo = appendUnique(st.DeliveredTo, userID)
	}

	evt := systemEvent(t, roomID)
	evt.MessageID = messageID
	evt.SenderID = userID
	evt.Metadata = map[string]interface{}{key: userID}
	recipients := m.roomConnsLocked(roomID, "")
	m.mu.Unlock()

	m.deliver(delivery{recipients: recipients, event: evt})
}

// ReceiptStatus returns a copy of a message's receipt record.
func (m *Manager) ReceiptStatus(messageID string) (DeliveryStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.receipts[messageID]
	if !ok {
		return DeliveryStatus{}, false
	}
	return DeliveryStatus{
		DeliveredTo: append([]string(nil), st.DeliveredTo...),
		ReadBy:      append([]string(nil), st.ReadBy...),
	}, true
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
