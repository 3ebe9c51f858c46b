package chat

import "time"

// Message is a chat message. Server-acknowledged messages carry the positive
// server-assigned ID; optimistic local sends hold a unique negative
// placeholder ID until their echo arrives.
type Message struct {
	ID              int64
	ConversationID  int64
	SenderID        int64
	Text            string
	MessageType     string
	ParentMessageID int64 // 0 = not a reply
	CreatedAt       time.Time
	IsDelivered     bool
	IsRead          bool
	// Retryable is set when the ack wait expired; the entry stays in the
	// list and the UI may offer a manual retry.
	Retryable bool

	// seq orders optimistic entries by creation so reconciliation can
	// pair server echoes with sends in submission order, independent of
	// how placeholder IDs are generated.
	seq uint64
}

// Optimistic reports whether the message still awaits its server echo.
func (m *Message) Optimistic() bool {
	return m.ID < 0
}

// matches reports whether an authoritative echo corresponds to this
// optimistic entry. An unset parent (0) forms a single equivalence class
// with null on the wire.
func (m *Message) matches(senderID int64, text string, parentID int64) bool {
	return m.Optimistic() &&
		m.SenderID == senderID &&
		m.Text == text &&
		m.ParentMessageID == parentID
}
