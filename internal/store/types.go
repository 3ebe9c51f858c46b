package store

// Conversation is a cached conversation summary. The server owns the
// canonical copy; this row lets the client render and route before the next
// fetch completes.
type Conversation struct {
	ID                  int64
	ParticipantID       int64
	ParticipantName     string
	ParticipantImageURL string
	UnreadCount         int
	MutedUntil          int64 // unix millis; 0 = not muted
	LastMessageAt       int64
	LastMessagePreview  string
}

// Message is an archived chat message. Only server-acknowledged messages
// are persisted; optimistic placeholders live in memory until reconciled.
type Message struct {
	ID              int64
	ConversationID  int64
	SenderID        int64
	Body            string
	MessageType     string
	ParentMessageID int64
	IsDelivered     bool
	IsRead          bool
	SentAt          int64
}

// CallLog is one terminal call summary.
type CallLog struct {
	ID               int64
	ConversationID   int64
	CounterpartyID   int64
	CounterpartyName string
	IsVideo          bool
	IsOutgoing       bool
	WasConnected     bool
	StartTime        int64
	EndTime          int64
	Outcome          string // completed, rejected, missed, failed
}
