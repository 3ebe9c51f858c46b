package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Well-known event kinds. Subscribers typically use the namespace prefix
// (everything up to and including the first dot).
const (
	KindConnStatus        = "conn.status_changed"
	KindCallState         = "call.state_changed"
	KindCallCue           = "call.cue"
	KindCallLogged        = "call.logged"
	KindMessageNew        = "message.new"
	KindMessageAcked      = "message.acked"
	KindMessageAckTimeout = "message.ack_timeout"
	KindMessageSound      = "message.sound"
	KindReadReceipt       = "message.read_receipt"
	KindUnreadChanged     = "conversation.unread_changed"
)
