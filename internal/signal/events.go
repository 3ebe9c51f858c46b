package signal

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags a signaling event on the wire.
type EventType string

const (
	EventCallRequest EventType = "CALL_REQUEST"
	EventCallAccept  EventType = "CALL_ACCEPT"
	EventCallReject  EventType = "CALL_REJECT"
	EventCallEnd     EventType = "CALL_END"
	EventCallMissed  EventType = "CALL_MISSED"
	EventMessage     EventType = "MESSAGE"
)

// Event is the wire shape shared by everything on the signaling channel.
// Call events use the call fields; MESSAGE events carry a Message payload.
// Inbound events are untrusted: Decode validates before anything is handled.
type Event struct {
	Type           EventType `json:"eventType"`
	ConversationID int64     `json:"conversationId"`

	// Call lifecycle fields.
	CallerID     int64      `json:"callerId,omitempty"`
	ReceiverID   int64      `json:"receiverId,omitempty"`
	RoomName     string     `json:"roomName,omitempty"`
	IsVideo      bool       `json:"isVideo,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	WasConnected bool       `json:"wasConnected,omitempty"`

	// Chat message payload, present when Type == EventMessage.
	Message *WireMessage `json:"message,omitempty"`
}

// WireMessage is a chat message as carried by the signaling channel.
type WireMessage struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversationId"`
	SenderID        int64     `json:"senderId"`
	Text            string    `json:"text"`
	MessageType     string    `json:"messageType"`
	ParentMessageID int64     `json:"parentMessageId,omitempty"`
	SentAt          time.Time `json:"sentAt"`
	IsRead          bool      `json:"isRead"`
	IsDelivered     bool      `json:"isDelivered"`
}

// IsCall reports whether the event belongs to the call lifecycle.
func (t EventType) IsCall() bool {
	switch t {
	case EventCallRequest, EventCallAccept, EventCallReject, EventCallEnd, EventCallMissed:
		return true
	}
	return false
}

// UnknownEventError is returned by Decode for event types this client does
// not understand. Callers log and drop rather than failing the channel.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown signaling event type %q", e.Type)
}

// Decode parses and validates a raw frame from the channel.
func Decode(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("malformed signaling frame: %w", err)
	}
	switch evt.Type {
	case EventCallRequest, EventCallAccept, EventCallReject, EventCallEnd, EventCallMissed:
		if evt.ConversationID <= 0 {
			return nil, fmt.Errorf("%s event without a valid conversationId", evt.Type)
		}
	case EventMessage:
		if evt.Message == nil {
			return nil, fmt.Errorf("MESSAGE event without message payload")
		}
		m := evt.Message
		if m.ConversationID <= 0 || m.SenderID <= 0 || m.ID <= 0 {
			return nil, fmt.Errorf("MESSAGE event with invalid identifiers (id=%d conversation=%d sender=%d)",
				m.ID, m.ConversationID, m.SenderID)
		}
	default:
		return nil, &UnknownEventError{Type: string(evt.Type)}
	}
	return &evt, nil
}
