// Package push parses push-notification payloads. Pushes arrive over an
// untrusted side channel and only ever act as wake-up triggers; anything
// authoritative is fetched from the server afterwards.
package push

import (
	"encoding/json"
	"fmt"
)

// Type tags a push payload.
type Type string

const (
	TypeIncomingCall Type = "INCOMING_CALL"
	TypeNewMessage   Type = "NEW_MESSAGE"
)

// Payload is the raw wire shape of a push notification.
type Payload struct {
	Type           Type   `json:"type"`
	ConversationID int64  `json:"conversationId"`
	CallerName     string `json:"callerName,omitempty"`
	IsVideoCall    bool   `json:"isVideoCall,omitempty"`
}

// IncomingCall is a validated call wake-up. CallerName is display-only and
// untrusted; the caller identity comes from the conversation lookup.
type IncomingCall struct {
	ConversationID int64
	CallerName     string
	IsVideo        bool
}

// NewMessage is a validated message wake-up.
type NewMessage struct {
	ConversationID int64
}

// Parse decodes a raw push payload into one of the typed wake-ups.
// It returns (*IncomingCall, nil, nil), (nil, *NewMessage, nil), or an
// error for anything malformed or unknown; callers log and drop on error.
func Parse(data []byte) (*IncomingCall, *NewMessage, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil, fmt.Errorf("malformed push payload: %w", err)
	}
	if p.ConversationID <= 0 {
		return nil, nil, fmt.Errorf("push %q without a valid conversationId", p.Type)
	}
	switch p.Type {
	case TypeIncomingCall:
		return &IncomingCall{
			ConversationID: p.ConversationID,
			CallerName:     p.CallerName,
			IsVideo:        p.IsVideoCall,
		}, nil, nil
	case TypeNewMessage:
		return nil, &NewMessage{ConversationID: p.ConversationID}, nil
	default:
		return nil, nil, fmt.Errorf("unknown push type %q", p.Type)
	}
}
