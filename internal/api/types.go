package api

import "time"

// StatusResponse reports daemon health over the control socket.
type StatusResponse struct {
	Session    string `json:"session"`
	Connection string `json:"connection"`
	CallState  string `json:"callState"`
	UserID     int64  `json:"userId"`
	PID        int    `json:"pid"`
}

// ConversationView is a conversation summary as served to clients.
type ConversationView struct {
	ID                  int64  `json:"id"`
	ParticipantID       int64  `json:"participantId"`
	ParticipantName     string `json:"participantName"`
	ParticipantImageURL string `json:"participantImageUrl,omitempty"`
	UnreadCount         int    `json:"unreadCount"`
	Muted               bool   `json:"muted"`
	LastMessageAt       int64  `json:"lastMessageAt"`
	LastMessagePreview  string `json:"lastMessagePreview"`
}

// MessageView is a chat message as served to clients. Negative ids mark
// optimistic entries still waiting for their server echo.
type MessageView struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversationId"`
	SenderID        int64     `json:"senderId"`
	Text            string    `json:"text"`
	MessageType     string    `json:"messageType"`
	ParentMessageID int64     `json:"parentMessageId,omitempty"`
	SentAt          time.Time `json:"sentAt"`
	IsDelivered     bool      `json:"isDelivered"`
	IsRead          bool      `json:"isRead"`
	Pending         bool      `json:"pending,omitempty"`
	Retryable       bool      `json:"retryable,omitempty"`
}

// CallView is the live call record as served to clients.
type CallView struct {
	State                string     `json:"state"`
	ConversationID       int64      `json:"conversationId,omitempty"`
	CounterpartyID       int64      `json:"counterpartyId,omitempty"`
	CounterpartyName     string     `json:"counterpartyName,omitempty"`
	CounterpartyImageURL string     `json:"counterpartyImageUrl,omitempty"`
	RoomName             string     `json:"roomName,omitempty"`
	IsVideo              bool       `json:"isVideo,omitempty"`
	IsOutgoing           bool       `json:"isOutgoing,omitempty"`
	StartTime            *time.Time `json:"startTime,omitempty"`
	EndTime              *time.Time `json:"endTime,omitempty"`
}

// SendMessageRequest starts a message send.
type SendMessageRequest struct {
	Text            string `json:"text"`
	ParentMessageID int64  `json:"parentMessageId,omitempty"`
}

// OpenRequest marks a conversation open or closed on screen.
type OpenRequest struct {
	Open *bool `json:"open,omitempty"` // nil = open
}

// StartCallRequest starts an outgoing call.
type StartCallRequest struct {
	ConversationID int64 `json:"conversationId"`
	CalleeID       int64 `json:"calleeId"`
	IsVideo        bool  `json:"isVideo"`
}

// ActionRequest is an OS-level notification action forwarded verbatim.
type ActionRequest struct {
	Action         string `json:"action"`
	ConversationID int64  `json:"conversationId"`
	ParticipantID  *int64 `json:"participantId,omitempty"`
}
