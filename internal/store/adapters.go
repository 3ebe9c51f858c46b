package store

import (
	"context"
	"time"

	"github.com/mkravets/vox/internal/call"
	"github.com/mkravets/vox/internal/chat"
	"go.uber.org/zap"
)

// Archive adapts the database to the message reconciler's durable side.
type Archive struct {
	DB          *DB
	LocalUserID int64
	Log         *zap.Logger
}

func (a *Archive) SaveMessage(_ context.Context, m *chat.Message) error {
	return a.DB.SaveMessage(&Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Body:            m.Text,
		MessageType:     m.MessageType,
		ParentMessageID: m.ParentMessageID,
		IsDelivered:     m.IsDelivered,
		IsRead:          m.IsRead,
		SentAt:          m.CreatedAt.UnixMilli(),
	})
}

func (a *Archive) SetPreview(_ context.Context, conversationID int64, preview string, at time.Time) error {
	return a.DB.SetPreview(conversationID, preview, at.UnixMilli())
}

func (a *Archive) AddUnread(_ context.Context, conversationID int64, delta int) error {
	return a.DB.AddUnread(conversationID, delta)
}

func (a *Archive) MarkConversationRead(_ context.Context, conversationID int64) error {
	return a.DB.MarkConversationRead(conversationID, a.LocalUserID)
}

// IsMuted answers the notification policy question. Database errors fail
// open: a broken archive must not silence the attention cue.
func (a *Archive) IsMuted(_ context.Context, conversationID int64) bool {
	muted, err := a.DB.IsMuted(conversationID, time.Now())
	if err != nil {
		a.Log.Warn("mute lookup failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return false
	}
	return muted
}

// Lookup adapts the cached conversation summaries to the call machine.
type Lookup struct {
	DB *DB
}

func (l *Lookup) GetConversation(_ context.Context, id int64) (*call.ConversationInfo, error) {
	c, err := l.DB.GetConversation(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	return &call.ConversationInfo{
		ID:                  c.ID,
		ParticipantID:       c.ParticipantID,
		ParticipantName:     c.ParticipantName,
		ParticipantImageURL: c.ParticipantImageURL,
	}, nil
}
