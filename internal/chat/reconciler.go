package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/mkravets/vox/internal/bus"
	"github.com/mkravets/vox/internal/signal"
	"go.uber.org/zap"
)

// Sender delivers outbound signaling events. Satisfied by signal.Channel.
type Sender interface {
	Send(ctx context.Context, evt *signal.Event) error
}

// Archive is the durable side of the reconciler: the sqlite store keeping
// conversation summaries and message history. All archive writes are best
// effort; the in-memory state is authoritative for the running session.
type Archive interface {
	SaveMessage(ctx context.Context, m *Message) error
	SetPreview(ctx context.Context, conversationID int64, preview string, at time.Time) error
	AddUnread(ctx context.Context, conversationID int64, delta int) error
	MarkConversationRead(ctx context.Context, conversationID int64) error
	IsMuted(ctx context.Context, conversationID int64) bool
}

// Notifier plays the new-message attention cue.
type Notifier interface {
	MessageSound(conversationID int64)
}

// BusNotifier publishes the cue on the event bus for a front end to play.
type BusNotifier struct {
	Bus *bus.Bus
}

func (n BusNotifier) MessageSound(conversationID int64) {
	if n.Bus != nil {
		n.Bus.Publish(bus.Event{Kind: bus.KindMessageSound, Timestamp: time.Now(), Payload: conversationID})
	}
}

const defaultAckWait = 10 * time.Second

// Reconciler matches optimistic local sends against authoritative server
// echoes and maintains the per-conversation lists, unread counters, and
// notification policy.
type Reconciler struct {
	localUserID int64
	mem         *MemStore
	archive     Archive
	sender      Sender
	notifier    Notifier
	bus         *bus.Bus
	log         *zap.Logger
	now         func() time.Time
	ackWait     time.Duration
}

// NewReconciler creates a reconciler around the in-memory store.
func NewReconciler(localUserID int64, mem *MemStore, archive Archive, sender Sender, notifier Notifier, b *bus.Bus, log *zap.Logger) *Reconciler {
	return &Reconciler{
		localUserID: localUserID,
		mem:         mem,
		archive:     archive,
		sender:      sender,
		notifier:    notifier,
		bus:         b,
		log:         log,
		now:         time.Now,
		ackWait:     defaultAckWait,
	}
}

// HandleInbound processes an authoritative message from the signaling
// channel. Invalid payloads never reach here; signal.Decode already dropped
// them.
func (r *Reconciler) HandleInbound(ctx context.Context, wm *signal.WireMessage) {
	auth := &Message{
		ID:              wm.ID,
		ConversationID:  wm.ConversationID,
		SenderID:        wm.SenderID,
		Text:            wm.Text,
		MessageType:     wm.MessageType,
		ParentMessageID: wm.ParentMessageID,
		CreatedAt:       wm.SentAt,
		IsDelivered:     wm.IsDelivered,
		IsRead:          wm.IsRead,
	}

	reconciled := false
	if auth.SenderID == r.localUserID {
		reconciled = r.mem.reconcile(auth)
	} else {
		r.mem.append(auth)
	}

	if err := r.archive.SaveMessage(ctx, auth); err != nil {
		r.log.Warn("archive message failed", zap.Int64("message_id", auth.ID), zap.Error(err))
	}
	if err := r.archive.SetPreview(ctx, auth.ConversationID, auth.Text, auth.CreatedAt); err != nil {
		r.log.Warn("archive preview update failed", zap.Error(err))
	}

	if reconciled && r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.KindMessageAcked, Timestamp: r.now(), Payload: auth.ID})
	}

	fromOther := auth.SenderID != r.localUserID
	open := r.mem.Open() == auth.ConversationID

	switch {
	case fromOther && open:
		// The user is looking at this conversation: no unread, no sound,
		// acknowledge the whole conversation as read instead.
		r.emitReadReceipt(ctx, auth.ConversationID)
	case fromOther:
		r.mem.bumpUnread(auth.ConversationID)
		if err := r.archive.AddUnread(ctx, auth.ConversationID, 1); err != nil {
			r.log.Warn("archive unread update failed", zap.Error(err))
		}
		if r.bus != nil {
			r.bus.Publish(bus.Event{Kind: bus.KindUnreadChanged, Timestamp: r.now(), Payload: auth.ConversationID})
		}
		if !r.archive.IsMuted(ctx, auth.ConversationID) {
			r.notifier.MessageSound(auth.ConversationID)
		}
	}

	if r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.KindMessageNew, Timestamp: r.now(), Payload: auth.ConversationID})
	}
}

// SendMessage inserts an optimistic entry so the UI is responsive, then
// attempts network delivery. The entry is removed only by reconciliation;
// if no echo arrives within the ack wait it is flagged retryable and stays.
func (r *Reconciler) SendMessage(ctx context.Context, conversationID int64, text string, parentMessageID int64) (*Message, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("invalid conversation id %d", conversationID)
	}
	if text == "" {
		return nil, fmt.Errorf("empty message text")
	}

	m := r.mem.newOptimistic(conversationID, r.localUserID, text, parentMessageID, r.now())
	if r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.KindMessageNew, Timestamp: r.now(), Payload: conversationID})
	}

	if err := r.deliver(ctx, m); err != nil {
		// The optimistic entry stays; the ack timer will flag it.
		r.log.Warn("message send failed",
			zap.Int64("conversation_id", conversationID),
			zap.Int64("placeholder_id", m.ID),
			zap.Error(err))
	}

	id := m.ID
	time.AfterFunc(r.ackWait, func() {
		if r.mem.markRetryable(conversationID, id) {
			r.log.Warn("message ack wait expired",
				zap.Int64("conversation_id", conversationID),
				zap.Int64("placeholder_id", id))
			if r.bus != nil {
				r.bus.Publish(bus.Event{Kind: bus.KindMessageAckTimeout, Timestamp: r.now(), Payload: id})
			}
		}
	})
	return m, nil
}

// Retry re-sends a retryable optimistic entry and restarts its ack wait.
func (r *Reconciler) Retry(ctx context.Context, conversationID, messageID int64) error {
	m := r.mem.get(conversationID, messageID)
	if m == nil || !m.Optimistic() {
		return fmt.Errorf("message %d is not pending", messageID)
	}
	if err := r.deliver(ctx, m); err != nil {
		return err
	}
	time.AfterFunc(r.ackWait, func() {
		r.mem.markRetryable(conversationID, messageID)
	})
	return nil
}

func (r *Reconciler) deliver(ctx context.Context, m *Message) error {
	return r.sender.Send(ctx, &signal.Event{
		Type:           signal.EventMessage,
		ConversationID: m.ConversationID,
		Message: &signal.WireMessage{
			ConversationID:  m.ConversationID,
			SenderID:        m.SenderID,
			Text:            m.Text,
			MessageType:     m.MessageType,
			ParentMessageID: m.ParentMessageID,
			SentAt:          m.CreatedAt,
		},
	})
}

// MarkOpen records the conversation currently on screen and acknowledges
// its backlog.
func (r *Reconciler) MarkOpen(ctx context.Context, conversationID int64) {
	r.mem.SetOpen(conversationID)
	if conversationID != 0 {
		r.emitReadReceipt(ctx, conversationID)
	}
}

func (r *Reconciler) emitReadReceipt(ctx context.Context, conversationID int64) {
	if err := r.archive.MarkConversationRead(ctx, conversationID); err != nil {
		r.log.Warn("archive read receipt failed", zap.Error(err))
	}
	if r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.KindReadReceipt, Timestamp: r.now(), Payload: conversationID})
	}
}
