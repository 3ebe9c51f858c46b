package call

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Action names delivered by the OS call UI.
const (
	ActionAccept = "accept_call"
	ActionReject = "reject_call"
)

// Action is an OS-level call action, delivered outside the signaling
// channel. ParticipantID distinguishes "absent" (nil) from a legitimate
// zero value.
type Action struct {
	Name           string
	ConversationID int64
	ParticipantID  *int64
}

const bootstrapLookupTimeout = 3 * time.Second

// HandleAction applies an OS-level accept/reject. When no call record exists
// yet (cold start: the process was woken by the action itself), a minimal
// INCOMING record is reconstructed first and the action then goes through
// the ordinary Accept/Reject path. Malformed actions are dropped with a log
// entry; nothing here returns an error that would crash the caller's event
// loop.
func (m *Machine) HandleAction(ctx context.Context, a Action) error {
	switch a.Name {
	case ActionAccept, ActionReject:
	default:
		m.log.Warn("dropping unknown call action", zap.String("action", a.Name))
		return nil
	}
	if a.ConversationID <= 0 {
		m.log.Warn("dropping call action with invalid conversation id",
			zap.String("action", a.Name),
			zap.Int64("conversation_id", a.ConversationID))
		return nil
	}

	m.mu.Lock()
	missing := m.rec == nil
	m.mu.Unlock()
	if missing {
		m.bootstrap(ctx, a)
	}

	if a.Name == ActionAccept {
		return m.Accept(ctx)
	}
	return m.Reject(ctx)
}

// bootstrap reconstructs the INCOMING record from whatever identifiers the
// action carries. A failed or slow conversation lookup falls back to a
// placeholder counterparty rather than blocking the action.
func (m *Machine) bootstrap(ctx context.Context, a Action) {
	counterpartyID := int64(0)
	name := ""
	imageURL := ""

	if a.ParticipantID != nil {
		counterpartyID = *a.ParticipantID
	} else if m.lookup != nil {
		lctx, cancel := context.WithTimeout(ctx, bootstrapLookupTimeout)
		info, err := m.lookup.GetConversation(lctx, a.ConversationID)
		cancel()
		if err != nil || info == nil {
			m.log.Warn("bootstrap conversation lookup failed; using placeholder",
				zap.Int64("conversation_id", a.ConversationID),
				zap.Error(err))
		} else {
			counterpartyID = info.ParticipantID
			name = info.ParticipantName
			imageURL = info.ParticipantImageURL
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec != nil {
		// A competing producer (signaling event or push) installed the
		// record while the lookup was in flight. Keep theirs.
		return
	}
	m.beginIncomingLocked(a.ConversationID, counterpartyID, "", false)
	m.rec.CounterpartyName = name
	m.rec.CounterpartyImageURL = imageURL
	m.log.Info("call record bootstrapped from OS action",
		zap.Int64("conversation_id", a.ConversationID),
		zap.String("action", a.Name))
}
