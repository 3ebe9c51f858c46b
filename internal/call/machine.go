package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkravets/vox/internal/bus"
	"github.com/mkravets/vox/internal/signal"
	"go.uber.org/zap"
)

// ErrPermissionDenied is returned when the user denies a device permission
// needed for a transition. The machine is back at IDLE when it is returned.
var ErrPermissionDenied = errors.New("device permission denied")

// ErrCallInProgress is returned by StartOutgoing while a call is live.
var ErrCallInProgress = errors.New("a call is already in progress")

// Sender delivers outbound signaling events. Satisfied by signal.Channel.
type Sender interface {
	Send(ctx context.Context, evt *signal.Event) error
}

// MediaProvider is the opaque audio/video session. Connect blocks until the
// session reports live or fails.
type MediaProvider interface {
	Connect(ctx context.Context, token, room, serverURL string) error
	Disconnect()
	ToggleMute() bool
	ToggleCamera(enabled bool)
}

// PermissionGate asks the OS for device permissions.
type PermissionGate interface {
	RequestMicrophone(ctx context.Context) bool
	RequestCamera(ctx context.Context) bool
}

// Ringer plays the pre-connection audio cues. Stop must be idempotent.
type Ringer interface {
	StartRingtone()
	StartRingback()
	Stop()
}

// ConversationInfo is the slice of a conversation summary the call machine
// needs when rebuilding a record from partial identifiers.
type ConversationInfo struct {
	ID                  int64
	ParticipantID       int64
	ParticipantName     string
	ParticipantImageURL string
}

// Lookup resolves conversation summaries. Satisfied by the local store.
type Lookup interface {
	GetConversation(ctx context.Context, id int64) (*ConversationInfo, error)
}

// MediaConfig carries the media gateway settings handed to the provider.
type MediaConfig struct {
	ServerURL string
	Token     string
}

// Machine drives the single call record. It is fed by three producers:
// local commands, inbound signaling events, and OS-level call actions.
// Every handler tolerates being invoked after its precondition has lapsed
// by treating the request as a no-op.
type Machine struct {
	localUserID int64
	media       MediaProvider
	mediaCfg    MediaConfig
	perms       PermissionGate
	ringer      Ringer
	sender      Sender
	lookup      Lookup
	bus         *bus.Bus
	log         *zap.Logger
	now         func() time.Time

	mu  sync.Mutex
	rec *Record
}

// NewMachine creates the call state machine.
func NewMachine(localUserID int64, sender Sender, media MediaProvider, mediaCfg MediaConfig, perms PermissionGate, ringer Ringer, lookup Lookup, b *bus.Bus, log *zap.Logger) *Machine {
	return &Machine{
		localUserID: localUserID,
		sender:      sender,
		media:       media,
		mediaCfg:    mediaCfg,
		perms:       perms,
		ringer:      ringer,
		lookup:      lookup,
		bus:         b,
		log:         log,
		now:         time.Now,
	}
}

// Snapshot returns a copy of the live record, or nil when idle.
func (m *Machine) Snapshot() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.clone()
}

// StartOutgoing places a call on the given conversation. Requires microphone
// permission, and camera permission for video calls.
func (m *Machine) StartOutgoing(ctx context.Context, conversationID, calleeID int64, video bool) error {
	if conversationID <= 0 {
		return fmt.Errorf("invalid conversation id %d", conversationID)
	}

	m.mu.Lock()
	if m.rec != nil {
		m.mu.Unlock()
		return ErrCallInProgress
	}
	// Reserve the record before the permission prompts so a racing
	// producer cannot start a second call meanwhile.
	rec := &Record{
		ConversationID: conversationID,
		CounterpartyID: calleeID,
		RoomName:       uuid.NewString(),
		IsVideo:        video,
		IsOutgoing:     true,
		State:          StateOutgoing,
	}
	m.rec = rec
	m.mu.Unlock()

	if !m.perms.RequestMicrophone(ctx) || (video && !m.perms.RequestCamera(ctx)) {
		m.log.Warn("outgoing call aborted: permission denied",
			zap.Int64("conversation_id", conversationID))
		m.resetToIdle("failed")
		return ErrPermissionDenied
	}

	evt := &signal.Event{
		Type:           signal.EventCallRequest,
		ConversationID: conversationID,
		CallerID:       m.localUserID,
		ReceiverID:     calleeID,
		RoomName:       rec.RoomName,
		IsVideo:        video,
	}
	if err := m.sender.Send(ctx, evt); err != nil {
		m.resetToIdle("failed")
		return fmt.Errorf("send call request: %w", err)
	}

	m.enrichCounterparty(ctx, conversationID)
	m.ringer.StartRingback()
	m.publishState()
	m.log.Info("outgoing call started",
		zap.Int64("conversation_id", conversationID),
		zap.Bool("video", video))
	return nil
}

// Accept answers the incoming call. Requires microphone permission. A stale
// accept (the call already ended) is a no-op.
func (m *Machine) Accept(ctx context.Context) error {
	m.mu.Lock()
	if m.rec == nil || m.rec.State != StateIncoming {
		m.mu.Unlock()
		m.log.Info("accept ignored: no incoming call")
		return nil
	}
	conversationID := m.rec.ConversationID
	counterpartyID := m.rec.CounterpartyID
	room := m.rec.RoomName
	m.mu.Unlock()

	if !m.perms.RequestMicrophone(ctx) {
		m.log.Warn("accept aborted: microphone permission denied",
			zap.Int64("conversation_id", conversationID))
		m.ringer.Stop()
		m.resetToIdle("failed")
		return ErrPermissionDenied
	}

	m.ringer.Stop()

	accept := &signal.Event{
		Type:           signal.EventCallAccept,
		ConversationID: conversationID,
		CallerID:       counterpartyID,
		ReceiverID:     m.localUserID,
		RoomName:       room,
	}
	if err := m.sender.Send(ctx, accept); err != nil {
		m.log.Warn("send call accept failed", zap.Error(err))
	}

	return m.joinMedia(ctx, room)
}

// Reject declines the incoming call. A rejected call has zero duration:
// startTime == endTime by definition. A stale reject is a no-op.
func (m *Machine) Reject(ctx context.Context) error {
	m.mu.Lock()
	if m.rec == nil || m.rec.State != StateIncoming {
		m.mu.Unlock()
		m.log.Info("reject ignored: no incoming call")
		return nil
	}
	rec := m.rec
	now := m.now()
	rec.StartTime = &now
	rec.EndTime = &now
	conversationID := rec.ConversationID
	counterpartyID := rec.CounterpartyID
	m.mu.Unlock()

	m.ringer.Stop()

	reject := &signal.Event{
		Type:           signal.EventCallReject,
		ConversationID: conversationID,
		CallerID:       counterpartyID,
		ReceiverID:     m.localUserID,
		StartTime:      &now,
		EndTime:        &now,
	}
	if err := m.sender.Send(ctx, reject); err != nil {
		m.log.Warn("send call reject failed", zap.Error(err))
	}

	// Release the provider in case a join was partially underway.
	m.media.Disconnect()
	m.resetToIdle("rejected")
	return nil
}

// End hangs up the live call from any active state and sends the terminal
// CALL_END event. A stale end is a no-op.
func (m *Machine) End(ctx context.Context) error {
	m.mu.Lock()
	if m.rec == nil || !m.rec.State.active() {
		m.mu.Unlock()
		m.log.Info("end ignored: no active call")
		return nil
	}
	rec := m.rec
	now := m.now()
	wasConnected := rec.State == StateConnected
	if rec.StartTime == nil {
		// Never reached Connected: zero duration.
		rec.StartTime = &now
	}
	rec.EndTime = &now
	start := *rec.StartTime
	callerID, calleeID := rec.identity(m.localUserID)
	conversationID := rec.ConversationID
	m.mu.Unlock()

	end := &signal.Event{
		Type:           signal.EventCallEnd,
		ConversationID: conversationID,
		CallerID:       callerID,
		ReceiverID:     calleeID,
		StartTime:      &start,
		EndTime:        &now,
		WasConnected:   wasConnected,
	}
	if err := m.sender.Send(ctx, end); err != nil {
		m.log.Warn("send call end failed", zap.Error(err))
	}

	m.ringer.Stop()
	m.media.Disconnect()
	outcome := "completed"
	if !wasConnected {
		outcome = "missed"
	}
	m.resetToIdle(outcome)
	return nil
}

// ToggleMute flips the microphone on the live media session and reports the
// new muted state.
func (m *Machine) ToggleMute() bool {
	return m.media.ToggleMute()
}

// ToggleCamera enables or disables the camera on the live media session.
func (m *Machine) ToggleCamera(enabled bool) {
	m.media.ToggleCamera(enabled)
}

// HandleEvent consumes an inbound call signaling event. Events for calls the
// machine does not know about, or that arrive after the state has moved on,
// are dropped with a log entry.
func (m *Machine) HandleEvent(ctx context.Context, evt *signal.Event) {
	switch evt.Type {
	case signal.EventCallRequest:
		m.handleInboundRequest(ctx, evt)
	case signal.EventCallAccept:
		m.handleRemoteAccept(ctx, evt)
	case signal.EventCallReject, signal.EventCallEnd, signal.EventCallMissed:
		m.handleRemoteTerminal(evt)
	}
}

// handleInboundRequest is the live-channel trigger for IDLE → INCOMING.
func (m *Machine) handleInboundRequest(ctx context.Context, evt *signal.Event) {
	m.mu.Lock()
	if m.rec != nil {
		// A push or OS action may have bootstrapped this call before the
		// live channel delivered the request. That record lacks the room
		// name only the wire event carries, so merge the missing fields
		// instead of dropping the event.
		if !m.rec.IsOutgoing && m.rec.ConversationID == evt.ConversationID {
			if m.rec.RoomName == "" {
				m.rec.RoomName = evt.RoomName
			}
			if m.rec.CounterpartyID == 0 {
				m.rec.CounterpartyID = evt.CallerID
			}
			if !m.rec.IsVideo {
				m.rec.IsVideo = evt.IsVideo
			}
			m.mu.Unlock()
			m.log.Info("merged call request into bootstrapped record",
				zap.Int64("conversation_id", evt.ConversationID),
				zap.String("room", evt.RoomName))
			m.publishState()
			return
		}
		m.mu.Unlock()
		m.log.Warn("dropping call request while another call is live",
			zap.Int64("conversation_id", evt.ConversationID))
		return
	}
	m.beginIncomingLocked(evt.ConversationID, evt.CallerID, evt.RoomName, evt.IsVideo)
	m.mu.Unlock()

	m.enrichCounterparty(ctx, evt.ConversationID)
	m.publishState()
}

// HandleIncomingPush is the push-notification trigger for IDLE → INCOMING:
// a wakeup payload announcing a call that the live channel may not have
// delivered yet. If a record already exists the push is redundant.
func (m *Machine) HandleIncomingPush(ctx context.Context, conversationID int64, callerName string, video bool) {
	m.mu.Lock()
	if m.rec != nil {
		m.mu.Unlock()
		m.log.Info("push incoming-call ignored: record already exists",
			zap.Int64("conversation_id", conversationID))
		return
	}
	m.beginIncomingLocked(conversationID, 0, "", video)
	m.rec.CounterpartyName = callerName
	m.mu.Unlock()

	m.enrichCounterparty(ctx, conversationID)
	m.publishState()
}

// handleRemoteAccept moves OUTGOING → CONNECTED once the callee picks up.
func (m *Machine) handleRemoteAccept(ctx context.Context, evt *signal.Event) {
	m.mu.Lock()
	if m.rec == nil || m.rec.State != StateOutgoing || m.rec.ConversationID != evt.ConversationID {
		m.mu.Unlock()
		m.log.Info("stale call accept dropped", zap.Int64("conversation_id", evt.ConversationID))
		return
	}
	room := m.rec.RoomName
	m.mu.Unlock()

	m.ringer.Stop()
	if err := m.joinMedia(ctx, room); err != nil {
		m.log.Warn("joining media after remote accept failed", zap.Error(err))
	}
}

// handleRemoteTerminal tears the call down on a remote reject/end/missed
// without re-sending a terminal event: the remote side already recorded it,
// and echoing one back would duplicate the call history entry.
func (m *Machine) handleRemoteTerminal(evt *signal.Event) {
	m.mu.Lock()
	if m.rec == nil || !m.rec.State.active() || m.rec.ConversationID != evt.ConversationID {
		m.mu.Unlock()
		m.log.Info("stale terminal call event dropped",
			zap.String("type", string(evt.Type)),
			zap.Int64("conversation_id", evt.ConversationID))
		return
	}
	m.mu.Unlock()

	m.ringer.Stop()
	m.media.Disconnect()

	outcome := "completed"
	switch evt.Type {
	case signal.EventCallReject:
		outcome = "rejected"
	case signal.EventCallMissed:
		outcome = "missed"
	case signal.EventCallEnd:
		m.mu.Lock()
		if m.rec != nil && m.rec.StartTime == nil {
			outcome = "missed"
		}
		m.mu.Unlock()
	}
	m.resetToIdle(outcome)
}

// joinMedia connects the media provider and, on confirmation, marks the call
// CONNECTED with startTime set. The state is re-checked after the blocking
// connect: the call may have been torn down while the join was in flight.
func (m *Machine) joinMedia(ctx context.Context, room string) error {
	if err := m.media.Connect(ctx, m.mediaCfg.Token, room, m.mediaCfg.ServerURL); err != nil {
		m.log.Warn("media session connect failed", zap.Error(err))
		m.media.Disconnect()
		m.resetToIdle("failed")
		return fmt.Errorf("media connect: %w", err)
	}

	m.mu.Lock()
	if m.rec == nil || !canTransition(m.rec.State, StateConnected) {
		m.mu.Unlock()
		m.media.Disconnect()
		m.log.Info("media session confirmed after call ended; releasing")
		return nil
	}
	now := m.now()
	m.rec.State = StateConnected
	if m.rec.StartTime == nil {
		m.rec.StartTime = &now
	}
	m.mu.Unlock()

	m.publishState()
	m.log.Info("call connected", zap.String("room", room))
	return nil
}

// beginIncomingLocked installs a new INCOMING record and starts the ringtone.
// Caller must hold m.mu and have verified no record exists.
func (m *Machine) beginIncomingLocked(conversationID, callerID int64, room string, video bool) {
	m.rec = &Record{
		ConversationID: conversationID,
		CounterpartyID: callerID,
		RoomName:       room,
		IsVideo:        video,
		IsOutgoing:     false,
		State:          StateIncoming,
	}
	m.ringer.StartRingtone()
	m.log.Info("incoming call",
		zap.Int64("conversation_id", conversationID),
		zap.Int64("caller_id", callerID),
		zap.Bool("video", video))
}

// enrichCounterparty fills in the counterparty name and image from the
// conversation summary, best effort. The lookup runs on the serial signaling
// dispatch path, so it gets the same bounded timeout as bootstrap.
func (m *Machine) enrichCounterparty(ctx context.Context, conversationID int64) {
	if m.lookup == nil {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, bootstrapLookupTimeout)
	defer cancel()
	info, err := m.lookup.GetConversation(lctx, conversationID)
	if err != nil || info == nil {
		m.log.Warn("conversation lookup for call failed",
			zap.Int64("conversation_id", conversationID), zap.Error(err))
		return
	}
	m.mu.Lock()
	if m.rec != nil && m.rec.ConversationID == conversationID {
		if m.rec.CounterpartyID == 0 {
			m.rec.CounterpartyID = info.ParticipantID
		}
		m.rec.CounterpartyName = info.ParticipantName
		m.rec.CounterpartyImageURL = info.ParticipantImageURL
	}
	m.mu.Unlock()
}

// resetToIdle finalizes times, emits the call log entry, and destroys the
// record. Safe to call when the record is already gone.
func (m *Machine) resetToIdle(outcome string) {
	m.mu.Lock()
	rec := m.rec
	if rec == nil {
		m.mu.Unlock()
		return
	}
	now := m.now()
	// Persisted times are never left unset: a call abandoned pre-connect
	// gets zero duration at teardown.
	if rec.StartTime == nil {
		rec.StartTime = &now
	}
	if rec.EndTime == nil {
		rec.EndTime = &now
	}
	wasConnected := rec.State == StateConnected
	rec.State = StateDisconnected
	entry := LogEntry{
		ConversationID:   rec.ConversationID,
		CounterpartyID:   rec.CounterpartyID,
		CounterpartyName: rec.CounterpartyName,
		IsVideo:          rec.IsVideo,
		IsOutgoing:       rec.IsOutgoing,
		WasConnected:     wasConnected,
		StartTime:        *rec.StartTime,
		EndTime:          *rec.EndTime,
		Outcome:          outcome,
	}
	m.rec = nil
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: bus.KindCallLogged, Timestamp: now, Payload: entry})
	}
	m.publishState()
	m.log.Info("call ended",
		zap.Int64("conversation_id", entry.ConversationID),
		zap.String("outcome", outcome),
		zap.Bool("was_connected", entry.WasConnected))
}

func (m *Machine) publishState() {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{Kind: bus.KindCallState, Timestamp: m.now(), Payload: m.Snapshot()})
}

// identity applies the caller/callee rule for terminal events: on an
// outgoing call the local user is the caller, otherwise the callee,
// regardless of who pressed end.
func (r *Record) identity(localUserID int64) (callerID, calleeID int64) {
	if r.IsOutgoing {
		return localUserID, r.CounterpartyID
	}
	return r.CounterpartyID, localUserID
}
