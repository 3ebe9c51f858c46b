package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkravets/vox/internal/signal"
	"go.uber.org/zap"
)

const localUserID = int64(10)

type fakeArchive struct {
	mu     sync.Mutex
	saved  []Message
	reads  []int64
	unread map[int64]int
	muted  map[int64]bool
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{unread: map[int64]int{}, muted: map[int64]bool{}}
}

func (f *fakeArchive) SaveMessage(_ context.Context, m *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *m)
	return nil
}

func (f *fakeArchive) SetPreview(context.Context, int64, string, time.Time) error { return nil }

func (f *fakeArchive) AddUnread(_ context.Context, id int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread[id] += delta
	return nil
}

func (f *fakeArchive) MarkConversationRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, id)
	return nil
}

func (f *fakeArchive) IsMuted(_ context.Context, id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted[id]
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*signal.Event
	err  error
}

func (f *fakeSender) Send(_ context.Context, evt *signal.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, evt)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	sounds []int64
}

func (f *fakeNotifier) MessageSound(conversationID int64) {
	f.mu.Lock()
	f.sounds = append(f.sounds, conversationID)
	f.mu.Unlock()
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sounds)
}

type chatFixture struct {
	rec      *Reconciler
	mem      *MemStore
	archive  *fakeArchive
	sender   *fakeSender
	notifier *fakeNotifier
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	mem := NewMemStore()
	archive := newFakeArchive()
	sender := &fakeSender{}
	notifier := &fakeNotifier{}
	r := NewReconciler(localUserID, mem, archive, sender, notifier, nil, zap.NewNop())
	return &chatFixture{rec: r, mem: mem, archive: archive, sender: sender, notifier: notifier}
}

func echo(id, conversationID, senderID int64, text string, parentID int64) *signal.WireMessage {
	return &signal.WireMessage{
		ID:              id,
		ConversationID:  conversationID,
		SenderID:        senderID,
		Text:            text,
		MessageType:     "text",
		ParentMessageID: parentID,
		SentAt:          time.Now(),
		IsDelivered:     true,
	}
}

func TestOptimisticEchoLeavesExactlyOneMessage(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	m, err := fx.rec.SendMessage(ctx, 42, "hello", 0)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if !m.Optimistic() {
		t.Fatalf("placeholder id = %d, want negative", m.ID)
	}

	fx.rec.HandleInbound(ctx, echo(500, 42, localUserID, "hello", 0))

	list := fx.mem.Messages(42)
	if len(list) != 1 {
		t.Fatalf("messages = %d, want 1 after reconciliation", len(list))
	}
	if list[0].ID != 500 {
		t.Errorf("id = %d, want server-assigned 500", list[0].ID)
	}
}

func TestDuplicateSendsReconcileOldestFirst(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	m1, _ := fx.rec.SendMessage(ctx, 42, "ok", 0)
	m2, _ := fx.rec.SendMessage(ctx, 42, "ok", 0)
	if m1.ID == m2.ID {
		t.Fatalf("placeholder ids collide: %d", m1.ID)
	}

	// First echo must pair with the first send.
	fx.rec.HandleInbound(ctx, echo(501, 42, localUserID, "ok", 0))

	list := fx.mem.Messages(42)
	if len(list) != 2 {
		t.Fatalf("messages = %d, want 2", len(list))
	}
	if list[0].ID != 501 {
		t.Errorf("first slot id = %d, want 501 (oldest send reconciled first)", list[0].ID)
	}
	if list[1].ID != m2.ID {
		t.Errorf("second slot id = %d, want the second placeholder %d", list[1].ID, m2.ID)
	}

	// Second echo resolves the remaining entry.
	fx.rec.HandleInbound(ctx, echo(502, 42, localUserID, "ok", 0))
	list = fx.mem.Messages(42)
	if list[0].ID != 501 || list[1].ID != 502 {
		t.Errorf("ids = (%d, %d), want (501, 502)", list[0].ID, list[1].ID)
	}
}

func TestParentNilAndZeroAreOneClass(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	fx.rec.SendMessage(ctx, 42, "reply", 7)
	fx.rec.SendMessage(ctx, 42, "reply", 0)

	// Echo without a parent must match the parentless send, not the reply.
	fx.rec.HandleInbound(ctx, echo(600, 42, localUserID, "reply", 0))

	list := fx.mem.Messages(42)
	if !list[0].Optimistic() {
		t.Error("reply with parent was reconciled by a parentless echo")
	}
	if list[1].ID != 600 {
		t.Errorf("parentless send id = %d, want 600", list[1].ID)
	}
}

func TestInboundFromOtherIncrementsUnreadAndNotifies(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	fx.rec.HandleInbound(ctx, echo(700, 42, 7, "hi", 0))

	if got := fx.mem.Unread(42); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}
	if fx.notifier.count() != 1 {
		t.Errorf("sounds = %d, want 1", fx.notifier.count())
	}
}

func TestMutedConversationStaysSilent(t *testing.T) {
	fx := newChatFixture(t)
	fx.archive.muted[42] = true
	ctx := context.Background()

	fx.rec.HandleInbound(ctx, echo(700, 42, 7, "hi", 0))

	if fx.notifier.count() != 0 {
		t.Errorf("sounds = %d, want 0 for muted conversation", fx.notifier.count())
	}
	// Muted suppresses the cue but not the unread counter.
	if got := fx.mem.Unread(42); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}
}

func TestOpenConversationNeverNotifiesAndEmitsReadReceipt(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()
	fx.rec.MarkOpen(ctx, 42)

	fx.rec.HandleInbound(ctx, echo(700, 42, 7, "hi", 0))

	if got := fx.mem.Unread(42); got != 0 {
		t.Errorf("unread = %d, want 0 for the open conversation", got)
	}
	if fx.notifier.count() != 0 {
		t.Errorf("sounds = %d, want 0 for the open conversation", fx.notifier.count())
	}
	fx.archive.mu.Lock()
	reads := len(fx.archive.reads)
	fx.archive.mu.Unlock()
	if reads < 2 { // one for MarkOpen, one for the inbound message
		t.Errorf("read receipts = %d, want at least 2", reads)
	}
}

func TestMutedAndOpenSuppressesEverything(t *testing.T) {
	fx := newChatFixture(t)
	fx.archive.muted[42] = true
	ctx := context.Background()
	fx.rec.MarkOpen(ctx, 42)

	fx.rec.HandleInbound(ctx, echo(700, 42, 7, "hi", 0))

	if fx.notifier.count() != 0 {
		t.Error("sound triggered for muted open conversation")
	}
	if got := fx.mem.Unread(42); got != 0 {
		t.Errorf("unread = %d, want 0", got)
	}
}

func TestSendFailureKeepsOptimisticEntry(t *testing.T) {
	fx := newChatFixture(t)
	fx.sender.err = errors.New("channel down")
	ctx := context.Background()

	m, err := fx.rec.SendMessage(ctx, 42, "hello", 0)
	if err != nil {
		t.Fatalf("SendMessage() error = %v, want nil (optimistic insert succeeds)", err)
	}
	list := fx.mem.Messages(42)
	if len(list) != 1 || list[0].ID != m.ID {
		t.Fatalf("optimistic entry missing after send failure")
	}
}

func TestAckTimeoutFlagsRetryable(t *testing.T) {
	fx := newChatFixture(t)
	fx.rec.ackWait = 10 * time.Millisecond
	ctx := context.Background()

	m, _ := fx.rec.SendMessage(ctx, 42, "hello", 0)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if fx.mem.Messages(42)[0].Retryable {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !fx.mem.Messages(42)[0].Retryable {
		t.Fatal("entry not flagged retryable after ack wait")
	}

	// Retry re-sends the same content.
	sentBefore := len(fx.sender.sent)
	if err := fx.rec.Retry(ctx, 42, m.ID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if len(fx.sender.sent) != sentBefore+1 {
		t.Error("Retry() did not re-send")
	}
}

func TestAckTimeoutSkippedWhenReconciled(t *testing.T) {
	fx := newChatFixture(t)
	fx.rec.ackWait = 20 * time.Millisecond
	ctx := context.Background()

	fx.rec.SendMessage(ctx, 42, "hello", 0)
	fx.rec.HandleInbound(ctx, echo(500, 42, localUserID, "hello", 0))

	time.Sleep(60 * time.Millisecond)
	if fx.mem.Messages(42)[0].Retryable {
		t.Error("reconciled message flagged retryable")
	}
}

func TestSendMessageValidation(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	if _, err := fx.rec.SendMessage(ctx, 0, "hello", 0); err == nil {
		t.Error("SendMessage(conversation=0) expected error")
	}
	if _, err := fx.rec.SendMessage(ctx, 42, "", 0); err == nil {
		t.Error("SendMessage(empty text) expected error")
	}
}
