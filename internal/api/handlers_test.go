package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkravets/vox/internal/call"
	"github.com/mkravets/vox/internal/chat"
	"github.com/mkravets/vox/internal/signal"
	"github.com/mkravets/vox/internal/store"
	"go.uber.org/zap"
)

type fakeConn struct{ status signal.Status }

func (f *fakeConn) Status() signal.Status { return f.status }

type fakeCalls struct {
	snapshot *call.Record
	started  []StartCallRequest
	accepted int
	rejected int
	ended    int
	actions  []call.Action
	pushes   []int64
	err      error
}

func (f *fakeCalls) Snapshot() *call.Record { return f.snapshot }

func (f *fakeCalls) StartOutgoing(_ context.Context, conversationID, calleeID int64, video bool) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, StartCallRequest{ConversationID: conversationID, CalleeID: calleeID, IsVideo: video})
	return nil
}

func (f *fakeCalls) Accept(context.Context) error { f.accepted++; return f.err }
func (f *fakeCalls) Reject(context.Context) error { f.rejected++; return f.err }
func (f *fakeCalls) End(context.Context) error    { f.ended++; return f.err }
func (f *fakeCalls) ToggleMute() bool             { return true }
func (f *fakeCalls) ToggleCamera(bool)            {}

func (f *fakeCalls) HandleAction(_ context.Context, a call.Action) error {
	f.actions = append(f.actions, a)
	return f.err
}

func (f *fakeCalls) HandleIncomingPush(_ context.Context, conversationID int64, _ string, _ bool) {
	f.pushes = append(f.pushes, conversationID)
}

type fakeMessaging struct {
	opened []int64
	err    error
}

func (f *fakeMessaging) SendMessage(_ context.Context, conversationID int64, text string, parentID int64) (*chat.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &chat.Message{ID: -1, ConversationID: conversationID, SenderID: 10, Text: text, MessageType: "text", ParentMessageID: parentID, CreatedAt: time.Now()}, nil
}

func (f *fakeMessaging) Retry(context.Context, int64, int64) error { return f.err }

func (f *fakeMessaging) MarkOpen(_ context.Context, conversationID int64) {
	f.opened = append(f.opened, conversationID)
}

type fakeDirectory struct {
	conversations []store.Conversation
	messages      []store.Message
	calls         []store.CallLog
	err           error
}

func (f *fakeDirectory) ListConversations(int, int) ([]store.Conversation, error) {
	return f.conversations, f.err
}

func (f *fakeDirectory) ListMessages(int64, int64, int) ([]store.Message, error) {
	return f.messages, f.err
}

func (f *fakeDirectory) ListCallLog(int64, int) ([]store.CallLog, error) {
	return f.calls, f.err
}

type apiFixture struct {
	server *Server
	conn   *fakeConn
	calls  *fakeCalls
	msgs   *fakeMessaging
	dir    *fakeDirectory
	mem    *chat.MemStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	mem := chat.NewMemStore()
	f := &apiFixture{
		conn:  &fakeConn{status: signal.StatusConnected},
		calls: &fakeCalls{},
		msgs:  &fakeMessaging{},
		dir:   &fakeDirectory{},
		mem:   mem,
	}
	f.server = &Server{
		session:     "main",
		localUserID: 10,
		conn:        f.conn,
		calls:       f.calls,
		msgs:        f.msgs,
		mem:         mem,
		dir:         f.dir,
		log:         zap.NewNop(),
	}
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.server.routes().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[StatusResponse](t, w)
	if resp.Session != "main" || resp.Connection != "CONNECTED" || resp.CallState != "IDLE" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStatusReflectsLiveCall(t *testing.T) {
	f := newAPIFixture(t)
	f.calls.snapshot = &call.Record{ConversationID: 42, State: call.StateConnected}

	resp := decode[StatusResponse](t, f.do(t, http.MethodGet, "/api/status", ""))
	if resp.CallState != "CONNECTED" {
		t.Errorf("callState = %q, want CONNECTED", resp.CallState)
	}
}

func TestListConversations(t *testing.T) {
	f := newAPIFixture(t)
	f.dir.conversations = []store.Conversation{
		{ID: 42, ParticipantName: "Ана", UnreadCount: 1},
		{ID: 43, ParticipantName: "Боб", MutedUntil: time.Now().Add(time.Hour).UnixMilli()},
	}

	w := f.do(t, http.MethodGet, "/api/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[map[string][]ConversationView](t, w)
	convs := resp["conversations"]
	if len(convs) != 2 || convs[0].ParticipantName != "Ана" || convs[0].UnreadCount != 1 {
		t.Fatalf("conversations = %+v", convs)
	}
	if convs[0].Muted || !convs[1].Muted {
		t.Errorf("muted flags = (%v, %v), want (false, true)", convs[0].Muted, convs[1].Muted)
	}
}

func TestListMessagesFromArchiveOldestFirst(t *testing.T) {
	f := newAPIFixture(t)
	f.dir.messages = []store.Message{
		{ID: 2, ConversationID: 42, Body: "second", SentAt: 200},
		{ID: 1, ConversationID: 42, Body: "first", SentAt: 100},
	}

	resp := decode[map[string][]MessageView](t, f.do(t, http.MethodGet, "/api/conversations/42/messages", ""))
	msgs := resp["messages"]
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("messages = %+v, want oldest first", msgs)
	}
}

func TestSendMessageReturnsPendingEntry(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/conversations/42/messages", `{"text":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	view := decode[MessageView](t, w)
	if view.ID >= 0 || !view.Pending {
		t.Errorf("view = %+v, want negative id pending entry", view)
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(t, http.MethodPost, "/api/conversations/0/messages", `{"text":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/conversations/42/messages", `{"text":""}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/conversations/42/messages", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestOpenAndCloseConversation(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(t, http.MethodPost, "/api/conversations/42/open", ""); w.Code != http.StatusOK {
		t.Fatalf("open status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/conversations/42/open", `{"open":false}`); w.Code != http.StatusOK {
		t.Fatalf("close status = %d", w.Code)
	}
	if len(f.msgs.opened) != 2 || f.msgs.opened[0] != 42 || f.msgs.opened[1] != 0 {
		t.Errorf("opened = %v, want [42 0]", f.msgs.opened)
	}
}

func TestCallLifecycleEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/call/start", `{"conversationId":42,"calleeId":7,"isVideo":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	if len(f.calls.started) != 1 || !f.calls.started[0].IsVideo {
		t.Fatalf("started = %+v", f.calls.started)
	}

	for _, path := range []string{"/api/call/accept", "/api/call/reject", "/api/call/end"} {
		if w := f.do(t, http.MethodPost, path, ""); w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
	if f.calls.accepted != 1 || f.calls.rejected != 1 || f.calls.ended != 1 {
		t.Errorf("calls = %+v", f.calls)
	}
}

func TestStartCallBusyMapsToConflict(t *testing.T) {
	f := newAPIFixture(t)
	f.calls.err = call.ErrCallInProgress

	w := f.do(t, http.MethodPost, "/api/call/start", `{"conversationId":42}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestStartCallPermissionMapsToForbidden(t *testing.T) {
	f := newAPIFixture(t)
	f.calls.err = call.ErrPermissionDenied

	w := f.do(t, http.MethodPost, "/api/call/start", `{"conversationId":42}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCallActionForwardsParticipant(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/call/action", `{"action":"accept_call","conversationId":42,"participantId":7}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if len(f.calls.actions) != 1 {
		t.Fatal("action not forwarded")
	}
	a := f.calls.actions[0]
	if a.Name != "accept_call" || a.ConversationID != 42 || a.ParticipantID == nil || *a.ParticipantID != 7 {
		t.Errorf("action = %+v", a)
	}
}

func TestCallActionWithoutParticipantKeepsNil(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodPost, "/api/call/action", `{"action":"reject_call","conversationId":42}`)
	if len(f.calls.actions) != 1 || f.calls.actions[0].ParticipantID != nil {
		t.Errorf("actions = %+v, want nil participant", f.calls.actions)
	}
}

func TestPushEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/push", `{"type":"INCOMING_CALL","conversationId":42,"callerName":"Ана"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if len(f.calls.pushes) != 1 || f.calls.pushes[0] != 42 {
		t.Errorf("pushes = %v", f.calls.pushes)
	}

	if w := f.do(t, http.MethodPost, "/api/push", `{"type":"NEW_MESSAGE","conversationId":7}`); w.Code != http.StatusAccepted {
		t.Errorf("message push status = %d, want 202", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/push", `{"type":"JUNK","conversationId":7}`); w.Code != http.StatusBadRequest {
		t.Errorf("junk push status = %d, want 400", w.Code)
	}
	if len(f.calls.pushes) != 1 {
		t.Error("non-call pushes must not reach the call machine")
	}
}

func TestGetCallIdleShape(t *testing.T) {
	f := newAPIFixture(t)

	view := decode[CallView](t, f.do(t, http.MethodGet, "/api/call", ""))
	if view.State != "IDLE" || view.ConversationID != 0 {
		t.Errorf("view = %+v", view)
	}
}
