package api

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mkravets/vox/internal/call"
	"github.com/mkravets/vox/internal/chat"
	"github.com/mkravets/vox/internal/push"
	"github.com/mkravets/vox/internal/store"
	"go.uber.org/zap"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	callState := string(call.StateIdle)
	if rec := s.calls.Snapshot(); rec != nil {
		callState = string(rec.State)
	}
	s.respondJSON(w, http.StatusOK, StatusResponse{
		Session:    s.session,
		Connection: string(s.conn.Status()),
		CallState:  callState,
		UserID:     s.localUserID,
		PID:        os.Getpid(),
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := int(queryInt(r, "limit"))
	offset := int(queryInt(r, "offset"))
	convs, err := s.dir.ListConversations(limit, offset)
	if err != nil {
		s.handleError(w, err)
		return
	}
	now := time.Now().UnixMilli()
	views := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		unread := c.UnreadCount
		if live := s.mem.Unread(c.ID); live > unread {
			unread = live
		}
		views = append(views, ConversationView{
			ID:                  c.ID,
			ParticipantID:       c.ParticipantID,
			ParticipantName:     c.ParticipantName,
			ParticipantImageURL: c.ParticipantImageURL,
			UnreadCount:         unread,
			Muted:               c.MutedUntil > now,
			LastMessageAt:       c.LastMessageAt,
			LastMessagePreview:  c.LastMessagePreview,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"conversations": views})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	before := queryInt(r, "before")
	limit := int(queryInt(r, "limit"))

	// The live working set includes optimistic entries the archive never
	// sees; serve it for the current page, fall back to the archive for
	// history.
	if before == 0 {
		if live := s.mem.Messages(id); len(live) > 0 {
			views := make([]MessageView, 0, len(live))
			for i := range live {
				views = append(views, liveMessageView(&live[i]))
			}
			s.respondJSON(w, http.StatusOK, map[string]any{"messages": views})
			return
		}
	}

	rows, err := s.dir.ListMessages(id, before, limit)
	if err != nil {
		s.handleError(w, err)
		return
	}
	// The archive pages newest first; clients render oldest first.
	views := make([]MessageView, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		views = append(views, storedMessageView(&rows[i]))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": views})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "empty message text")
		return
	}
	m, err := s.msgs.SendMessage(r.Context(), id, req.Text, req.ParentMessageID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, liveMessageView(m))
}

func (s *Server) handleRetryMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageId"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	if err := s.msgs.Retry(r.Context(), id, messageID); err != nil {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	var req OpenRequest
	_ = decodeBody(r, &req) // empty body = open
	if req.Open != nil && !*req.Open {
		s.msgs.MarkOpen(r.Context(), 0)
	} else {
		s.msgs.MarkOpen(r.Context(), id)
	}
	s.respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, callView(s.calls.Snapshot()))
}

func (s *Server) handleCallLog(w http.ResponseWriter, r *http.Request) {
	logs, err := s.dir.ListCallLog(queryInt(r, "conversationId"), int(queryInt(r, "limit")))
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"calls": logs})
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req StartCallRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ConversationID <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if err := s.calls.StartOutgoing(r.Context(), req.ConversationID, req.CalleeID, req.IsVideo); err != nil {
		s.handleError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, callView(s.calls.Snapshot()))
}

func (s *Server) handleAcceptCall(w http.ResponseWriter, r *http.Request) {
	if err := s.calls.Accept(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, callView(s.calls.Snapshot()))
}

func (s *Server) handleRejectCall(w http.ResponseWriter, r *http.Request) {
	if err := s.calls.Reject(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, callView(s.calls.Snapshot()))
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	if err := s.calls.End(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, callView(s.calls.Snapshot()))
}

func (s *Server) handleToggleMute(w http.ResponseWriter, r *http.Request) {
	muted := s.calls.ToggleMute()
	s.respondJSON(w, http.StatusOK, map[string]bool{"muted": muted})
}

func (s *Server) handleToggleCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.calls.ToggleCamera(req.Enabled)
	s.respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleCallAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	// Notification actions are fire and forget: unknown or stale actions
	// are dropped by the machine, not surfaced to the OS shell.
	if err := s.calls.HandleAction(r.Context(), call.Action{
		Name:           req.Action,
		ConversationID: req.ConversationID,
		ParticipantID:  req.ParticipantID,
	}); err != nil {
		s.handleError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	incoming, msg, err := push.Parse(raw)
	if err != nil {
		s.log.Warn("push payload dropped", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case incoming != nil:
		s.calls.HandleIncomingPush(r.Context(), incoming.ConversationID, incoming.CallerName, incoming.IsVideo)
	case msg != nil:
		// Message pushes only wake the daemon; the signaling channel
		// delivers the content.
		s.log.Info("message push received", zap.Int64("conversation_id", msg.ConversationID))
	}
	s.respondJSON(w, http.StatusAccepted, nil)
}

func liveMessageView(m *chat.Message) MessageView {
	return MessageView{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Text:            m.Text,
		MessageType:     m.MessageType,
		ParentMessageID: m.ParentMessageID,
		SentAt:          m.CreatedAt,
		IsDelivered:     m.IsDelivered,
		IsRead:          m.IsRead,
		Pending:         m.Optimistic(),
		Retryable:       m.Retryable,
	}
}

func storedMessageView(m *store.Message) MessageView {
	return MessageView{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Text:            m.Body,
		MessageType:     m.MessageType,
		ParentMessageID: m.ParentMessageID,
		SentAt:          time.UnixMilli(m.SentAt),
		IsDelivered:     m.IsDelivered,
		IsRead:          m.IsRead,
	}
}

func callView(rec *call.Record) CallView {
	if rec == nil {
		return CallView{State: string(call.StateIdle)}
	}
	return CallView{
		State:                string(rec.State),
		ConversationID:       rec.ConversationID,
		CounterpartyID:       rec.CounterpartyID,
		CounterpartyName:     rec.CounterpartyName,
		CounterpartyImageURL: rec.CounterpartyImageURL,
		RoomName:             rec.RoomName,
		IsVideo:              rec.IsVideo,
		IsOutgoing:           rec.IsOutgoing,
		StartTime:            rec.StartTime,
		EndTime:              rec.EndTime,
	}
}
