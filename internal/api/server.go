// Package api exposes the daemon control surface as HTTP/JSON over the
// session's unix domain socket.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mkravets/vox/internal/call"
	"github.com/mkravets/vox/internal/chat"
	"github.com/mkravets/vox/internal/signal"
	"github.com/mkravets/vox/internal/store"
	"go.uber.org/zap"
)

// Conn is the connection manager surface the API reads.
type Conn interface {
	Status() signal.Status
}

// Calls is the call machine surface driven by the API.
type Calls interface {
	Snapshot() *call.Record
	StartOutgoing(ctx context.Context, conversationID, calleeID int64, video bool) error
	Accept(ctx context.Context) error
	Reject(ctx context.Context) error
	End(ctx context.Context) error
	ToggleMute() bool
	ToggleCamera(enabled bool)
	HandleAction(ctx context.Context, a call.Action) error
	HandleIncomingPush(ctx context.Context, conversationID int64, callerName string, video bool)
}

// Messaging is the reconciler surface driven by the API.
type Messaging interface {
	SendMessage(ctx context.Context, conversationID int64, text string, parentMessageID int64) (*chat.Message, error)
	Retry(ctx context.Context, conversationID, messageID int64) error
	MarkOpen(ctx context.Context, conversationID int64)
}

// Directory serves cached reads. Satisfied by *store.DB.
type Directory interface {
	ListConversations(limit, offset int) ([]store.Conversation, error)
	ListMessages(conversationID, beforeTs int64, limit int) ([]store.Message, error)
	ListCallLog(conversationID int64, limit int) ([]store.CallLog, error)
}

// Server manages the HTTP control server on the session socket.
type Server struct {
	session     string
	socketPath  string
	localUserID int64
	conn        Conn
	calls       Calls
	msgs        Messaging
	mem         *chat.MemStore
	dir         Directory
	log         *zap.Logger

	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a control server bound to the session's unix domain
// socket.
func NewServer(session, socketPath string, localUserID int64, conn Conn, calls Calls, msgs Messaging, mem *chat.MemStore, dir Directory, log *zap.Logger) (*Server, error) {
	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	s := &Server{
		session:     session,
		socketPath:  socketPath,
		localUserID: localUserID,
		conn:        conn,
		calls:       calls,
		msgs:        msgs,
		mem:         mem,
		dir:         dir,
		log:         log,
		listener:    listener,
	}
	s.httpServer = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Get("/{id}/messages", s.handleListMessages)
			r.Post("/{id}/messages", s.handleSendMessage)
			r.Post("/{id}/messages/{messageId}/retry", s.handleRetryMessage)
			r.Post("/{id}/open", s.handleOpen)
		})

		r.Route("/call", func(r chi.Router) {
			r.Get("/", s.handleGetCall)
			r.Get("/log", s.handleCallLog)
			r.Post("/start", s.handleStartCall)
			r.Post("/accept", s.handleAcceptCall)
			r.Post("/reject", s.handleRejectCall)
			r.Post("/end", s.handleEndCall)
			r.Post("/mute", s.handleToggleMute)
			r.Post("/camera", s.handleToggleCamera)
			r.Post("/action", s.handleCallAction)
		})

		r.Post("/push", s.handlePush)
	})
	return r
}

// Start begins serving requests. Blocks until stopped.
func (s *Server) Start() error {
	s.log.Info("control server starting", zap.String("socket", s.socketPath))
	err := s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.log.Info("control server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
	}
	_ = os.Remove(s.socketPath)
}
