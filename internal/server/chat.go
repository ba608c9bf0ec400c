package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/service"
)

// seenTTL is how long a message id is remembered for deduplication
const seenTTL = 5 * time.Minute

// Transport is a chat connection that delivers events and accepts outbound lines
type Transport interface {
	BotID() string
	OnMessage(handler func(ev *domain.MessageEvent))
	Start(ctx context.Context) error
	Stop()
}

// NoticeSource is implemented by transports that carry system notices
type NoticeSource interface {
	OnNotice(handler func(ev *domain.NoticeEvent))
}

// ChatServer feeds transport events into the dispatch service
type ChatServer struct {
	transport Transport
	dispatch  *service.DispatchService
	logger    *slog.Logger

	ctx context.Context
	wg  sync.WaitGroup

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewChatServer creates a new chat server
func NewChatServer(transport Transport, dispatch *service.DispatchService, logger *slog.Logger) *ChatServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatServer{
		transport: transport,
		dispatch:  dispatch,
		logger:    logger.With("component", "server", "bot", transport.BotID()),
		ctx:       context.Background(),
		seenMsgs:  make(map[string]time.Time),
	}
}

// Start registers handlers and runs the transport until ctx is done
func (s *ChatServer) Start(ctx context.Context) error {
	s.ctx = ctx
	s.transport.OnMessage(s.handleMessage)
	if ns, ok := s.transport.(NoticeSource); ok {
		ns.OnNotice(s.handleNotice)
	}
	s.logger.Info("chat server starting")
	return s.transport.Start(ctx)
}

// Stop stops the transport and waits for in-flight events
func (s *ChatServer) Stop() {
	s.transport.Stop()
	s.wg.Wait()
}

// handleMessage runs on the transport's callback, so dispatch happens on
// its own goroutine and a slow send never stalls the read loop
func (s *ChatServer) handleMessage(ev *domain.MessageEvent) {
	if ev.MessageID != "" && !s.markMessageSeen(ev.MessageID, time.Now()) {
		s.logger.Debug("duplicate message ignored", "message_id", ev.MessageID)
		return
	}

	s.logger.Debug("message in", "room", ev.RoomName, "user", ev.UserName, "text", ev.Text)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.dispatch.HandleMessage(s.ctx, ev); err != nil {
			s.logger.Error("dispatch message failed", "room", ev.RoomID, "error", err)
		}
	}()
}

func (s *ChatServer) handleNotice(ev *domain.NoticeEvent) {
	s.logger.Debug("notice in", "room", ev.RoomName, "kind", ev.Kind)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.dispatch.HandleNotice(s.ctx, ev); err != nil {
			s.logger.Error("dispatch notice failed", "room", ev.RoomID, "error", err)
		}
	}()
}

// markMessageSeen records msgID and reports whether it was new.
// A record older than seenTTL counts as unseen.
func (s *ChatServer) markMessageSeen(msgID string, now time.Time) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	if ts, exists := s.seenMsgs[msgID]; exists && !ts.Before(now.Add(-seenTTL)) {
		return false
	}
	s.seenMsgs[msgID] = now
	return true
}

// PruneSeen drops dedup records older than seenTTL and returns how many were removed
func (s *ChatServer) PruneSeen(now time.Time) int {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	cutoff := now.Add(-seenTTL)
	removed := 0
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
			removed++
		}
	}
	return removed
}
