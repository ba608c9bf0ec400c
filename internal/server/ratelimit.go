package server

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/biz/repo"
)

// RateLimitedSender paces outbound lines per channel. Sends block until
// the channel's budget allows them or ctx is done.
type RateLimitedSender struct {
	next  repo.ChatSender
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[domain.ChannelKey]*rate.Limiter
}

// NewRateLimitedSender wraps next. perSecond <= 0 disables limiting.
func NewRateLimitedSender(next repo.ChatSender, perSecond float64, burst int) *RateLimitedSender {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedSender{
		next:     next,
		limit:    limit,
		burst:    burst,
		limiters: make(map[domain.ChannelKey]*rate.Limiter),
	}
}

// Send waits for the channel budget, then forwards the line
func (s *RateLimitedSender) Send(ctx context.Context, msg *domain.OutgoingMessage) error {
	if err := s.limiter(domain.ChannelKey{BotID: msg.BotID, RoomID: msg.RoomID}).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return s.next.Send(ctx, msg)
}

func (s *RateLimitedSender) limiter(key domain.ChannelKey) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = lim
	}
	return lim
}
