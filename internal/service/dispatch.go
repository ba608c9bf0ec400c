package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icecreamdb/chat-responder/internal/biz"
	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/biz/repo"
	"github.com/icecreamdb/chat-responder/internal/biz/usecase"
	"github.com/icecreamdb/chat-responder/internal/metrics"
)

// ShutdownMessage is sent to the room before an owner-requested shutdown
const ShutdownMessage = "Shutting down gracefully..."

const evalPrefix = "<eval "

// DispatchService runs chat events through the trigger pipeline
type DispatchService struct {
	uc      *biz.Usecases
	rules   repo.RuleRepo
	sender  repo.ChatSender
	logger  *slog.Logger
	metrics *metrics.Metrics

	now      func() time.Time
	shutdown func()
}

// DispatchOption configures a DispatchService
type DispatchOption func(*DispatchService)

// WithNow sets the clock used for cache staleness and cooldowns
func WithNow(now func() time.Time) DispatchOption {
	return func(s *DispatchService) { s.now = now }
}

// WithShutdown sets the hook invoked by the owner shutdown command
func WithShutdown(fn func()) DispatchOption {
	return func(s *DispatchService) { s.shutdown = fn }
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(uc *biz.Usecases, rules repo.RuleRepo, sender repo.ChatSender, logger *slog.Logger, m *metrics.Metrics, opts ...DispatchOption) *DispatchService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DispatchService{
		uc:      uc,
		rules:   rules,
		sender:  sender,
		logger:  logger.With("component", "dispatch"),
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleMessage processes one chat message: owner commands first, then rules,
// then individual user replies. Permission and cooldown rejections are silent.
func (s *DispatchService) HandleMessage(ctx context.Context, ev *domain.MessageEvent) error {
	s.metrics.Event("message")
	log := s.logger.With("dispatch_id", uuid.NewString(), "bot", ev.BotID, "room", ev.RoomID, "user", ev.UserID)

	roles := s.uc.Permissions.Roles(ev)
	if roles.BotOwner {
		if handled, err := s.handleOwnerCommand(ctx, log, ev, roles); handled {
			return err
		}
	}

	now := s.now()
	if err := s.uc.Cache.RefreshIfStale(ctx, now); err != nil {
		log.Warn("serving stale rules", "error", err)
	}

	key := ev.Key()
	snap, ok := s.uc.Cache.SnapshotFor(key)
	if !ok {
		return nil
	}

	var errs []error
	cands := s.uc.Matcher.Match(ev.Text, snap)
	if err := s.fireFirstPermitted(ctx, log, ev, snap.Channel, roles, cands.Phrase, now); err != nil {
		errs = append(errs, err)
	}
	if err := s.fireFirstPermitted(ctx, log, ev, snap.Channel, roles, cands.Regex, now); err != nil {
		errs = append(errs, err)
	}
	if err := s.handleUserReply(ctx, log, ev, snap.Channel, roles, now); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HandleNotice sends the configured response for a system notice
func (s *DispatchService) HandleNotice(ctx context.Context, ev *domain.NoticeEvent) error {
	s.metrics.Event("notice")
	if _, ok := domain.ParseNoticeKind(string(ev.Kind)); !ok {
		return nil
	}
	log := s.logger.With("dispatch_id", uuid.NewString(), "bot", ev.BotID, "room", ev.RoomID, "notice", ev.Kind)

	if err := s.uc.Cache.RefreshIfStale(ctx, s.now()); err != nil {
		log.Warn("serving stale rules", "error", err)
	}

	key := ev.Key()
	nr, ok := s.uc.Cache.NoticeResponseFor(key, ev.Kind)
	if !ok {
		return nil
	}
	ch := domain.Channel{BotID: ev.BotID, RoomID: ev.RoomID, Name: ev.RoomName}
	if snap, ok := s.uc.Cache.SnapshotFor(key); ok {
		ch = snap.Channel
	}

	text := usecase.RenderNotice(nr.Response, ev)
	sent, err := s.sendResponse(ctx, ev.RoomName, ch, text, "")
	if sent > 0 {
		s.metrics.Fired("notice")
		log.Info("notice response sent", "out", text)
	}
	return err
}

// handleOwnerCommand runs the owner-only shutdown and eval commands.
// It reports whether the message was consumed.
func (s *DispatchService) handleOwnerCommand(ctx context.Context, log *slog.Logger, ev *domain.MessageEvent, roles domain.RoleSet) (bool, error) {
	first, _, _ := strings.Cut(strings.TrimSpace(ev.Text), " ")
	switch strings.ToLower(first) {
	case "<shutdown", "<sh":
		log.Warn("shutdown requested by owner")
		_, err := s.sendResponse(ctx, ev.RoomName, withTarget(domain.Channel{}, ev), ShutdownMessage, "")
		s.metrics.Fired("intercept")
		if s.shutdown != nil {
			s.shutdown()
		}
		return true, err
	}

	if !strings.HasPrefix(ev.Text, evalPrefix) {
		return false, nil
	}

	expr := strings.TrimPrefix(ev.Text, evalPrefix)
	if strings.TrimSpace(expr) == "" {
		log.Debug("empty eval ignored")
		return true, nil
	}
	env := &usecase.EvalEnv{
		Event:     ev,
		Roles:     roles,
		Cache:     s.uc.Cache,
		Cooldowns: s.uc.Cooldowns,
		Templater: s.uc.Templater,
		Now:       s.now(),
	}
	value, evalErr := s.uc.Evaluator.Evaluate(ctx, env, expr)
	out := usecase.FormatEvalResult(value, evalErr)
	log.Info("owner eval", "expr", expr, "out", out)

	ch := domain.Channel{}
	if snap, ok := s.uc.Cache.SnapshotFor(ev.Key()); ok {
		ch = snap.Channel
	}
	_, err := s.sendResponse(ctx, ev.RoomName, withTarget(ch, ev), out, ev.MessageID)
	s.metrics.Fired("intercept")
	return true, err
}

// fireFirstPermitted loads the candidate rules and fires the first one the sender may use
func (s *DispatchService) fireFirstPermitted(ctx context.Context, log *slog.Logger, ev *domain.MessageEvent, ch domain.Channel, roles domain.RoleSet, ids []int64, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	rules, err := s.rules.RulesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load candidate rules: %w", err)
	}

	rule := usecase.FirstPermitted(rules, roles)
	if rule == nil {
		s.metrics.Suppressed("permission")
		log.Debug("no permitted rule", "candidates", ids)
		return nil
	}

	if !s.uc.Cooldowns.TryFire(usecase.RuleCooldownKey(ch.Key(), rule), roles.Privileged(), now) {
		s.metrics.Suppressed("cooldown")
		log.Debug("rule on cooldown", "rule_id", rule.ID)
		return nil
	}

	text := s.uc.Templater.Render(ctx, rule.Response, ev, rule.TimesUsed)
	replyTo := ""
	if rule.ShouldReply {
		replyTo = ev.MessageID
	}

	sent, sendErr := s.sendResponse(ctx, ev.RoomName, withTarget(ch, ev), text, replyTo)
	if sent == 0 {
		return sendErr
	}
	s.metrics.Fired("rule")
	log.Info("rule fired", "rule_id", rule.ID, "in", ev.Text, "out", text)

	if err := s.rules.IncrementTimesUsed(ctx, rule.ID); err != nil {
		log.Error("failed to record rule usage", "rule_id", rule.ID, "error", err)
	}
	return sendErr
}

// handleUserReply sends the first individual reply whose phrase the message contains
func (s *DispatchService) handleUserReply(ctx context.Context, log *slog.Logger, ev *domain.MessageEvent, ch domain.Channel, roles domain.RoleSet, now time.Time) error {
	replies, ok := s.uc.Cache.IndividualRepliesFor(ev.Key(), ev.UserID)
	if !ok {
		return nil
	}

	for _, r := range replies {
		if !strings.Contains(ev.Text, r.TriggerPhrase) {
			continue
		}
		if !s.uc.Cooldowns.TryFire(usecase.ReplyCooldownKey(ev.Key(), r.TriggerPhrase, ev.UserID), roles.Privileged(), now) {
			s.metrics.Suppressed("cooldown")
			return nil
		}

		text := s.uc.Templater.Render(ctx, r.Response, ev, 0)
		sent, err := s.sendResponse(ctx, ev.RoomName, withTarget(ch, ev), text, "")
		if sent > 0 {
			s.metrics.Fired("user_reply")
			log.Info("user reply sent", "phrase", r.TriggerPhrase, "in", ev.Text, "out", text)
		}
		return err
	}
	return nil
}

// sendResponse splits text into segments and sends them in order.
// It stops at the first failed send and returns how many were delivered.
func (s *DispatchService) sendResponse(ctx context.Context, roomName string, ch domain.Channel, text, replyTo string) (int, error) {
	segments := usecase.SplitSegments(text)
	multi := len(segments) > 1
	if roomName == "" {
		roomName = ch.Name
	}

	for i, seg := range segments {
		msg := &domain.OutgoingMessage{
			BotID:        ch.BotID,
			RoomID:       ch.RoomID,
			RoomName:     roomName,
			Text:         usecase.Truncate(seg, ch.MaxLength()),
			ReplyToID:    replyTo,
			MultiSegment: multi,
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			s.metrics.SendError()
			return i, fmt.Errorf("failed to send segment %d/%d to room %s: %w", i+1, len(segments), ch.RoomID, err)
		}
	}
	return len(segments), nil
}

// withTarget fills the channel identity from the event when the channel came from an empty snapshot
func withTarget(ch domain.Channel, ev *domain.MessageEvent) domain.Channel {
	if ch.BotID == "" {
		ch.BotID = ev.BotID
	}
	if ch.RoomID == "" {
		ch.RoomID = ev.RoomID
	}
	if ch.Name == "" {
		ch.Name = ev.RoomName
	}
	return ch
}
