package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/biz/repo"
	"github.com/icecreamdb/chat-responder/internal/metrics"
)

// DefaultStaleness is how long a rule snapshot is served before a reload
const DefaultStaleness = 30 * time.Second

// ErrRefreshInProgress is returned by a forced refresh while another one runs
var ErrRefreshInProgress = errors.New("rule cache refresh already in progress")

// CacheConfig contains rule cache configuration
type CacheConfig struct {
	Staleness    time.Duration
	RegexTimeout time.Duration
}

// DefaultCacheConfig returns the default rule cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Staleness:    DefaultStaleness,
		RegexTimeout: DefaultRegexTimeout,
	}
}

// ChannelSnapshot is the trigger set of one channel
type ChannelSnapshot struct {
	Channel        domain.Channel
	PhraseTriggers []PhraseTrigger
	RegexTriggers  []RegexTrigger
}

type replyKey struct {
	channel domain.ChannelKey
	userID  string
}

type noticeKey struct {
	channel domain.ChannelKey
	kind    domain.NoticeKind
}

type ruleSnapshot struct {
	channels map[domain.ChannelKey]*ChannelSnapshot
	replies  map[replyKey][]domain.IndividualUserReply
	notices  map[noticeKey]domain.NoticeResponse
	builtAt  time.Time
}

// CacheStatus summarizes the current snapshot
type CacheStatus struct {
	Channels       int       `json:"channels"`
	PhraseTriggers int       `json:"phrase_triggers"`
	RegexTriggers  int       `json:"regex_triggers"`
	UserReplies    int       `json:"user_replies"`
	Notices        int       `json:"notice_responses"`
	LastRefresh    time.Time `json:"last_refresh"`
	Loaded         bool      `json:"loaded"`
}

// RuleCache serves per-channel triggers from an immutable snapshot
// that is swapped whole when the store is reloaded
type RuleCache struct {
	repo    repo.RuleRepo
	cfg     CacheConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	snap       atomic.Pointer[ruleSnapshot]
	refreshing atomic.Bool
}

// NewRuleCache creates an empty cache; the first event triggers the initial load
func NewRuleCache(ruleRepo repo.RuleRepo, cfg CacheConfig, logger *slog.Logger, m *metrics.Metrics) *RuleCache {
	if cfg.Staleness <= 0 {
		cfg.Staleness = DefaultStaleness
	}
	if cfg.RegexTimeout <= 0 {
		cfg.RegexTimeout = DefaultRegexTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleCache{
		repo:    ruleRepo,
		cfg:     cfg,
		logger:  logger.With("component", "rule_cache"),
		metrics: m,
	}
}

// LastRefresh returns the time of the last successful refresh, zero if none
func (c *RuleCache) LastRefresh() time.Time {
	if s := c.snap.Load(); s != nil {
		return s.builtAt
	}
	return time.Time{}
}

// Stale reports whether the snapshot is older than the staleness window
func (c *RuleCache) Stale(now time.Time) bool {
	s := c.snap.Load()
	return s == nil || now.Sub(s.builtAt) >= c.cfg.Staleness
}

// RefreshIfStale reloads the snapshot when it is older than the staleness window.
// If another refresh is running the call returns at once and the old snapshot stays in use.
// On a store error the old snapshot is kept and the next call retries.
func (c *RuleCache) RefreshIfStale(ctx context.Context, now time.Time) error {
	if !c.Stale(now) {
		return nil
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.refreshing.Store(false)

	if !c.Stale(now) {
		return nil
	}
	return c.reload(ctx, now)
}

// Refresh reloads the snapshot regardless of its age
func (c *RuleCache) Refresh(ctx context.Context, now time.Time) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)
	return c.reload(ctx, now)
}

func (c *RuleCache) reload(ctx context.Context, now time.Time) error {
	channels, err := c.repo.LoadChannels(ctx)
	if err != nil {
		c.metrics.Refresh(false, 0)
		c.logger.Error("rule cache refresh failed, keeping previous snapshot", "error", err)
		return fmt.Errorf("failed to load channels: %w", err)
	}

	snap := c.build(channels, now)
	c.snap.Store(snap)
	c.metrics.Refresh(true, len(snap.channels))
	c.logger.Debug("rule cache refreshed", "channels", len(snap.channels), "user_replies", len(snap.replies), "notices", len(snap.notices))
	return nil
}

func (c *RuleCache) build(channels []*domain.ChannelRules, now time.Time) *ruleSnapshot {
	snap := &ruleSnapshot{
		channels: make(map[domain.ChannelKey]*ChannelSnapshot),
		replies:  make(map[replyKey][]domain.IndividualUserReply),
		notices:  make(map[noticeKey]domain.NoticeResponse),
		builtAt:  now,
	}

	for _, cr := range channels {
		if cr == nil || !cr.Channel.Enabled {
			continue
		}
		key := cr.Channel.Key()
		if _, dup := snap.channels[key]; dup {
			continue
		}

		cs := &ChannelSnapshot{Channel: cr.Channel}
		seen := make(map[int64]struct{})
		for _, g := range cr.Groups {
			if g == nil || !g.Enabled {
				continue
			}
			for _, r := range g.Rules {
				if r == nil || !r.Enabled {
					continue
				}
				if _, dup := seen[r.ID]; dup {
					continue
				}
				seen[r.ID] = struct{}{}

				if !r.IsRegex {
					cs.PhraseTriggers = append(cs.PhraseTriggers, NewPhraseTrigger(r.ID, r.TriggerPhrase))
					continue
				}
				t, err := NewRegexTrigger(r.ID, r.TriggerPhrase, c.cfg.RegexTimeout)
				if err != nil {
					c.logger.Warn("skipping rule with bad pattern", "rule_id", r.ID, "room_id", key.RoomID, "error", err)
					continue
				}
				cs.RegexTriggers = append(cs.RegexTriggers, t)
			}
		}
		snap.channels[key] = cs

		for _, nr := range cr.NoticeResponses {
			nk := noticeKey{channel: key, kind: nr.Kind}
			if _, dup := snap.notices[nk]; dup {
				continue
			}
			snap.notices[nk] = nr
		}

		for _, ur := range cr.UserReplies {
			if !ur.Enabled {
				continue
			}
			ur.TriggerPhrase = strings.TrimSpace(ur.TriggerPhrase)
			ur.Response = strings.TrimSpace(ur.Response)
			if ur.TriggerPhrase == "" {
				continue
			}
			rk := replyKey{channel: key, userID: ur.TriggerUserID}
			if containsPhrase(snap.replies[rk], ur.TriggerPhrase) {
				continue
			}
			snap.replies[rk] = append(snap.replies[rk], ur)
		}
	}

	return snap
}

func containsPhrase(replies []domain.IndividualUserReply, phrase string) bool {
	for _, r := range replies {
		if r.TriggerPhrase == phrase {
			return true
		}
	}
	return false
}

// SnapshotFor returns the triggers of one channel
func (c *RuleCache) SnapshotFor(key domain.ChannelKey) (*ChannelSnapshot, bool) {
	s := c.snap.Load()
	if s == nil {
		return nil, false
	}
	cs, ok := s.channels[key]
	return cs, ok
}

// IndividualRepliesFor returns the replies configured for a user in a channel
func (c *RuleCache) IndividualRepliesFor(key domain.ChannelKey, userID string) ([]domain.IndividualUserReply, bool) {
	s := c.snap.Load()
	if s == nil {
		return nil, false
	}
	replies, ok := s.replies[replyKey{channel: key, userID: userID}]
	return replies, ok
}

// NoticeResponseFor returns the response for a notice kind in a channel
func (c *RuleCache) NoticeResponseFor(key domain.ChannelKey, kind domain.NoticeKind) (domain.NoticeResponse, bool) {
	s := c.snap.Load()
	if s == nil {
		return domain.NoticeResponse{}, false
	}
	nr, ok := s.notices[noticeKey{channel: key, kind: kind}]
	return nr, ok
}

// Channels lists the cached channels ordered by bot and room
func (c *RuleCache) Channels() []domain.Channel {
	s := c.snap.Load()
	if s == nil {
		return nil
	}
	out := make([]domain.Channel, 0, len(s.channels))
	for _, cs := range s.channels {
		out = append(out, cs.Channel)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BotID != out[j].BotID {
			return out[i].BotID < out[j].BotID
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

// Status summarizes the current snapshot
func (c *RuleCache) Status() CacheStatus {
	s := c.snap.Load()
	if s == nil {
		return CacheStatus{}
	}
	st := CacheStatus{
		Channels:    len(s.channels),
		Notices:     len(s.notices),
		LastRefresh: s.builtAt,
		Loaded:      true,
	}
	for _, cs := range s.channels {
		st.PhraseTriggers += len(cs.PhraseTriggers)
		st.RegexTriggers += len(cs.RegexTriggers)
	}
	for _, r := range s.replies {
		st.UserReplies += len(r)
	}
	return st
}
