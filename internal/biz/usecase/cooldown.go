package usecase

import (
	"strconv"
	"sync"
	"time"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// IndividualReplyCooldown is the fixed cooldown for per-user replies
const IndividualReplyCooldown = 5 * time.Second

// CooldownKey identifies one rate-limited trigger.
// UserID is empty for rules that cool down channel-wide.
type CooldownKey struct {
	Channel  domain.ChannelKey
	Trigger  string
	UserID   string
	Cooldown time.Duration
}

// RuleCooldownKey builds the channel-wide key of a rule
func RuleCooldownKey(ch domain.ChannelKey, rule *domain.Rule) CooldownKey {
	return CooldownKey{
		Channel:  ch,
		Trigger:  "rule:" + strconv.FormatInt(rule.ID, 10),
		Cooldown: rule.Cooldown(),
	}
}

// ReplyCooldownKey builds the per-user key of an individual reply
func ReplyCooldownKey(ch domain.ChannelKey, phrase, userID string) CooldownKey {
	return CooldownKey{
		Channel:  ch,
		Trigger:  "reply:" + phrase,
		UserID:   userID,
		Cooldown: IndividualReplyCooldown,
	}
}

// CooldownTracker records the last fire time per key for the process lifetime
type CooldownTracker struct {
	mu   sync.Mutex
	last map[CooldownKey]time.Time
}

// NewCooldownTracker creates an empty tracker
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		last: make(map[CooldownKey]time.Time),
	}
}

// TryFire reports whether the trigger may fire now and records the fire if so.
// A bypassing caller always passes and leaves no record.
func (t *CooldownTracker) TryFire(key CooldownKey, bypass bool, now time.Time) bool {
	if bypass {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[key]
	if ok && now.Sub(last) < key.Cooldown {
		return false
	}
	t.last[key] = now
	return true
}

// Len returns the number of tracked keys
func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
