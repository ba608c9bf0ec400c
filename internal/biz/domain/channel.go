package domain

import "time"

// DefaultMaxMessageLength is the per-channel output limit used when the store has none
const DefaultMaxMessageLength = 450

// DefaultRuleCooldown is the cooldown applied to rules created without one
const DefaultRuleCooldown = 5 * time.Second

// ChannelKey identifies one bot account in one room
type ChannelKey struct {
	BotID  string
	RoomID string
}

// Channel represents a room the bot is present in
type Channel struct {
	BotID            string
	RoomID           string
	Name             string
	Enabled          bool
	MaxMessageLength int
}

// Key returns the channel's composite key
func (c *Channel) Key() ChannelKey {
	return ChannelKey{BotID: c.BotID, RoomID: c.RoomID}
}

// MaxLength returns the effective output limit in runes
func (c *Channel) MaxLength() int {
	if c.MaxMessageLength <= 0 {
		return DefaultMaxMessageLength
	}
	return c.MaxMessageLength
}

// RuleGroup is a named, toggleable set of rules linked to channels
type RuleGroup struct {
	ID      int64
	Name    string
	Enabled bool
	Rules   []*Rule
}

// Permissions lists which roles may fire a rule
type Permissions struct {
	Normal      bool
	Subscriber  bool
	VIP         bool
	Moderator   bool
	Broadcaster bool
	BotAdmin    bool
	BotOwner    bool
}

// AllowAll returns permissions that admit every role
func AllowAll() Permissions {
	return Permissions{
		Normal:      true,
		Subscriber:  true,
		VIP:         true,
		Moderator:   true,
		Broadcaster: true,
		BotAdmin:    true,
		BotOwner:    true,
	}
}

// Rule is a phrase or regex trigger with a response template
type Rule struct {
	ID              int64
	GroupID         int64
	Enabled         bool
	IsRegex         bool
	ShouldReply     bool
	TriggerPhrase   string
	Response        string
	CooldownSeconds int
	TimesUsed       int64
	Permissions     Permissions
}

// Cooldown returns the rule cooldown as a duration
func (r *Rule) Cooldown() time.Duration {
	if r.CooldownSeconds < 0 {
		return 0
	}
	return time.Duration(r.CooldownSeconds) * time.Second
}

// IndividualUserReply is a canned reply for one user in one channel
type IndividualUserReply struct {
	BotID         string
	RoomID        string
	TriggerUserID string
	Enabled       bool
	TriggerPhrase string
	Response      string
}

// NoticeResponse is the template sent for one notice kind in one channel
type NoticeResponse struct {
	BotID    string
	RoomID   string
	Kind     NoticeKind
	Response string
}

// ChannelRules is the full rule set of one channel as read from the store
type ChannelRules struct {
	Channel         Channel
	Groups          []*RuleGroup
	NoticeResponses []NoticeResponse
	UserReplies     []IndividualUserReply
}
