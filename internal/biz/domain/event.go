package domain

import "strings"

// NoticeKind is the system notice type carried by a notice event
type NoticeKind string

const (
	NoticeSub                 NoticeKind = "sub"
	NoticeResub               NoticeKind = "resub"
	NoticeSubGift             NoticeKind = "subgift"
	NoticeSubMysteryGift      NoticeKind = "submysterygift"
	NoticeGiftPaidUpgrade     NoticeKind = "giftpaidupgrade"
	NoticeAnonGiftPaidUpgrade NoticeKind = "anongiftpaidupgrade"
	NoticeRewardGift          NoticeKind = "rewardgift"
	NoticePrimePaidUpgrade    NoticeKind = "primepaidupgrade"
	NoticeRaid                NoticeKind = "raid"
	NoticeUnraid              NoticeKind = "unraid"
	NoticeRitual              NoticeKind = "ritual"
	NoticeBitsBadgeTier       NoticeKind = "bitsbadgetier"
	NoticeAnnouncement        NoticeKind = "announcement"
)

var noticeKinds = map[NoticeKind]struct{}{
	NoticeSub:                 {},
	NoticeResub:               {},
	NoticeSubGift:             {},
	NoticeSubMysteryGift:      {},
	NoticeGiftPaidUpgrade:     {},
	NoticeAnonGiftPaidUpgrade: {},
	NoticeRewardGift:          {},
	NoticePrimePaidUpgrade:    {},
	NoticeRaid:                {},
	NoticeUnraid:              {},
	NoticeRitual:              {},
	NoticeBitsBadgeTier:       {},
	NoticeAnnouncement:        {},
}

// ParseNoticeKind maps a raw notice id to a known kind
func ParseNoticeKind(raw string) (NoticeKind, bool) {
	kind := NoticeKind(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := noticeKinds[kind]
	return kind, ok
}

// MessageEvent is a normalized chat message
type MessageEvent struct {
	BotID       string
	RoomID      string
	RoomName    string
	UserID      string
	UserName    string // login
	DisplayName string
	Text        string
	MessageID   string
	Badges      []string
}

// Key returns the channel the message arrived in
func (e *MessageEvent) Key() ChannelKey {
	return ChannelKey{BotID: e.BotID, RoomID: e.RoomID}
}

// HasBadge reports whether the sender carries the named badge
func (e *MessageEvent) HasBadge(name string) bool {
	for _, b := range e.Badges {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// NoticeEvent is a normalized system notice such as a subscription or raid.
// Optional fields are empty when the notice does not carry them.
type NoticeEvent struct {
	BotID                string
	RoomID               string
	RoomName             string
	Kind                 NoticeKind
	DisplayName          string
	Login                string
	CumulativeMonths     string
	MassGiftCount        string
	RecipientDisplayName string
	RecipientLogin       string
	SenderName           string
	SenderLogin          string
}

// Key returns the channel the notice arrived in
func (e *NoticeEvent) Key() ChannelKey {
	return ChannelKey{BotID: e.BotID, RoomID: e.RoomID}
}

// OutgoingMessage is one chat line to send
type OutgoingMessage struct {
	BotID        string
	RoomID       string
	RoomName     string
	Text         string
	ReplyToID    string // empty when not a reply
	MultiSegment bool   // part of a multi-message response
}
