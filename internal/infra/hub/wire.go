package hub

import (
	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// Subjects used on the hub
const (
	SubjectMessages    = "responder.events.message"
	SubjectNotices     = "responder.events.notice"
	SubjectOutgoingFmt = "responder.outgoing.%s" // per bot id
	SubjectUserLookup  = "responder.users.lookup"
)

// messageEnvelope is the JSON form of a chat message on the hub
type messageEnvelope struct {
	BotID       string   `json:"bot_id"`
	RoomID      string   `json:"room_id"`
	RoomName    string   `json:"room_name"`
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	DisplayName string   `json:"display_name,omitempty"`
	Text        string   `json:"text"`
	MessageID   string   `json:"message_id,omitempty"`
	Badges      []string `json:"badges,omitempty"`
}

func (m *messageEnvelope) toDomain() *domain.MessageEvent {
	return &domain.MessageEvent{
		BotID:       m.BotID,
		RoomID:      m.RoomID,
		RoomName:    m.RoomName,
		UserID:      m.UserID,
		UserName:    m.UserName,
		DisplayName: m.DisplayName,
		Text:        m.Text,
		MessageID:   m.MessageID,
		Badges:      m.Badges,
	}
}

// noticeEnvelope is the JSON form of a system notice on the hub
type noticeEnvelope struct {
	BotID                string `json:"bot_id"`
	RoomID               string `json:"room_id"`
	RoomName             string `json:"room_name"`
	Kind                 string `json:"kind"`
	DisplayName          string `json:"display_name,omitempty"`
	Login                string `json:"login,omitempty"`
	CumulativeMonths     string `json:"cumulative_months,omitempty"`
	MassGiftCount        string `json:"mass_gift_count,omitempty"`
	RecipientDisplayName string `json:"recipient_display_name,omitempty"`
	RecipientLogin       string `json:"recipient_login,omitempty"`
	SenderName           string `json:"sender_name,omitempty"`
	SenderLogin          string `json:"sender_login,omitempty"`
}

func (n *noticeEnvelope) toDomain() (*domain.NoticeEvent, bool) {
	kind, ok := domain.ParseNoticeKind(n.Kind)
	if !ok {
		return nil, false
	}
	return &domain.NoticeEvent{
		BotID:                n.BotID,
		RoomID:               n.RoomID,
		RoomName:             n.RoomName,
		Kind:                 kind,
		DisplayName:          n.DisplayName,
		Login:                n.Login,
		CumulativeMonths:     n.CumulativeMonths,
		MassGiftCount:        n.MassGiftCount,
		RecipientDisplayName: n.RecipientDisplayName,
		RecipientLogin:       n.RecipientLogin,
		SenderName:           n.SenderName,
		SenderLogin:          n.SenderLogin,
	}, true
}

// outgoingEnvelope is one chat line the hub should deliver
type outgoingEnvelope struct {
	BotID        string `json:"bot_id"`
	RoomID       string `json:"room_id"`
	RoomName     string `json:"room_name"`
	Text         string `json:"text"`
	ReplyToID    string `json:"reply_to_id,omitempty"`
	MultiSegment bool   `json:"multi_segment,omitempty"`
}

func outgoingFromDomain(m *domain.OutgoingMessage) outgoingEnvelope {
	return outgoingEnvelope{
		BotID:        m.BotID,
		RoomID:       m.RoomID,
		RoomName:     m.RoomName,
		Text:         m.Text,
		ReplyToID:    m.ReplyToID,
		MultiSegment: m.MultiSegment,
	}
}

// lookupRequest asks the hub whether a login exists
type lookupRequest struct {
	Login string `json:"login"`
}

// lookupReply answers a lookupRequest
type lookupReply struct {
	Exists bool   `json:"exists"`
	Error  string `json:"error,omitempty"`
}
