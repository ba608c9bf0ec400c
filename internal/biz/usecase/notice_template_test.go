package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

func TestRenderNotice_SubGift(t *testing.T) {
	ev := &domain.NoticeEvent{
		Kind:                 domain.NoticeSubGift,
		DisplayName:          "Alice",
		Login:                "alice",
		RecipientDisplayName: "Bob",
		RecipientLogin:       "bob",
	}

	assert.Equal(t, "Alice gifted to Bob", RenderNotice("${user} gifted to ${secondUser}", ev))
}

func TestRenderNotice_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.NoticeEvent
		tmpl string
		want string
	}{
		{"user falls back to login", domain.NoticeEvent{Login: "alice"}, "${user}", "alice"},
		{"second user recipient login", domain.NoticeEvent{RecipientLogin: "bob", SenderName: "Carol"}, "${secondUser}", "bob"},
		{"second user sender name", domain.NoticeEvent{SenderName: "Carol", SenderLogin: "carol"}, "${secondUser}", "Carol"},
		{"second user sender login", domain.NoticeEvent{SenderLogin: "carol"}, "${secondUser}", "carol"},
		{"second user absent stays literal", domain.NoticeEvent{}, "${secondUser}", "${secondUser}"},
		{"months present", domain.NoticeEvent{CumulativeMonths: "12"}, "${months} months!", "12 months!"},
		{"months absent stays literal", domain.NoticeEvent{}, "${months} months!", "${months} months!"},
		{"mass gift count", domain.NoticeEvent{MassGiftCount: "50"}, "${MassGiftCount} gifts", "50 gifts"},
		{"channel no ping", domain.NoticeEvent{RoomName: "ab"}, "${channel}", "a\U000E0000b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.ev
			assert.Equal(t, tt.want, RenderNotice(tt.tmpl, &ev))
		})
	}
}

func TestRenderNotice_NoPlaceholders(t *testing.T) {
	assert.Equal(t, "welcome!", RenderNotice("welcome!", &domain.NoticeEvent{}))
}
