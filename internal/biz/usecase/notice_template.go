package usecase

import (
	"regexp"
	"strings"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

var noticePlaceholderPattern = regexp.MustCompile(`(?i)\$\{(user|channel|months|massGiftCount|secondUser)\}`)

// RenderNotice substitutes notice placeholders in tmpl.
// A placeholder whose value is missing from the notice stays as literal text.
func RenderNotice(tmpl string, ev *domain.NoticeEvent) string {
	if !strings.Contains(tmpl, "${") {
		return tmpl
	}
	return noticePlaceholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		var value string
		switch strings.ToLower(noticePlaceholderPattern.FindStringSubmatch(m)[1]) {
		case "user":
			value = firstNonEmpty(ev.DisplayName, ev.Login)
		case "channel":
			value = NoPing(ev.RoomName)
		case "months":
			value = ev.CumulativeMonths
		case "massgiftcount":
			value = ev.MassGiftCount
		case "seconduser":
			value = firstNonEmpty(ev.RecipientDisplayName, ev.RecipientLogin, ev.SenderName, ev.SenderLogin)
		}
		if value == "" {
			return m
		}
		return value
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
