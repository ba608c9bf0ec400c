package usecase

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/biz/repo"
)

// SegmentDelimiter separates the chat lines of one response
const SegmentDelimiter = "{nl}"

// noPingSeparator is a tag character that chat clients render as nothing
const noPingSeparator = "\U000E0000"

var (
	placeholderPattern = regexp.MustCompile(`(?i)\$\{(targetOrUser|userNoPing|user|channel|timesUsed|uptime|icecream)\}`)
	randomPattern      = regexp.MustCompile(`(?i)\$random\{([^}]*)\}`)
)

// ResponseTemplater renders response templates against message events
type ResponseTemplater struct {
	resolver  repo.UserResolver
	startedAt time.Time
	now       func() time.Time
	intn      func(n int) int
	facts     []IceCreamFact
	logger    *slog.Logger

	knownMu sync.RWMutex
	known   map[string]struct{}
}

// TemplaterOption configures a ResponseTemplater
type TemplaterOption func(*ResponseTemplater)

// WithClock sets the clock used for ${uptime}
func WithClock(now func() time.Time) TemplaterOption {
	return func(t *ResponseTemplater) { t.now = now }
}

// WithRandom sets the source used for $random{} and ${icecream}
func WithRandom(intn func(n int) int) TemplaterOption {
	return func(t *ResponseTemplater) { t.intn = intn }
}

// WithFacts replaces the built-in ${icecream} table
func WithFacts(facts []IceCreamFact) TemplaterOption {
	return func(t *ResponseTemplater) { t.facts = facts }
}

// NewResponseTemplater creates a templater. A nil resolver accepts any ${targetOrUser} token.
func NewResponseTemplater(resolver repo.UserResolver, startedAt time.Time, logger *slog.Logger, opts ...TemplaterOption) *ResponseTemplater {
	if logger == nil {
		logger = slog.Default()
	}
	t := &ResponseTemplater{
		resolver:  resolver,
		startedAt: startedAt,
		now:       time.Now,
		intn:      rand.IntN,
		facts:     iceCreamFacts,
		logger:    logger.With("component", "templater"),
		known:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Uptime returns the process uptime as Xd Xh Xm Xs
func (t *ResponseTemplater) Uptime() string {
	return FormatUptime(t.now().Sub(t.startedAt))
}

// Render substitutes message placeholders in tmpl.
// timesUsed is the rule's counter before this fire.
func (t *ResponseTemplater) Render(ctx context.Context, tmpl string, ev *domain.MessageEvent, timesUsed int64) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}

	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := strings.ToLower(placeholderPattern.FindStringSubmatch(m)[1])
		var value string
		switch name {
		case "targetoruser":
			value = t.targetOrUser(ctx, ev)
		case "user":
			value = ev.UserName
		case "usernoping":
			value = NoPing(ev.UserName)
		case "channel":
			value = NoPing(ev.RoomName)
		case "timesused":
			value = strconv.FormatInt(timesUsed, 10)
		case "uptime":
			value = t.Uptime()
		case "icecream":
			if len(t.facts) > 0 {
				value = t.facts[t.intn(len(t.facts))].String()
			}
		}
		if value == "" {
			return m
		}
		return value
	})

	// alternatives may hold placeholders, so $random runs last
	return randomPattern.ReplaceAllStringFunc(out, func(m string) string {
		sub := randomPattern.FindStringSubmatch(m)
		options := strings.Split(sub[1], "|")
		return strings.TrimSpace(options[t.intn(len(options))])
	})
}

// targetOrUser returns the second word of the message when it names a real user,
// otherwise the sender
func (t *ResponseTemplater) targetOrUser(ctx context.Context, ev *domain.MessageEvent) string {
	fields := strings.Fields(ev.Text)
	if len(fields) < 2 {
		return ev.UserName
	}
	target := strings.TrimPrefix(fields[1], "@")
	if target == "" {
		return ev.UserName
	}

	login := strings.ToLower(target)
	t.knownMu.RLock()
	_, known := t.known[login]
	t.knownMu.RUnlock()
	if known || t.resolver == nil {
		return target
	}

	exists, err := t.resolver.LoginExists(ctx, target)
	if err != nil {
		t.logger.Warn("user lookup failed, using sender", "login", target, "error", err)
		return ev.UserName
	}
	if !exists {
		return ev.UserName
	}

	t.knownMu.Lock()
	t.known[login] = struct{}{}
	t.knownMu.Unlock()
	return target
}

// NoPing inserts an invisible separator between the characters of every word
// so chat clients do not highlight the name
func NoPing(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		runes := []rune(w)
		if len(runes) < 2 {
			continue
		}
		var b strings.Builder
		for j, r := range runes {
			if j > 0 {
				b.WriteString(noPingSeparator)
			}
			b.WriteRune(r)
		}
		words[i] = b.String()
	}
	return strings.Join(words, " ")
}

// FormatUptime renders d as "Xd Xh Xm Xs", dropping leading units that are still zero
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int64(d / (24 * time.Hour))
	hours := int64(d/time.Hour) % 24
	minutes := int64(d/time.Minute) % 60
	seconds := int64(d/time.Second) % 60

	var parts []string
	if d >= 24*time.Hour {
		parts = append(parts, strconv.FormatInt(days, 10)+"d")
	}
	if d >= time.Hour {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if d >= time.Minute {
		parts = append(parts, strconv.FormatInt(minutes, 10)+"m")
	}
	parts = append(parts, strconv.FormatInt(seconds, 10)+"s")
	return strings.Join(parts, " ")
}

// SplitSegments splits a rendered response into the chat lines to send,
// dropping empty segments
func SplitSegments(text string) []string {
	parts := strings.Split(text, SegmentDelimiter)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Truncate cuts s to at most max runes
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
