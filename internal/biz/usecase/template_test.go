package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

type mockUserResolver struct {
	logins map[string]bool
	err    error
	calls  int
}

func (m *mockUserResolver) LoginExists(ctx context.Context, login string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.logins[strings.ToLower(login)], nil
}

func testEvent(text string) *domain.MessageEvent {
	return &domain.MessageEvent{
		BotID:     "bot-1",
		RoomID:    "room-1",
		RoomName:  "icecreamchannel",
		UserID:    "u1",
		UserName:  "alice",
		Text:      text,
		MessageID: "msg-1",
	}
}

func fixedTemplater(resolver *mockUserResolver) *ResponseTemplater {
	start := time.Unix(0, 0)
	opts := []TemplaterOption{
		WithClock(func() time.Time { return start.Add(26*time.Hour + 3*time.Minute + 4*time.Second) }),
		WithRandom(func(n int) int { return n - 1 }),
	}
	if resolver == nil {
		return NewResponseTemplater(nil, start, nil, opts...)
	}
	return NewResponseTemplater(resolver, start, nil, opts...)
}

func TestRender_NoPlaceholdersUnchanged(t *testing.T) {
	tp := fixedTemplater(nil)
	tmpl := "just a plain reply {nl} with two lines"

	assert.Equal(t, tmpl, tp.Render(context.Background(), tmpl, testEvent("!x"), 0))
}

func TestRender_AllPlaceholders(t *testing.T) {
	tp := fixedTemplater(nil)
	ev := testEvent("!hug bob")

	got := tp.Render(context.Background(),
		"${user} hugs ${targetOrUser} in ${channel} (#${timesUsed}, up ${uptime})", ev, 41)

	assert.Equal(t, "alice hugs bob in "+NoPing("icecreamchannel")+" (#41, up 1d 2h 3m 4s)", got)
	assert.NotContains(t, got, "${")
}

func TestRender_CaseInsensitivePlaceholders(t *testing.T) {
	tp := fixedTemplater(nil)

	assert.Equal(t, "hi alice alice", tp.Render(context.Background(), "hi ${USER} ${User}", testEvent("!hi"), 0))
}

func TestRender_UserNoPing(t *testing.T) {
	tp := fixedTemplater(nil)

	got := tp.Render(context.Background(), "${userNoPing}", testEvent("!x"), 0)
	assert.Equal(t, "a\U000E0000l\U000E0000i\U000E0000c\U000E0000e", got)
}

func TestRender_Random(t *testing.T) {
	tp := fixedTemplater(nil)

	got := tp.Render(context.Background(), "you get $random{ red | green | blue } and $RANDOM{a|b}", testEvent("!x"), 0)
	assert.Equal(t, "you get blue and b", got)
}

func TestRender_RandomAlternativesMayHoldPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		pick int
		tmpl string
		want string
	}{
		{"placeholder first, picked", 0, "hi $random{${user}|nobody}!", "hi alice!"},
		{"placeholder first, skipped", 1, "hi $random{${user}|nobody}!", "hi nobody!"},
		{"placeholder last, picked", 1, "$random{nobody|${user}}", "alice"},
		{"every alternative", 2, "$random{${user}|${channel}|#${timesUsed}}", "#9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := NewResponseTemplater(nil, time.Unix(0, 0), nil, WithRandom(func(int) int { return tt.pick }))

			got := tp.Render(context.Background(), tt.tmpl, testEvent("!x"), 9)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "${")
		})
	}
}

func TestRender_IceCream(t *testing.T) {
	tp := fixedTemplater(nil)
	facts := IceCreamFacts()

	got := tp.Render(context.Background(), "${icecream}", testEvent("!x"), 0)
	assert.Equal(t, facts[len(facts)-1].String(), got)
	assert.Contains(t, got, " 🍨: ")
}

func TestRender_UnknownPlaceholderUntouched(t *testing.T) {
	tp := fixedTemplater(nil)

	assert.Equal(t, "${gdq} alice", tp.Render(context.Background(), "${gdq} ${user}", testEvent("!x"), 0))
}

func TestRender_EmptySourceLeftLiteral(t *testing.T) {
	tp := fixedTemplater(nil)
	ev := testEvent("!x")
	ev.RoomName = ""

	assert.Equal(t, "in ${channel}", tp.Render(context.Background(), "in ${channel}", ev, 0))
}

func TestRender_Idempotent(t *testing.T) {
	tp := fixedTemplater(nil)
	ev := testEvent("!x")

	once := tp.Render(context.Background(), "${user} used it ${timesUsed} times", ev, 3)
	twice := tp.Render(context.Background(), once, ev, 3)
	assert.Equal(t, once, twice)
}

func TestTargetOrUser_FallsBackToSender(t *testing.T) {
	resolver := &mockUserResolver{logins: map[string]bool{"bob": true}}
	tp := fixedTemplater(resolver)
	ctx := context.Background()

	assert.Equal(t, "alice", tp.Render(ctx, "${targetOrUser}", testEvent("!hug"), 0), "no second token")
	assert.Equal(t, "alice", tp.Render(ctx, "${targetOrUser}", testEvent("!hug nobody"), 0), "unknown login")
	assert.Equal(t, "bob", tp.Render(ctx, "${targetOrUser}", testEvent("!hug @bob"), 0), "at-sign stripped")
}

func TestTargetOrUser_RemembersKnownLogins(t *testing.T) {
	resolver := &mockUserResolver{logins: map[string]bool{"bob": true}}
	tp := fixedTemplater(resolver)
	ctx := context.Background()

	assert.Equal(t, "bob", tp.Render(ctx, "${targetOrUser}", testEvent("!hug bob"), 0))
	assert.Equal(t, "Bob", tp.Render(ctx, "${targetOrUser}", testEvent("!hug Bob"), 0))
	assert.Equal(t, 1, resolver.calls)

	tp.Render(ctx, "${targetOrUser}", testEvent("!hug carol"), 0)
	tp.Render(ctx, "${targetOrUser}", testEvent("!hug carol"), 0)
	assert.Equal(t, 3, resolver.calls, "negative results are not cached")
}

func TestTargetOrUser_LookupError(t *testing.T) {
	resolver := &mockUserResolver{err: errors.New("hub unavailable")}
	tp := fixedTemplater(resolver)

	assert.Equal(t, "alice", tp.Render(context.Background(), "${targetOrUser}", testEvent("!hug bob"), 0))
}

func TestTargetOrUser_NotResolvedWhenAbsent(t *testing.T) {
	resolver := &mockUserResolver{}
	tp := fixedTemplater(resolver)

	tp.Render(context.Background(), "${user}", testEvent("!hug bob"), 0)
	assert.Equal(t, 0, resolver.calls)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{time.Minute, "1m 0s"},
		{61 * time.Minute, "1h 1m 0s"},
		{24 * time.Hour, "1d 0h 0m 0s"},
		{50*time.Hour + 5*time.Second, "2d 2h 0m 5s"},
		{-time.Second, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.in), "duration %s", tt.in)
	}
}

func TestNoPing(t *testing.T) {
	assert.Equal(t, "", NoPing(""))
	assert.Equal(t, "x", NoPing("x"))
	assert.Equal(t, "a\U000E0000b c\U000E0000d", NoPing("ab cd"))
}

func TestSplitSegments(t *testing.T) {
	assert.Equal(t, []string{"one", "two", "three"}, SplitSegments("one{nl}two{nl}three"))
	assert.Equal(t, []string{"only"}, SplitSegments("only"))
	assert.Equal(t, []string{"a", "b"}, SplitSegments("a{nl}{nl} {nl}b"))
	assert.Empty(t, SplitSegments(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "🍨🍨", Truncate("🍨🍨🍨", 2))
	assert.Equal(t, "short", Truncate("short", 450))
	assert.Equal(t, "keep", Truncate("keep", 0))
}
