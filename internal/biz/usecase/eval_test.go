package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

func evalEnv(t *testing.T) *EvalEnv {
	t.Helper()
	repo := &mockRuleRepo{}
	repo.set([]*domain.ChannelRules{channelRules(testChannel, phraseRule(1, "!a", "a"), regexRule(2, `^x$`, "x"))})
	cache := NewRuleCache(repo, DefaultCacheConfig(), nil, nil)
	now := time.Unix(1000, 0)
	require.NoError(t, cache.Refresh(context.Background(), now))

	return &EvalEnv{
		Event:     testEvent("<eval rules"),
		Roles:     domain.RoleSet{Normal: true, BotOwner: true},
		Cache:     cache,
		Cooldowns: NewCooldownTracker(),
		Templater: fixedTemplater(nil),
		Now:       now.Add(12 * time.Second),
	}
}

func TestEvaluator_Builtins(t *testing.T) {
	e := NewEvaluator(0)
	env := evalEnv(t)
	ctx := context.Background()

	tests := []struct {
		expr string
		want string
	}{
		{"rules", "1 phrase, 1 regex"},
		{"ROLES", "normal, bot_owner"},
		{"user", "alice (u1)"},
		{"uptime", "1d 2h 3m 4s"},
		{"cooldowns", "0 tracked"},
		{"echo  hello there ", "hello there"},
		{"cache", "1 channels, 1 phrase, 1 regex, 0 user replies, 0 notices, refreshed 12s ago"},
	}
	for _, tt := range tests {
		got, err := e.Evaluate(ctx, env, tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}

func TestEvaluator_Unknown(t *testing.T) {
	e := NewEvaluator(0)

	_, err := e.Evaluate(context.Background(), evalEnv(t), "os.exit 1")
	assert.ErrorIs(t, err, ErrUnknownExpression)
	assert.Equal(t, "⚠unknown expression: os.exit⚠", FormatEvalResult("", err))
}

func TestEvaluator_Timeout(t *testing.T) {
	e := NewEvaluator(20 * time.Millisecond)
	e.Register("slow", func(ctx context.Context, _ *EvalEnv, _ string) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})

	_, err := e.Evaluate(context.Background(), evalEnv(t), "slow")
	assert.ErrorIs(t, err, ErrEvalTimeout)
	assert.Equal(t, "⚠Eval timed out⚠", FormatEvalResult("", err))
}

func TestEvaluator_ContextAwareTimeout(t *testing.T) {
	e := NewEvaluator(20 * time.Millisecond)
	e.Register("wait", func(ctx context.Context, _ *EvalEnv, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := e.Evaluate(context.Background(), evalEnv(t), "wait")
	assert.ErrorIs(t, err, ErrEvalTimeout)
}

func TestEvaluator_Refresh(t *testing.T) {
	e := NewEvaluator(0)
	env := evalEnv(t)

	got, err := e.Evaluate(context.Background(), env, "refresh")
	require.NoError(t, err)
	assert.Equal(t, "refreshed, 1 channels", got)
	assert.Equal(t, env.Now, env.Cache.LastRefresh())
}

func TestFormatEvalResult(t *testing.T) {
	assert.Equal(t, "42", FormatEvalResult("42", nil))
	assert.Equal(t, "⚠Result was empty string⚠", FormatEvalResult("", nil))
	assert.Equal(t, "⚠boom⚠", FormatEvalResult("", errors.New("boom")))
}

func TestEvaluator_HelpListsNames(t *testing.T) {
	e := NewEvaluator(0)

	got, err := e.Evaluate(context.Background(), evalEnv(t), "help")
	require.NoError(t, err)
	assert.Contains(t, got, "uptime")
	assert.Contains(t, got, "refresh")
}
