package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// DefaultEvalTimeout bounds one owner eval
const DefaultEvalTimeout = 2 * time.Second

var (
	// ErrEvalTimeout is returned when an expression outlives its deadline
	ErrEvalTimeout = errors.New("eval timed out")
	// ErrUnknownExpression is returned for names outside the registry
	ErrUnknownExpression = errors.New("unknown expression")
)

// EvalEnv is the read-only state an expression may inspect
type EvalEnv struct {
	Event     *domain.MessageEvent
	Roles     domain.RoleSet
	Cache     *RuleCache
	Cooldowns *CooldownTracker
	Templater *ResponseTemplater
	Now       time.Time
}

// EvalFunc computes one diagnostic value
type EvalFunc func(ctx context.Context, env *EvalEnv, arg string) (string, error)

// Evaluator runs allow-listed diagnostic expressions for bot owners
type Evaluator struct {
	funcs   map[string]EvalFunc
	timeout time.Duration
}

// NewEvaluator creates an evaluator with the built-in expressions registered
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	e := &Evaluator{
		funcs:   make(map[string]EvalFunc),
		timeout: timeout,
	}

	e.funcs["uptime"] = evalUptime
	e.funcs["user"] = evalUser
	e.funcs["room"] = evalRoom
	e.funcs["roles"] = evalRoles
	e.funcs["rules"] = evalRules
	e.funcs["channels"] = evalChannels
	e.funcs["cache"] = evalCache
	e.funcs["cooldowns"] = evalCooldowns
	e.funcs["refresh"] = evalRefresh
	e.funcs["echo"] = evalEcho
	e.funcs["help"] = e.evalHelp

	return e
}

// Register adds or replaces an expression
func (e *Evaluator) Register(name string, fn EvalFunc) {
	e.funcs[strings.ToLower(name)] = fn
}

// Names lists the registered expressions
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.funcs))
	for n := range e.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Evaluate runs expr ("name [arg]") under the evaluator deadline
func (e *Evaluator) Evaluate(ctx context.Context, env *EvalEnv, expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	name, arg, _ := strings.Cut(expr, " ")
	fn, ok := e.funcs[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownExpression, name)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx, env, strings.TrimSpace(arg))
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return "", ErrEvalTimeout
		}
		return r.value, r.err
	case <-ctx.Done():
		return "", ErrEvalTimeout
	}
}

// FormatEvalResult renders an eval outcome as a chat line
func FormatEvalResult(value string, err error) string {
	switch {
	case errors.Is(err, ErrEvalTimeout):
		return "⚠Eval timed out⚠"
	case err != nil:
		return "⚠" + err.Error() + "⚠"
	case value == "":
		return "⚠Result was empty string⚠"
	}
	return value
}

func evalUptime(_ context.Context, env *EvalEnv, _ string) (string, error) {
	if env.Templater == nil {
		return "", errors.New("uptime not available")
	}
	return env.Templater.Uptime(), nil
}

func evalUser(_ context.Context, env *EvalEnv, _ string) (string, error) {
	return fmt.Sprintf("%s (%s)", env.Event.UserName, env.Event.UserID), nil
}

func evalRoom(_ context.Context, env *EvalEnv, _ string) (string, error) {
	return fmt.Sprintf("%s (%s) bot=%s", env.Event.RoomName, env.Event.RoomID, env.Event.BotID), nil
}

func evalRoles(_ context.Context, env *EvalEnv, _ string) (string, error) {
	return strings.Join(env.Roles.Names(), ", "), nil
}

func evalRules(_ context.Context, env *EvalEnv, _ string) (string, error) {
	snap, ok := env.Cache.SnapshotFor(env.Event.Key())
	if !ok {
		return "no rules cached for this room", nil
	}
	return fmt.Sprintf("%d phrase, %d regex", len(snap.PhraseTriggers), len(snap.RegexTriggers)), nil
}

func evalChannels(_ context.Context, env *EvalEnv, _ string) (string, error) {
	channels := env.Cache.Channels()
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, NoPing(ch.Name))
	}
	return fmt.Sprintf("%d: %s", len(channels), strings.Join(names, ", ")), nil
}

func evalCache(_ context.Context, env *EvalEnv, _ string) (string, error) {
	st := env.Cache.Status()
	if !st.Loaded {
		return "cache not loaded", nil
	}
	age := env.Now.Sub(st.LastRefresh).Truncate(time.Second)
	return fmt.Sprintf("%d channels, %d phrase, %d regex, %d user replies, %d notices, refreshed %s ago",
		st.Channels, st.PhraseTriggers, st.RegexTriggers, st.UserReplies, st.Notices, age), nil
}

func evalCooldowns(_ context.Context, env *EvalEnv, _ string) (string, error) {
	return fmt.Sprintf("%d tracked", env.Cooldowns.Len()), nil
}

func evalRefresh(ctx context.Context, env *EvalEnv, _ string) (string, error) {
	if err := env.Cache.Refresh(ctx, env.Now); err != nil {
		return "", err
	}
	return fmt.Sprintf("refreshed, %d channels", env.Cache.Status().Channels), nil
}

func evalEcho(_ context.Context, _ *EvalEnv, arg string) (string, error) {
	return arg, nil
}

func (e *Evaluator) evalHelp(_ context.Context, _ *EvalEnv, _ string) (string, error) {
	return strings.Join(e.Names(), " "), nil
}
