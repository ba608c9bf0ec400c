package biz

import (
	"log/slog"
	"time"

	"github.com/icecreamdb/chat-responder/internal/biz/repo"
	"github.com/icecreamdb/chat-responder/internal/biz/usecase"
	"github.com/icecreamdb/chat-responder/internal/metrics"
)

// Usecases contains all usecases
type Usecases struct {
	Cache       *usecase.RuleCache
	Matcher     *usecase.TriggerMatcher
	Permissions *usecase.PermissionEvaluator
	Cooldowns   *usecase.CooldownTracker
	Templater   *usecase.ResponseTemplater
	Evaluator   *usecase.Evaluator
}

// Options configures the usecase layer
type Options struct {
	Cache       usecase.CacheConfig
	OwnerIDs    []string
	AdminIDs    []string
	EvalTimeout time.Duration
	StartedAt   time.Time
}

// NewUsecases wires the usecase layer over the rule store
func NewUsecases(rules repo.RuleRepo, users repo.UserResolver, opts Options, logger *slog.Logger, m *metrics.Metrics) *Usecases {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	return &Usecases{
		Cache:       usecase.NewRuleCache(rules, opts.Cache, logger, m),
		Matcher:     usecase.NewTriggerMatcher(logger, m),
		Permissions: usecase.NewPermissionEvaluator(opts.OwnerIDs, opts.AdminIDs),
		Cooldowns:   usecase.NewCooldownTracker(),
		Templater:   usecase.NewResponseTemplater(users, opts.StartedAt, logger),
		Evaluator:   usecase.NewEvaluator(opts.EvalTimeout),
	}
}
