package repo

import (
	"context"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// RuleRepo is the rule store interface
// Rules are authored elsewhere; the responder only reads them and bumps usage counters
type RuleRepo interface {
	// LoadChannels reads every channel with its linked groups, rules,
	// notice responses and individual replies in one pass
	LoadChannels(ctx context.Context) ([]*domain.ChannelRules, error)

	// RulesByIDs returns full rule records in store order
	RulesByIDs(ctx context.Context, ids []int64) ([]*domain.Rule, error)

	// IncrementTimesUsed bumps the usage counter of a rule
	IncrementTimesUsed(ctx context.Context, id int64) error

	Close() error
}
