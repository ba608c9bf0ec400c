package data

import (
	"context"

	"github.com/icecreamdb/chat-responder/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	Rules repo.RuleRepo
}

// NewRepositories creates all repositories
func NewRepositories(ctx context.Context, dialect, dsn string) (*Repositories, error) {
	rules, err := NewRuleRepo(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return &Repositories{Rules: rules}, nil
}

// Close releases the underlying store
func (r *Repositories) Close() error {
	return r.Rules.Close()
}
