package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
	"github.com/icecreamdb/chat-responder/internal/biz/repo"
)

const commandColumns = `id, command_group_id, enabled, is_regex, should_reply, trigger_phrase, response,
	cooldown_seconds, times_used, trigger_normal, trigger_subs, trigger_vips, trigger_mods,
	trigger_broadcaster, trigger_bot_admin, trigger_bot_owner`

// ruleRepo implements the Rule repository over database/sql
type ruleRepo struct {
	db *sql.DB
}

// NewRuleRepo opens the rule store and creates missing tables
func NewRuleRepo(ctx context.Context, dialect, dsn string) (repo.RuleRepo, error) {
	db, err := openDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return &ruleRepo{db: db}, nil
}

func openDB(ctx context.Context, dialect, dsn string) (*sql.DB, error) {
	if dialect == DialectSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// single writer connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// LoadChannels reads all channels with their linked groups and rules
func (r *ruleRepo) LoadChannels(ctx context.Context) ([]*domain.ChannelRules, error) {
	channels, byKey, err := r.loadChannelRows(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := r.loadGroups(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.linkGroups(ctx, byKey, groups); err != nil {
		return nil, err
	}
	if err := r.loadUserReplies(ctx, byKey); err != nil {
		return nil, err
	}
	if err := r.loadNoticeResponses(ctx, byKey); err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *ruleRepo) loadChannelRows(ctx context.Context) ([]*domain.ChannelRules, map[domain.ChannelKey]*domain.ChannelRules, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bot_user_id, room_id, channel_name, enabled, max_message_length
		FROM channels
		ORDER BY bot_user_id, room_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []*domain.ChannelRules
	byKey := make(map[domain.ChannelKey]*domain.ChannelRules)
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.BotID, &ch.RoomID, &ch.Name, &ch.Enabled, &ch.MaxMessageLength); err != nil {
			return nil, nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		cr := &domain.ChannelRules{Channel: ch}
		channels = append(channels, cr)
		byKey[ch.Key()] = cr
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate channels: %w", err)
	}
	return channels, byKey, nil
}

// loadGroups reads every group with its rules in id order
func (r *ruleRepo) loadGroups(ctx context.Context) (map[int64]*domain.RuleGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, enabled FROM command_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query command groups: %w", err)
	}
	groups := make(map[int64]*domain.RuleGroup)
	for rows.Next() {
		var g domain.RuleGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Enabled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan command group: %w", err)
		}
		groups[g.ID] = &g
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate command groups: %w", err)
	}
	rows.Close()

	rules, err := r.queryRules(ctx, `SELECT `+commandColumns+` FROM commands ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if g, ok := groups[rule.GroupID]; ok {
			g.Rules = append(g.Rules, rule)
		}
	}
	return groups, nil
}

func (r *ruleRepo) linkGroups(ctx context.Context, byKey map[domain.ChannelKey]*domain.ChannelRules, groups map[int64]*domain.RuleGroup) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT command_group_id, bot_user_id, room_id
		FROM command_group_links
		ORDER BY command_group_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query command group links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID int64
		var key domain.ChannelKey
		if err := rows.Scan(&groupID, &key.BotID, &key.RoomID); err != nil {
			return fmt.Errorf("failed to scan command group link: %w", err)
		}
		cr, ok := byKey[key]
		if !ok {
			continue
		}
		if g, ok := groups[groupID]; ok {
			cr.Groups = append(cr.Groups, g)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate command group links: %w", err)
	}
	return nil
}

func (r *ruleRepo) loadUserReplies(ctx context.Context, byKey map[domain.ChannelKey]*domain.ChannelRules) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bot_user_id, room_id, trigger_user_id, enabled, trigger_phrase, response
		FROM individual_user_replies
		ORDER BY bot_user_id, room_id, trigger_user_id, trigger_phrase
	`)
	if err != nil {
		return fmt.Errorf("failed to query individual user replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reply domain.IndividualUserReply
		if err := rows.Scan(&reply.BotID, &reply.RoomID, &reply.TriggerUserID, &reply.Enabled, &reply.TriggerPhrase, &reply.Response); err != nil {
			return fmt.Errorf("failed to scan individual user reply: %w", err)
		}
		if cr, ok := byKey[domain.ChannelKey{BotID: reply.BotID, RoomID: reply.RoomID}]; ok {
			cr.UserReplies = append(cr.UserReplies, reply)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate individual user replies: %w", err)
	}
	return nil
}

func (r *ruleRepo) loadNoticeResponses(ctx context.Context, byKey map[domain.ChannelKey]*domain.ChannelRules) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bot_user_id, room_id, message_id, response
		FROM user_notice_responses
		ORDER BY bot_user_id, room_id, message_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query notice responses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var nr domain.NoticeResponse
		var raw string
		if err := rows.Scan(&nr.BotID, &nr.RoomID, &raw, &nr.Response); err != nil {
			return fmt.Errorf("failed to scan notice response: %w", err)
		}
		kind, ok := domain.ParseNoticeKind(raw)
		if !ok {
			continue
		}
		nr.Kind = kind
		if cr, ok := byKey[domain.ChannelKey{BotID: nr.BotID, RoomID: nr.RoomID}]; ok {
			cr.NoticeResponses = append(cr.NoticeResponses, nr)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate notice responses: %w", err)
	}
	return nil
}

// RulesByIDs returns the current rule records for ids, in store order
func (r *ruleRepo) RulesByIDs(ctx context.Context, ids []int64) ([]*domain.Rule, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + commandColumns + ` FROM commands WHERE id IN (` + placeholders + `) ORDER BY id`
	return r.queryRules(ctx, query, args...)
}

// IncrementTimesUsed bumps the usage counter of a rule
func (r *ruleRepo) IncrementTimesUsed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE commands SET times_used = times_used + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment usage of rule %d: %w", id, err)
	}
	return nil
}

// Close closes the database connection
func (r *ruleRepo) Close() error {
	return r.db.Close()
}

func (r *ruleRepo) queryRules(ctx context.Context, query string, args ...any) ([]*domain.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		var rule domain.Rule
		p := &rule.Permissions
		err := rows.Scan(
			&rule.ID, &rule.GroupID, &rule.Enabled, &rule.IsRegex, &rule.ShouldReply,
			&rule.TriggerPhrase, &rule.Response, &rule.CooldownSeconds, &rule.TimesUsed,
			&p.Normal, &p.Subscriber, &p.VIP, &p.Moderator, &p.Broadcaster, &p.BotAdmin, &p.BotOwner,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commands: %w", err)
	}
	return rules, nil
}
