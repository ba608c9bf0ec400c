//go:build integration
// +build integration

package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/icecreamdb/chat-responder/internal/biz/domain"
)

// startMySQLContainer starts a MySQL container and returns the container and DSN
func startMySQLContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "responder",
			"MYSQL_DATABASE":      "icdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("port: 3306  MySQL Community Server"),
			wait.ForListeningPort("3306/tcp"),
		).WithDeadline(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)

	dsn := fmt.Sprintf("root:responder@tcp(%s:%s)/icdb?parseTime=true&charset=utf8mb4", host, port.Port())
	return container, dsn
}

func TestIntegration_MySQLRuleRepo(t *testing.T) {
	ctx := context.Background()
	container, dsn := startMySQLContainer(t, ctx)
	defer container.Terminate(ctx)

	r, err := NewRuleRepo(ctx, DialectMySQL, dsn)
	require.NoError(t, err)
	defer r.Close()
	db := r.(*ruleRepo).db

	mustExec(t, db, `INSERT INTO channels (bot_user_id, room_id, channel_name) VALUES (?, ?, ?)`, "bot-1", "room-1", "icecream")
	mustExec(t, db, `INSERT INTO command_groups (id, name) VALUES (?, ?)`, 1, "default")
	mustExec(t, db, `INSERT INTO command_group_links (command_group_id, bot_user_id, room_id) VALUES (?, ?, ?)`, 1, "bot-1", "room-1")
	mustExec(t, db, `INSERT INTO commands (id, command_group_id, trigger_phrase, response, is_regex) VALUES (?, ?, ?, ?, ?)`,
		7, 1, `^!dice\d+$`, "rolling 🍨", true)
	mustExec(t, db, `INSERT INTO user_notice_responses (bot_user_id, room_id, message_id, response) VALUES (?, ?, ?, ?)`,
		"bot-1", "room-1", "raid", "welcome raiders")

	// Re-running the schema against an existing database is a no-op
	require.NoError(t, migrate(ctx, db, DialectMySQL))

	channels, err := r.LoadChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)

	ch := channels[0]
	assert.True(t, ch.Channel.Enabled)
	assert.Equal(t, domain.DefaultMaxMessageLength, ch.Channel.MaxMessageLength)
	require.Len(t, ch.Groups, 1)
	require.Len(t, ch.Groups[0].Rules, 1)

	rule := ch.Groups[0].Rules[0]
	assert.Equal(t, `^!dice\d+$`, rule.TriggerPhrase)
	assert.Equal(t, "rolling 🍨", rule.Response)
	assert.True(t, rule.IsRegex)
	assert.Equal(t, 5, rule.CooldownSeconds)
	assert.Equal(t, domain.AllowAll(), rule.Permissions)

	require.Len(t, ch.NoticeResponses, 1)
	assert.Equal(t, domain.NoticeRaid, ch.NoticeResponses[0].Kind)

	require.NoError(t, r.IncrementTimesUsed(ctx, 7))
	rules, err := r.RulesByIDs(ctx, []int64{7})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(1), rules[0].TimesUsed)
}
