package conf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTwitch() *Config {
	cfg := Default()
	cfg.Twitch.Nick = "icecreambot"
	cfg.Twitch.Token = "oauth:abc"
	cfg.Twitch.BotUserID = "12345"
	cfg.Twitch.Channels = []string{"icecream"}
	return cfg
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("RESPONDER_DB_DRIVER", "mysql")
	t.Setenv("ICDBV3_CONNECTIONSTRINGS_DB", "legacy-dsn")
	t.Setenv("RESPONDER_BOT_OWNERS", " 111, 222 ,,")
	t.Setenv("RESPONDER_CACHE_STALENESS", "45")
	t.Setenv("RESPONDER_REGEX_TIMEOUT", "250ms")
	t.Setenv("RESPONDER_TRANSPORT", "hub")
	t.Setenv("TWITCH_PORT", "6667")
	t.Setenv("TWITCH_TLS", "false")

	cfg := LoadFromEnv()

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, "legacy-dsn", cfg.DB.DSN)
	assert.Equal(t, []string{"111", "222"}, cfg.SpecialUsers.Owners)
	assert.Equal(t, 45*time.Second, cfg.Cache.Staleness)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.RegexTimeout)
	assert.Equal(t, TransportHub, cfg.Transport)
	assert.Equal(t, 6667, cfg.Twitch.Port)
	assert.False(t, cfg.Twitch.TLS)
}

func TestLoadFromEnv_DSNPrecedence(t *testing.T) {
	t.Setenv("ICDBV3_CONNECTIONSTRINGS_DB", "legacy-dsn")
	t.Setenv("RESPONDER_DB_DSN", "new-dsn")

	assert.Equal(t, "new-dsn", LoadFromEnv().DB.DSN)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "responder.yaml")
	content := `
db:
  driver: mysql
  dsn: root@tcp(localhost:3306)/icdb
special_users:
  owners: ["42"]
cache:
  staleness: 1m
transport: feishu
feishu:
  app_id: cli_x
  app_secret: secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, []string{"42"}, cfg.SpecialUsers.Owners)
	assert.Equal(t, time.Minute, cfg.Cache.Staleness)
	assert.Equal(t, 100*time.Millisecond, cfg.Cache.RegexTimeout, "unset keys keep defaults")
	assert.Equal(t, TransportFeishu, cfg.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_ExplicitPathMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [unterminated"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad driver", func(c *Config) { c.DB.Driver = "postgres" }, "RESPONDER_DB_DRIVER"},
		{"empty dsn", func(c *Config) { c.DB.DSN = "" }, "RESPONDER_DB_DSN"},
		{"zero staleness", func(c *Config) { c.Cache.Staleness = 0 }, "RESPONDER_CACHE_STALENESS"},
		{"missing token", func(c *Config) { c.Twitch.Token = "" }, "TWITCH_NICK/TWITCH_TOKEN"},
		{"missing bot user id", func(c *Config) { c.Twitch.BotUserID = "" }, "TWITCH_BOT_USER_ID"},
		{"no channels", func(c *Config) { c.Twitch.Channels = nil }, "TWITCH_CHANNELS"},
		{"feishu without creds", func(c *Config) { c.Transport = TransportFeishu }, "FEISHU_APP_ID/FEISHU_APP_SECRET"},
		{"hub without bot", func(c *Config) { c.Transport = TransportHub }, "HUB_NATS_URL/HUB_BOT_ID"},
		{"unknown transport", func(c *Config) { c.Transport = "irc" }, "RESPONDER_TRANSPORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTwitch()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestToOptions(t *testing.T) {
	cfg := validTwitch()
	cfg.SpecialUsers.Owners = []string{"1"}
	cfg.SpecialUsers.Admins = []string{"2"}

	opts := cfg.ToOptions()
	assert.Equal(t, []string{"1"}, opts.OwnerIDs)
	assert.Equal(t, []string{"2"}, opts.AdminIDs)
	assert.Equal(t, cfg.Cache.Staleness, opts.Cache.Staleness)
}
