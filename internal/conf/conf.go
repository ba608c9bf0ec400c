package conf

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/icecreamdb/chat-responder/internal/biz"
	"github.com/icecreamdb/chat-responder/internal/biz/usecase"
)

// Transport names
const (
	TransportTwitch = "twitch"
	TransportFeishu = "feishu"
	TransportHub    = "hub"
)

// Config represents application configuration
type Config struct {
	// Rule store
	DB DBConfig `yaml:"db"`

	// Users that bypass cooldowns, by platform user id
	SpecialUsers SpecialUsersConfig `yaml:"special_users"`

	// Rule cache tuning
	Cache CacheConfig `yaml:"cache"`

	// Active chat transport: twitch, feishu or hub
	Transport string `yaml:"transport"`

	Twitch TwitchConfig `yaml:"twitch"`
	Feishu FeishuConfig `yaml:"feishu"`
	Hub    HubConfig    `yaml:"hub"`

	// Outbound pacing shared by all transports
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Admin HTTP listener (health, metrics, cache, MCP)
	Admin AdminConfig `yaml:"admin"`

	Log LogConfig `yaml:"log"`
}

// DBConfig contains rule store configuration
type DBConfig struct {
	Driver string `yaml:"driver"` // sqlite or mysql
	DSN    string `yaml:"dsn"`
}

// SpecialUsersConfig lists bot owners and admins
type SpecialUsersConfig struct {
	Owners []string `yaml:"owners"`
	Admins []string `yaml:"admins"`
}

// CacheConfig contains rule cache configuration
type CacheConfig struct {
	Staleness    time.Duration `yaml:"staleness"`
	RegexTimeout time.Duration `yaml:"regex_timeout"`
	EvalTimeout  time.Duration `yaml:"eval_timeout"`
}

// TwitchConfig contains IRC chat configuration
type TwitchConfig struct {
	Server    string   `yaml:"server"`
	Port      int      `yaml:"port"`
	TLS       bool     `yaml:"tls"`
	Nick      string   `yaml:"nick"`
	Token     string   `yaml:"token"`
	BotUserID string   `yaml:"bot_user_id"`
	Channels  []string `yaml:"channels"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
}

// HubConfig contains NATS relay configuration
type HubConfig struct {
	NATSURL string `yaml:"nats_url"`
	BotID   string `yaml:"bot_id"`
}

// RateLimitConfig limits outbound messages per room
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// AdminConfig contains the admin listener configuration
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads the YAML file (if any) and applies environment overrides
func Load() (*Config, error) {
	cfg, err := LoadFile(os.Getenv("RESPONDER_CONFIG"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromEnv builds configuration from defaults and environment variables only
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	// Rule store
	setString(&c.DB.Driver, "RESPONDER_DB_DRIVER")
	setString(&c.DB.DSN, "ICDBV3_CONNECTIONSTRINGS_DB")
	setString(&c.DB.DSN, "RESPONDER_DB_DSN")

	// Special users
	setList(&c.SpecialUsers.Owners, "RESPONDER_BOT_OWNERS")
	setList(&c.SpecialUsers.Admins, "RESPONDER_BOT_ADMINS")

	// Cache
	setDuration(&c.Cache.Staleness, "RESPONDER_CACHE_STALENESS")
	setDuration(&c.Cache.RegexTimeout, "RESPONDER_REGEX_TIMEOUT")
	setDuration(&c.Cache.EvalTimeout, "RESPONDER_EVAL_TIMEOUT")

	setString(&c.Transport, "RESPONDER_TRANSPORT")
	setString(&c.Admin.Addr, "RESPONDER_ADMIN_ADDR")

	// Twitch
	setString(&c.Twitch.Server, "TWITCH_SERVER")
	if val := os.Getenv("TWITCH_PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			c.Twitch.Port = parsed
		}
	}
	if val := os.Getenv("TWITCH_TLS"); val != "" {
		c.Twitch.TLS = val == "true"
	}
	setString(&c.Twitch.Nick, "TWITCH_NICK")
	setString(&c.Twitch.Token, "TWITCH_TOKEN")
	setString(&c.Twitch.BotUserID, "TWITCH_BOT_USER_ID")
	setList(&c.Twitch.Channels, "TWITCH_CHANNELS")

	// Feishu
	setString(&c.Feishu.AppID, "FEISHU_APP_ID")
	setString(&c.Feishu.AppSecret, "FEISHU_APP_SECRET")

	// Hub
	setString(&c.Hub.NATSURL, "HUB_NATS_URL")
	setString(&c.Hub.BotID, "HUB_BOT_ID")

	// Rate limit
	if val := os.Getenv("RESPONDER_RATE_PER_SECOND"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			c.RateLimit.PerSecond = parsed
		}
	}
	if val := os.Getenv("RESPONDER_RATE_BURST"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			c.RateLimit.Burst = parsed
		}
	}

	// Logging
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DB: DBConfig{
			Driver: "sqlite",
			DSN:    "responder.db",
		},
		Cache: CacheConfig{
			Staleness:    usecase.DefaultStaleness,
			RegexTimeout: usecase.DefaultRegexTimeout,
			EvalTimeout:  usecase.DefaultEvalTimeout,
		},
		Transport: TransportTwitch,
		Twitch: TwitchConfig{
			Server: "irc.chat.twitch.tv",
			Port:   6697,
			TLS:    true,
		},
		Hub: HubConfig{
			NATSURL: "nats://127.0.0.1:4222",
		},
		RateLimit: RateLimitConfig{
			PerSecond: 1,
			Burst:     3,
		},
		Admin: AdminConfig{
			Addr: "127.0.0.1:8089",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ToOptions converts to usecase layer options
func (c *Config) ToOptions() biz.Options {
	return biz.Options{
		Cache: usecase.CacheConfig{
			Staleness:    c.Cache.Staleness,
			RegexTimeout: c.Cache.RegexTimeout,
		},
		OwnerIDs:    c.SpecialUsers.Owners,
		AdminIDs:    c.SpecialUsers.Admins,
		EvalTimeout: c.Cache.EvalTimeout,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return &ConfigError{Field: "RESPONDER_DB_DRIVER", Message: "must be sqlite or mysql"}
	}
	if c.DB.DSN == "" {
		return &ConfigError{Field: "RESPONDER_DB_DSN", Message: "required"}
	}
	if c.Cache.Staleness <= 0 {
		return &ConfigError{Field: "RESPONDER_CACHE_STALENESS", Message: "must be positive"}
	}
	if c.Cache.RegexTimeout <= 0 {
		return &ConfigError{Field: "RESPONDER_REGEX_TIMEOUT", Message: "must be positive"}
	}

	switch c.Transport {
	case TransportTwitch:
		if c.Twitch.Nick == "" || c.Twitch.Token == "" {
			return &ConfigError{Field: "TWITCH_NICK/TWITCH_TOKEN", Message: "required"}
		}
		if c.Twitch.BotUserID == "" {
			return &ConfigError{Field: "TWITCH_BOT_USER_ID", Message: "required"}
		}
		if len(c.Twitch.Channels) == 0 {
			return &ConfigError{Field: "TWITCH_CHANNELS", Message: "at least one channel required"}
		}
	case TransportFeishu:
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
		}
	case TransportHub:
		if c.Hub.NATSURL == "" || c.Hub.BotID == "" {
			return &ConfigError{Field: "HUB_NATS_URL/HUB_BOT_ID", Message: "required"}
		}
	default:
		return &ConfigError{Field: "RESPONDER_TRANSPORT", Message: "must be twitch, feishu or hub"}
	}

	if c.RateLimit.PerSecond < 0 {
		return &ConfigError{Field: "RESPONDER_RATE_PER_SECOND", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setList(dst *[]string, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// setDuration accepts Go durations ("45s") or plain seconds ("45")
func setDuration(dst *time.Duration, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	if d, err := time.ParseDuration(val); err == nil {
		*dst = d
		return
	}
	if secs, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(secs) * time.Second
	}
}
