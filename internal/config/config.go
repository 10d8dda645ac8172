// Package config loads server settings from config/rollcall.<env>.yaml,
// overridden by ROLLCALL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mcoot/rollcall/internal/model"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// MaxCapacity bounds the configured number of main slots
const MaxCapacity = 50

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Capacity  int           `mapstructure:"capacity"`
	AutoClose time.Duration `mapstructure:"auto_close"`

	AutoAddChannelID  model.ChannelID `mapstructure:"auto_add_channel_id"`
	RosterChannelID   model.ChannelID `mapstructure:"roster_channel_id"`
	DisplayChannelID  model.ChannelID `mapstructure:"display_channel_id"`
	StatsChannelID    model.ChannelID `mapstructure:"stats_channel_id"`
	HistoryChannelID  model.ChannelID `mapstructure:"history_channel_id"`
	ParticipantRoleID model.RoleID    `mapstructure:"participant_role_id"`

	SendReminders    bool          `mapstructure:"send_reminders"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	Community        string        `mapstructure:"community"`
	StatsTitle       string        `mapstructure:"stats_title"`

	InputTimeout    time.Duration `mapstructure:"input_timeout"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	FinishDelay     time.Duration `mapstructure:"finish_delay"`

	// Notices on the display channel older than NoticeRetention are pruned
	// every HousekeepingInterval. The roster lists are kept.
	HousekeepingInterval time.Duration `mapstructure:"housekeeping_interval"`
	NoticeRetention      time.Duration `mapstructure:"notice_retention"`

	EndToken     string `mapstructure:"end_token"`
	ConfirmToken string `mapstructure:"confirm_token"`

	Storage StorageConfig `mapstructure:"storage"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`

	Participants []model.Participant `mapstructure:"participants"`

	// Source is the file the settings were read from, empty when only
	// defaults and environment applied
	Source string `mapstructure:"-"`
}

type StorageConfig struct {
	Type       string `mapstructure:"type"`
	RedisURL   string `mapstructure:"redis_url"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type AuthConfig struct {
	// TokenHash is the bcrypt hash of the static API token
	TokenHash       string              `mapstructure:"token_hash"`
	SessionDuration time.Duration       `mapstructure:"session_duration"`
	Coordinators    []model.Coordinator `mapstructure:"coordinators"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("capacity", 10)
	v.SetDefault("auto_close", "2h")
	v.SetDefault("auto_add_channel_id", "reserves")
	v.SetDefault("roster_channel_id", "main")
	v.SetDefault("display_channel_id", "roster")
	v.SetDefault("stats_channel_id", "stats")
	v.SetDefault("history_channel_id", "history")
	v.SetDefault("participant_role_id", "players")
	v.SetDefault("send_reminders", false)
	v.SetDefault("reminder_interval", "5s")
	v.SetDefault("community", "Rollcall")
	v.SetDefault("stats_title", "📊 Attendance")
	v.SetDefault("input_timeout", "60s")
	v.SetDefault("confirm_timeout", "30s")
	v.SetDefault("sweep_interval", "60s")
	v.SetDefault("refresh_interval", "2s")
	v.SetDefault("finish_delay", "1s")
	v.SetDefault("housekeeping_interval", "101s")
	v.SetDefault("notice_retention", "101s")
	v.SetDefault("end_token", "FIN")
	v.SetDefault("confirm_token", "CONFIRMAR")
	v.SetDefault("storage.type", StorageMemory)
	v.SetDefault("storage.redis_url", "redis://localhost:6379")
	v.SetDefault("storage.key_prefix", "rollcall")
	v.SetDefault("storage.sqlite_path", "data/rollcall.db")
	v.SetDefault("http.host", "")
	v.SetDefault("http.port", 8080)
	v.SetDefault("auth.token_hash", "")
	v.SetDefault("auth.session_duration", "24h")
	v.SetDefault("log.level", "info")
}

// Default returns the built-in settings, ignoring files and environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads config/rollcall.<env>.yaml where env comes from
// ROLLCALL_ENV (default "dev"). A missing file is not an error.
func Load() (*Config, error) {
	env := os.Getenv("ROLLCALL_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/rollcall.%s.yaml", env))
}

// LoadFile reads settings from fileName, then the environment, then
// validates the result
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("ROLLCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	source := fileName
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		source = ""
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and required keys
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Capacity < 1 || c.Capacity > MaxCapacity {
		invalid("capacity must be between 1 and %d, got %d", MaxCapacity, c.Capacity)
	}

	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"auto_close", c.AutoClose},
		{"input_timeout", c.InputTimeout},
		{"confirm_timeout", c.ConfirmTimeout},
		{"sweep_interval", c.SweepInterval},
		{"refresh_interval", c.RefreshInterval},
		{"finish_delay", c.FinishDelay},
		{"reminder_interval", c.ReminderInterval},
		{"housekeeping_interval", c.HousekeepingInterval},
		{"notice_retention", c.NoticeRetention},
	} {
		if d.value <= 0 {
			invalid("%s must be positive", d.key)
		}
	}

	if strings.TrimSpace(c.EndToken) == "" || strings.TrimSpace(c.ConfirmToken) == "" {
		invalid("end_token and confirm_token are required")
	} else if strings.EqualFold(c.EndToken, c.ConfirmToken) {
		invalid("end_token and confirm_token must differ")
	}

	if c.DisplayChannelID == "" {
		invalid("display_channel_id is required")
	}
	if c.ParticipantRoleID == "" {
		invalid("participant_role_id is required")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			invalid("storage.redis_url is required for redis storage")
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			invalid("storage.sqlite_path is required for sqlite storage")
		}
	default:
		invalid("storage.type must be memory, redis or sqlite, got %q", c.Storage.Type)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		invalid("http.port out of range: %d", c.HTTP.Port)
	}

	for i, p := range c.Participants {
		if p.ID == "" || p.DisplayName == "" {
			invalid("participants[%d] needs id and display_name", i)
		}
	}

	return errors.Join(errs...)
}
