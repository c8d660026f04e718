// Package config loads service configuration from environment variables and
// an optional YAML file. Optional subsystems (sheets sync, telegram, redis,
// object-store archive, search, brief generation) are gated on their own
// Configured predicates so the process runs without them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string
	DataDir  string
	HTTPAddr string

	Discord struct {
		Token               string
		GuildID             string
		SubmissionChannelID string
		JudgeRoleID         string
		DefaultMissionHours int
	}

	Telegram struct {
		Token     string
		ChannelID int64
	}

	Sheets struct {
		SpreadsheetID   string
		CredentialsFile string
	}

	Redis struct {
		URL string
	}

	Archive struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}

	Search struct {
		URL    string
		APIKey string
	}

	Brief struct {
		APIURL string
		APIKey string
		Model  string
	}

	Sweep struct {
		Interval time.Duration
	}
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("missionmonitor")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("MM")
	// Dotted keys bind to MM_SECTION_KEY variables.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file; environment and defaults only.
	}

	cfg := &Config{}
	cfg.LogLevel = v.GetString("log_level")
	cfg.DataDir = v.GetString("data_dir")
	cfg.HTTPAddr = v.GetString("http_addr")

	cfg.Discord.Token = v.GetString("discord.token")
	cfg.Discord.GuildID = v.GetString("discord.guild_id")
	cfg.Discord.SubmissionChannelID = v.GetString("discord.submission_channel_id")
	cfg.Discord.JudgeRoleID = v.GetString("discord.judge_role_id")
	cfg.Discord.DefaultMissionHours = v.GetInt("discord.default_mission_hours")

	cfg.Telegram.Token = v.GetString("telegram.token")
	cfg.Telegram.ChannelID = v.GetInt64("telegram.channel_id")

	cfg.Sheets.SpreadsheetID = v.GetString("sheets.spreadsheet_id")
	cfg.Sheets.CredentialsFile = v.GetString("sheets.credentials_file")

	cfg.Redis.URL = v.GetString("redis.url")

	cfg.Archive.Endpoint = v.GetString("archive.endpoint")
	cfg.Archive.AccessKey = v.GetString("archive.access_key")
	cfg.Archive.SecretKey = v.GetString("archive.secret_key")
	cfg.Archive.Bucket = v.GetString("archive.bucket")
	cfg.Archive.UseSSL = v.GetBool("archive.use_ssl")

	cfg.Search.URL = v.GetString("search.url")
	cfg.Search.APIKey = v.GetString("search.api_key")

	cfg.Brief.APIURL = v.GetString("brief.api_url")
	cfg.Brief.APIKey = v.GetString("brief.api_key")
	cfg.Brief.Model = v.GetString("brief.model")

	cfg.Sweep.Interval = v.GetDuration("sweep.interval")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("http_addr", ":8090")
	v.SetDefault("discord.default_mission_hours", 72)
	v.SetDefault("sweep.interval", 5*time.Minute)
	v.SetDefault("archive.bucket", "mission-exports")
	v.SetDefault("brief.api_url", "https://api.openai.com/v1")
	v.SetDefault("brief.model", "gpt-4o-mini")
}

func validate(cfg *Config) error {
	if cfg.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}
	if cfg.Discord.SubmissionChannelID == "" {
		return fmt.Errorf("discord.submission_channel_id is required")
	}
	if cfg.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive")
	}
	if cfg.SheetsConfigured() && cfg.Sheets.CredentialsFile == "" {
		return fmt.Errorf("sheets.credentials_file is required when sheets.spreadsheet_id is set")
	}
	return nil
}

// SheetsConfigured reports whether the spreadsheet sync target is set. When
// false the sweeper and sync gateway are no-ops, not errors.
func (c *Config) SheetsConfigured() bool {
	return c.Sheets.SpreadsheetID != ""
}

func (c *Config) TelegramConfigured() bool {
	return c.Telegram.Token != "" && c.Telegram.ChannelID != 0
}

func (c *Config) RedisConfigured() bool {
	return c.Redis.URL != ""
}

func (c *Config) ArchiveConfigured() bool {
	return c.Archive.Endpoint != "" && c.Archive.AccessKey != ""
}

func (c *Config) SearchConfigured() bool {
	return c.Search.URL != ""
}

func (c *Config) BriefConfigured() bool {
	return c.Brief.APIKey != ""
}
