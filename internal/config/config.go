package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type FilesConfig struct {
	RootDir  string `yaml:"root_dir"`
	FontPath string `yaml:"font_path"`
}

// FaxConfig is the HTTP fax provider. DryRun logs instead of calling the API.
type FaxConfig struct {
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type IMAPConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	TLS          bool          `yaml:"tls"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	StaffChatID int64  `yaml:"staff_chat_id"`
}

type DeliveryConfig struct {
	WebhookToken string `yaml:"webhook_token"`
	ReplyDomain  string `yaml:"reply_domain"`
	ReplyPrefix  string `yaml:"reply_prefix"`
	ReturnName   string `yaml:"return_name"`
	ReturnAddr   string `yaml:"return_address"`
}

type LifecycleConfig struct {
	ResponseDays     int `yaml:"response_days"`
	EmbargoGraceDays int `yaml:"embargo_grace_days"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"url"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Notify struct {
		StaffEmail string `yaml:"staff_email"`
		SiteURL    string `yaml:"site_url"`
	} `yaml:"notify"`
	Files     FilesConfig     `yaml:"files"`
	Fax       FaxConfig       `yaml:"fax"`
	IMAP      IMAPConfig      `yaml:"imap"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

// LoadConfig reads the YAML file at path and fills defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 12 * time.Hour
	}
	if cfg.Files.RootDir == "" {
		cfg.Files.RootDir = "./files"
	}
	if cfg.IMAP.Port == "" {
		cfg.IMAP.Port = "993"
	}
	if cfg.IMAP.PollInterval == 0 {
		cfg.IMAP.PollInterval = 5 * time.Minute
	}
	if cfg.Delivery.ReplyPrefix == "" {
		cfg.Delivery.ReplyPrefix = "requests"
	}
	if cfg.Lifecycle.ResponseDays == 0 {
		cfg.Lifecycle.ResponseDays = 20
	}
	if cfg.Lifecycle.EmbargoGraceDays == 0 {
		cfg.Lifecycle.EmbargoGraceDays = 30
	}
}
