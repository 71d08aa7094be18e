package config

import (
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment overrides, e.g. RECORDSDESK_PORT.
const EnvPrefix = "RECORDSDESK"

var envKeys = []string{
	"config", "port", "database_driver", "database_url", "jwt_secret",
	"webhook_token", "files_root", "smtp_password", "imap_password", "telegram_token",
}

// NewEnv returns a viper instance bound to the RECORDSDESK_* variables.
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// ConfigPath is the file named by RECORDSDESK_CONFIG, or DefaultPath.
func ConfigPath(v *viper.Viper) string {
	if p := v.GetString("config"); p != "" {
		return p
	}
	return DefaultPath
}

// ApplyEnv overlays environment values on a loaded config. Secrets are
// usually supplied this way rather than in the YAML file.
func (cfg *Config) ApplyEnv(v *viper.Viper) {
	if p := v.GetInt("port"); p > 0 {
		cfg.Server.Port = p
	}
	setString(v, "database_driver", &cfg.Database.Driver)
	setString(v, "database_url", &cfg.Database.DSN)
	setString(v, "jwt_secret", &cfg.Auth.JWTSecret)
	setString(v, "webhook_token", &cfg.Delivery.WebhookToken)
	setString(v, "files_root", &cfg.Files.RootDir)
	setString(v, "smtp_password", &cfg.Email.SMTPPassword)
	setString(v, "imap_password", &cfg.IMAP.Password)
	setString(v, "telegram_token", &cfg.Telegram.BotToken)
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}
