package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-level configuration loaded at startup. Mailbox
// settings under Mail are only defaults: the settings table overrides
// them at run time, so credentials can change without a restart.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Mail     MailConfig     `mapstructure:"mail"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// MailConfig holds fallback mailbox settings used when the settings
// table has no value for a key.
type MailConfig struct {
	IMAPHost          string        `mapstructure:"imap_host"`
	IMAPPort          int           `mapstructure:"imap_port"`
	IMAPUsername      string        `mapstructure:"imap_username"`
	IMAPPassword      string        `mapstructure:"imap_password"`
	IMAPUseSSL        bool          `mapstructure:"imap_use_ssl"`
	IMAPFolder        string        `mapstructure:"imap_folder"`
	MaxEmailsPerSync  int           `mapstructure:"max_emails_per_sync"`
	AttachmentDir     string        `mapstructure:"attachment_dir"`
	AttachmentMaxSize int64         `mapstructure:"attachment_max_size"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
}

type SyncConfig struct {
	Schedule string        `mapstructure:"schedule"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads config.yaml (from path, or the working directory when path
// is empty) merged with INBOXDESK_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/inboxdesk")
	}
	v.SetEnvPrefix("INBOXDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env carry the load.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "inboxdesk")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.debug", false)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "inboxdesk.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("mail.imap_host", "imap.gmail.com")
	v.SetDefault("mail.imap_port", 993)
	v.SetDefault("mail.imap_use_ssl", true)
	v.SetDefault("mail.imap_folder", "INBOX")
	v.SetDefault("mail.max_emails_per_sync", 50)
	v.SetDefault("mail.attachment_dir", "storage/attachments")
	v.SetDefault("mail.attachment_max_size", 10*1024*1024)
	v.SetDefault("mail.dial_timeout", 30*time.Second)
	v.SetDefault("mail.command_timeout", 60*time.Second)

	v.SetDefault("sync.schedule", "0 */5 * * * *")
	v.SetDefault("sync.timeout", 5*time.Minute)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9190")
}
