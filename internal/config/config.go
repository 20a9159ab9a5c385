// Package config содержит логику чтения конфигурации реферального бота.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Значения по умолчанию.
const (
	DefaultRunAddress        = "localhost:8080"
	DefaultDatabaseURI       = "sqlite://bot.db"
	DefaultReferralReward    = 500
	DefaultMinimumWithdrawal = 15000
	DefaultOracleTimeout     = 5 * time.Second
	DefaultOutboxPath        = "data/outbox.db"
	DefaultChannelsFile      = "data/channels.yaml"
)

// Config содержит параметры конфигурации бота.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	BotToken              string        `env:"BOT_TOKEN"`
	AdminID               int64         `env:"ADMIN_ID"`
	AdminUsername         string        `env:"ADMIN_USERNAME"`
	ReferralReward        int64         `env:"REFERRAL_REWARD" envDefault:"500"`
	MinimumWithdrawal     int64         `env:"MINIMUM_WITHDRAWAL" envDefault:"15000"`
	SponsorChannels       []string      `env:"SPONSOR_CHANNELS" envSeparator:","`
	SkipSubscriptionCheck bool          `env:"SKIP_SUBSCRIPTION_CHECK"`
	OracleTimeout         time.Duration `env:"ORACLE_TIMEOUT" envDefault:"5s"`
	TelegramTimeout       time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10s"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL"`
	OutboxPath            string        `env:"OUTBOX_PATH" envDefault:"data/outbox.db"`
	ChannelsFile          string        `env:"CHANNELS_FILE" envDefault:"data/channels.yaml"`
	APISecret             string        `env:"API_SECRET"`
}

// LoadDotEnv подгружает переменные окружения из файлов .env, если они существуют.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var errs []error
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("load %s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envBotToken := cfg.BotToken
	envAdminID := cfg.AdminID

	flag.StringVar(&cfg.RunAddress, "a", DefaultRunAddress, "address and port for admin HTTP API")
	flag.StringVar(&cfg.DatabaseURI, "d", DefaultDatabaseURI, "database URI (postgres://... or sqlite://path)")
	flag.StringVar(&cfg.BotToken, "t", "", "telegram bot token")
	flag.Int64Var(&cfg.AdminID, "admin", 0, "administrator telegram id")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envBotToken != "" {
		cfg.BotToken = envBotToken
	}
	if envAdminID != 0 {
		cfg.AdminID = envAdminID
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = DefaultRunAddress
	}
	if cfg.DatabaseURI == "" {
		cfg.DatabaseURI = DefaultDatabaseURI
	}

	cfg.SponsorChannels = NormalizeChannels(cfg.SponsorChannels)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность параметров.
func (c *Config) Validate() error {
	if c.ReferralReward < 0 {
		return fmt.Errorf("referral reward must not be negative, got %d", c.ReferralReward)
	}
	if c.MinimumWithdrawal <= 0 {
		return fmt.Errorf("minimum withdrawal must be positive, got %d", c.MinimumWithdrawal)
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive, got %v", c.OracleTimeout)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep interval must not be negative, got %v", c.SweepInterval)
	}
	return nil
}

// NormalizeChannel приводит идентификатор канала к виду "@name".
// Числовые идентификаторы (-100...) возвращаются как есть.
func NormalizeChannel(channel string) string {
	ch := strings.TrimSpace(channel)
	ch = strings.TrimPrefix(ch, "https://t.me/")
	ch = strings.TrimPrefix(ch, "t.me/")
	if ch == "" {
		return ""
	}
	if strings.HasPrefix(ch, "@") || strings.HasPrefix(ch, "-") {
		return ch
	}
	return "@" + ch
}

// NormalizeChannels нормализует список каналов, удаляя пустые значения и дубликаты.
func NormalizeChannels(channels []string) []string {
	res := make([]string, 0, len(channels))
	seen := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		ch := NormalizeChannel(c)
		if ch == "" {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		res = append(res, ch)
	}
	return res
}
