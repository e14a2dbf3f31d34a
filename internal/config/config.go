package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken          string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath            string `envconfig:"DB_PATH" default:"./data/birthday.db"`
	TZ                string `envconfig:"TZ" default:"UTC"`
	DefaultNotifyTime string `envconfig:"DEFAULT_NOTIFY_TIME" default:"09:00"` // HH:MM, global fallback
	AdvanceReminders  bool   `envconfig:"ADVANCE_REMINDERS" default:"true"`    // group digests mention tomorrow's birthdays
	QuotePerRecipient bool   `envconfig:"QUOTE_PER_RECIPIENT" default:"true"`  // fresh quote per celebrant
	RunMode           string `envconfig:"RUN_MODE" default:"polling"`          // polling|webhook (MVP: polling)
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`            // debug|info|warn|error
	HTTPAddr          string `envconfig:"HTTP_ADDR" default:":8080"`           // healthz (future-proof)
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
