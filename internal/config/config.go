package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Language-model fallback
	OpenRouterKey   string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel string `env:"OPENROUTER_MODEL" envDefault:"z-ai/glm-4.5-air:free"`

	// Optional Redis for the session/context stores. Empty means the
	// in-memory single-instance stores.
	RedisURL string `env:"REDIS_URL"`

	// Base URL of the CRM web app, used for redirect buttons
	// (e.g. the prefilled deal-creation form).
	CRMBaseURL string `env:"CRM_BASE_URL" envDefault:"https://crm.mebelart.ru"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) AdminIDsString() string {
	parts := make([]string, len(c.AdminIDs))
	for i, id := range c.AdminIDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
