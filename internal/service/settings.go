package service

import (
	"time"

	"cleanup-quest-bot/internal/config"
	"cleanup-quest-bot/internal/gamification"
)

// Settings tune the engine services.
type Settings struct {
	Rates              gamification.Rates
	Location           *time.Location
	MaxRetries         int
	PhotoDeleteTimeout time.Duration
}

// SettingsFromConfig builds Settings from loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Rates: gamification.Rates{
			Report:        cfg.Points.Report,
			Accept:        cfg.Points.Accept,
			CleanPartial:  cfg.Points.CleanPartial,
			CleanComplete: cfg.Points.CleanComplete,
			Validate:      cfg.Points.Validate,
		},
		Location:           cfg.Engine.Location(),
		MaxRetries:         cfg.Engine.MaxRetries,
		PhotoDeleteTimeout: cfg.Engine.PhotoDeleteTimeout,
	}
}

// DefaultSettings uses the stock rates in UTC.
func DefaultSettings() Settings {
	return Settings{
		Rates:              gamification.DefaultRates(),
		Location:           time.UTC,
		MaxRetries:         3,
		PhotoDeleteTimeout: 10 * time.Second,
	}
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}
