// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// APIKey, when set, guards /api/* via the x-functions-key header or the
	// code query parameter.
	APIKey string `koanf:"api_key"`

	// Schedule is a six-field cron spec (with seconds) for timer runs.
	Schedule        string `koanf:"schedule"`
	ScheduleEnabled bool   `koanf:"schedule_enabled"`

	// Timezone is used for the notification window and the year fallback.
	Timezone string `koanf:"timezone"`

	// QueueSize bounds pending run requests.
	QueueSize int `koanf:"queue_size"`

	// Graph credentials. Empty values fall back to TENANT_ID, CLIENT_ID,
	// CLIENT_SECRET and DRIVE_ID.
	TenantID     string `koanf:"tenant_id"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	DriveID      string `koanf:"drive_id"`

	GraphBaseURL string        `koanf:"graph_base_url"`
	TokenURL     string        `koanf:"token_url"`
	HTTPTimeout  time.Duration `koanf:"http_timeout"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`

	// Drive paths.
	ConfigPath     string `koanf:"config_path"`
	TeamLeaderPath string `koanf:"team_leader_path"`
	TemplateDir    string `koanf:"template_dir"`

	// Notifications.
	NotifyEmailTo   string `koanf:"notify_email_to"`
	NotifyEmailFrom string `koanf:"notify_email_from"`
	NotifySlackHook string `koanf:"notify_slack_webhook"`
	NotifyDays      string `koanf:"notify_days"`
	NotifyHourStart int    `koanf:"notify_hour_start"`
	NotifyHourEnd   int    `koanf:"notify_hour_end"`

	// StatePath is the sqlite file for run history; empty keeps it in memory.
	StatePath string `koanf:"state_path"`

	// LayoutPath optionally overrides the embedded workbook layout.
	LayoutPath string `koanf:"layout_path"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":8080",
		Schedule:        "0 */30 * * * *",
		ScheduleEnabled: true,
		Timezone:        "Australia/Melbourne",
		QueueSize:       4,
		GraphBaseURL:    "https://graph.microsoft.com/v1.0",
		HTTPTimeout:     60 * time.Second,
		CacheTTL:        24 * time.Hour,
		ConfigPath:      "/Excel files/KPI Files/KPI/config/KPI_Config_Tables_v4.xlsx",
		TeamLeaderPath:  "/Excel files/KPI Files/KPI/Team_Leader_2026.xlsx",
		TemplateDir:     "/Excel files/KPI Files/KPI/templates",
		NotifyDays:      "monday,thursday",
		NotifyHourStart: 9,
		NotifyHourEnd:   12,
	}
}

// Location returns the configured zone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HasCredentials reports whether every Graph credential is present.
func (c *Config) HasCredentials() bool {
	return (c.TenantID != "" || c.TokenURL != "") && c.ClientID != "" && c.ClientSecret != "" && c.DriveID != ""
}
