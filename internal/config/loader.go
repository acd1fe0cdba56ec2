package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	// Timezones resolve without a system zoneinfo database.
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"

	"github.com/okian/kpisync/internal/adapters/notify"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KPISYNC_"

// CronParser parses six-field specs with a leading seconds field.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if KPISYNC_CONFIG is set
//  3. env (prefix KPISYNC_)
//  4. bare TENANT_ID, CLIENT_ID, CLIENT_SECRET and DRIVE_ID for credentials
//     still unset
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// KPISYNC_QUEUE_SIZE -> queue_size (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	fallback(&cfg.TenantID, "TENANT_ID")
	fallback(&cfg.ClientID, "CLIENT_ID")
	fallback(&cfg.ClientSecret, "CLIENT_SECRET")
	fallback(&cfg.DriveID, "DRIVE_ID")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fallback(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("unknown timezone %q", c.Timezone))
	}
	if _, err := CronParser.Parse(c.Schedule); err != nil {
		problems = append(problems, fmt.Sprintf("bad schedule %q: %v", c.Schedule, err))
	}
	if _, err := c.Window(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.QueueSize < 1 {
		problems = append(problems, "queue_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Window builds the notification window.
func (c *Config) Window() (notify.Window, error) {
	days, err := notify.ParseDays(c.NotifyDays)
	if err != nil {
		return notify.Window{}, err
	}
	w := notify.Window{Days: days, StartHour: c.NotifyHourStart, EndHour: c.NotifyHourEnd, Location: c.Location()}
	return w, w.Validate()
}

// Recipients splits notify_email_to on commas and semicolons.
func (c *Config) Recipients() []string {
	var out []string
	for _, part := range strings.FieldsFunc(c.NotifyEmailTo, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
