// Package repository persists run history and the notification log.
package repository

import (
	"context"
	"time"

	"github.com/okian/kpisync/internal/domain/model"
)

// Notification is one delivered pending-change notice.
type Notification struct {
	Channel     string
	Fingerprint string
	// Day is the local calendar date the notice was sent on, as 2006-01-02.
	Day     string
	Changes int
	SentAt  time.Time
}

// Store provides read/write access to run history and sent notifications.
type Store interface {
	// SaveRun stores a finished run. Saving the same id twice replaces it.
	SaveRun(ctx context.Context, run model.RunRecord) error

	// Runs returns up to limit runs, newest first.
	// Returns ErrInvalidLimit if limit is not positive.
	Runs(ctx context.Context, limit int) ([]model.RunRecord, error)

	// LastRun returns the newest run or ErrNotFound.
	LastRun(ctx context.Context) (model.RunRecord, error)

	// SaveNotification records a delivered notification.
	SaveNotification(ctx context.Context, n Notification) error

	// NotificationSent reports whether the same change set already went out
	// on channel during day.
	NotificationSent(ctx context.Context, channel, fingerprint, day string) (bool, error)

	Close() error
}
