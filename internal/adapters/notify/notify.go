// Package notify tells a human about Team Leader table rows that must be
// added or deleted by hand. Notices are gated to a weekly window and sent at
// most once per change set, channel and local day.
package notify

import (
	"context"
	"time"

	"github.com/okian/kpisync/internal/adapters/repository"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/okian/kpisync/pkg/metrics"
)

const dayLayout = "2006-01-02"

// Log remembers which notices were already delivered.
type Log interface {
	SaveNotification(ctx context.Context, n repository.Notification) error
	NotificationSent(ctx context.Context, channel, fingerprint, day string) (bool, error)
}

// Notifier fans a rendered notice out to its senders.
type Notifier struct {
	window  Window
	senders []Sender
	log     Log
	now     func() time.Time
	logger  logger.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSender adds a delivery channel. Nil senders are ignored.
func WithSender(s Sender) Option {
	return func(n *Notifier) {
		if s != nil {
			n.senders = append(n.senders, s)
		}
	}
}

// WithLog sets the notification log used for de-duplication.
func WithLog(l Log) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Notifier. Without WithLog it keeps its log in memory.
func New(window Window, opts ...Option) *Notifier {
	n := &Notifier{
		window: window,
		now:    time.Now,
		logger: logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		n.log = repository.NewMemoryStore()
	}
	return n
}

// Report describes what one Notify call did.
type Report struct {
	Fingerprint string   `json:"fingerprint,omitempty"`
	Sent        []string `json:"sent,omitempty"`
	Duplicate   []string `json:"duplicate,omitempty"`
	Failed      []string `json:"failed,omitempty"`
	// Reason is set when nothing was attempted.
	Reason string `json:"reason,omitempty"`
}

// Notify delivers changes on every channel that has not already carried the
// same change set today. Delivery failures are logged and reported, never
// returned.
func (n *Notifier) Notify(ctx context.Context, changes []model.PendingChange) Report {
	switch {
	case len(changes) == 0:
		return Report{Reason: "no changes"}
	case len(n.senders) == 0:
		n.logger.Warn(ctx, "pending changes but no notification channel configured", logger.Int("changes", len(changes)))
		return Report{Reason: "no channels"}
	}

	now := n.now()
	if !n.window.Contains(now) {
		n.logger.Info(ctx, "row changes needed but outside notification window",
			logger.Int("changes", len(changes)),
			logger.String("local", n.window.Local(now).Format("Monday 15:04")))
		for _, s := range n.senders {
			metrics.RecordNotification(s.Channel(), "outside_window")
		}
		return Report{Reason: "outside window"}
	}

	msg, err := Render(changes)
	if err != nil {
		n.logger.Error(ctx, "render notification failed", logger.Error(err))
		return Report{Reason: "render failed"}
	}
	rep := Report{Fingerprint: Fingerprint(changes)}
	day := n.window.Local(now).Format(dayLayout)

	for _, s := range n.senders {
		ch := s.Channel()
		sent, err := n.log.NotificationSent(ctx, ch, rep.Fingerprint, day)
		if err != nil {
			n.logger.Warn(ctx, "notification log lookup failed", logger.String("channel", ch), logger.Error(err))
		}
		if sent {
			metrics.RecordNotification(ch, "duplicate")
			rep.Duplicate = append(rep.Duplicate, ch)
			continue
		}
		if err := s.Send(ctx, msg); err != nil {
			metrics.RecordNotification(ch, "failed")
			n.logger.Error(ctx, "send notification failed", logger.String("channel", ch), logger.Error(err))
			rep.Failed = append(rep.Failed, ch)
			continue
		}
		metrics.RecordNotification(ch, "sent")
		rep.Sent = append(rep.Sent, ch)
		entry := repository.Notification{Channel: ch, Fingerprint: rep.Fingerprint, Day: day, Changes: len(changes), SentAt: now}
		if err := n.log.SaveNotification(ctx, entry); err != nil {
			n.logger.Warn(ctx, "record notification failed", logger.String("channel", ch), logger.Error(err))
		}
		n.logger.Info(ctx, "notification sent", logger.String("channel", ch), logger.Int("changes", len(changes)))
	}
	return rep
}
