package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/kpisync/internal/adapters/graph"
	"github.com/slack-go/slack"
)

// Channel names used in logs, metrics and the notification log.
const (
	ChannelEmail = "email"
	ChannelSlack = "slack"
)

// Sender delivers a rendered message over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, m Message) error
}

// Mailer sends mail through Graph.
type Mailer interface {
	SendMail(ctx context.Context, m graph.Mail) error
}

// MailSender posts the HTML body through Graph sendMail.
type MailSender struct {
	mailer Mailer
	from   string
	to     []string
}

// NewMailSender creates a mail sender. When to is empty the sender mailbox
// is also the recipient.
func NewMailSender(mailer Mailer, from string, to ...string) *MailSender {
	if len(to) == 0 && from != "" {
		to = []string{from}
	}
	return &MailSender{mailer: mailer, from: from, to: to}
}

// Channel implements Sender.
func (s *MailSender) Channel() string { return ChannelEmail }

// Send implements Sender.
func (s *MailSender) Send(ctx context.Context, m Message) error {
	if s.from == "" || len(s.to) == 0 {
		return ErrNoRecipients
	}
	return s.mailer.SendMail(ctx, graph.Mail{From: s.from, To: s.to, Subject: m.Subject, HTML: m.HTML})
}

// SlackSender posts the plain text body to an incoming webhook.
type SlackSender struct {
	webhook string
	client  *http.Client
}

// NewSlackSender creates a webhook sender. A nil client uses http.DefaultClient.
func NewSlackSender(webhook string, client *http.Client) *SlackSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackSender{webhook: webhook, client: client}
}

// Channel implements Sender.
func (s *SlackSender) Channel() string { return ChannelSlack }

// Send implements Sender.
func (s *SlackSender) Send(ctx context.Context, m Message) error {
	msg := &slack.WebhookMessage{Text: m.Text}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhook, s.client, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}
