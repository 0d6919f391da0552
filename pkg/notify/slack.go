package notify

import (
	"context"
	"fmt"

	goslack "github.com/slack-go/slack"
)

// SlackProvider posts merchant alerts to a Slack incoming webhook. Unlike
// the teacher's bot-token Notifier (which posts as an app with full
// Web API access), a merchant-configured incoming webhook is scoped to one
// channel and needs no bot installed in the merchant's workspace — the
// right shape for a tenant-supplied notification URL.
type SlackProvider struct {
	WebhookURL string
}

func NewSlackProvider(webhookURL string) *SlackProvider {
	return &SlackProvider{WebhookURL: webhookURL}
}

func (p *SlackProvider) Name() string { return "slack" }

func (p *SlackProvider) PostAlert(ctx context.Context, alert Alert) error {
	if p.WebhookURL == "" {
		return nil
	}

	text := fmt.Sprintf("%s *%s*\n%s", SeverityEmoji(alert.Severity), alert.Title, alert.Message)
	msg := &goslack.WebhookMessage{Text: text}

	if err := goslack.PostWebhookContext(ctx, p.WebhookURL, msg); err != nil {
		return fmt.Errorf("notify: posting slack webhook: %w", err)
	}
	return nil
}

var _ Provider = (*SlackProvider)(nil)
