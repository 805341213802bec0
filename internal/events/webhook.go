package events

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookPublisher POSTs each event as JSON to a fixed URL.
type WebhookPublisher struct {
	httpClient *resty.Client
	url        string
}

func NewWebhookPublisher(url string, timeout time.Duration) *WebhookPublisher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookPublisher{httpClient: client, url: url}
}

func (p *WebhookPublisher) Publish(ctx context.Context, ev Event) error {
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", ev.Type).
		SetBody(ev).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
