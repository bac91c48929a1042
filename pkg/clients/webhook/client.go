// Package webhook posts notification messages to an external webhook
// endpoint, the engine's only outbound notification channel.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pantrywatch/pantrywatch/internal/config"
	"github.com/pantrywatch/pantrywatch/internal/service/notify"
)

// Client is a resty-backed notify.Sink.
type Client struct {
	httpClient *resty.Client
	url        string
}

// apiError mirrors the error payload a webhook receiver may return.
type apiError struct {
	Error string `json:"error"`
}

// NewClient builds a webhook sink from the provided configuration values.
func NewClient(cfg config.NotifyConfig) *Client {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	if cfg.AuthToken != "" {
		restyClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AuthToken))
	}

	return &Client{
		httpClient: restyClient,
		url:        cfg.WebhookURL,
	}
}

// Deliver posts one message to the configured endpoint.
func (c *Client) Deliver(ctx context.Context, msg notify.Message) error {
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		SetError(apiErr).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("webhook error: status=%d, message=%s", resp.StatusCode(), apiErr.Error)
	}

	return nil
}
