package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// WebhookConfig holds configuration for the admin-notification webhook.
type WebhookConfig struct {
	// URL is the endpoint of the platform's send-admin-notification function.
	URL string

	// Token is passed as a bearer token when set.
	Token string

	// RequestTimeout bounds a single HTTP call. Default 10s.
	RequestTimeout time.Duration

	// MaxPerSecond paces outbound calls. Default 5.
	MaxPerSecond float64
}

// Validate validates the webhook configuration.
func (c *WebhookConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(c.URL, "https://") && !strings.HasPrefix(c.URL, "http://") {
		return fmt.Errorf("webhook URL must be an HTTP(S) URL")
	}
	return nil
}

// WebhookNotifier delivers notifications to the admin-notification function
// over HTTP. The downstream function owns channel fan-out and reports
// per-recipient outcomes in its response.
type WebhookNotifier struct {
	config     WebhookConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.MaxPerSecond <= 0 {
		config.MaxPerSecond = 5
	}

	return &WebhookNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.MaxPerSecond), 1),
	}, nil
}

// Name returns "webhook".
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// webhookResponse is the downstream function's reply.
type webhookResponse struct {
	Results []struct {
		RecipientID string `json:"recipient_id"`
		Success     bool   `json:"success"`
		Error       string `json:"error,omitempty"`
	} `json:"results"`
}

// Send posts the notification and maps the response to per-recipient results.
func (w *WebhookNotifier) Send(ctx context.Context, n *Notification) ([]RecipientResult, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait: %w", err)
	}

	jsonData, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.Token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, truncate(string(body), 256))
	}

	// When the downstream reports per-recipient outcomes, surface them;
	// otherwise a 2xx means everyone listed was accepted.
	var parsed webhookResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Results) > 0 {
		results := make([]RecipientResult, 0, len(parsed.Results))
		for _, r := range parsed.Results {
			rr := RecipientResult{Recipient: r.RecipientID}
			if !r.Success {
				msg := r.Error
				if msg == "" {
					msg = "delivery failed"
				}
				rr.Err = fmt.Errorf("%s", msg)
			}
			results = append(results, rr)
		}
		return results, nil
	}

	return acceptedResults(n.Recipients), nil
}

// Close is a no-op for the webhook notifier.
func (w *WebhookNotifier) Close() error {
	return nil
}

func acceptedResults(recipients []string) []RecipientResult {
	if len(recipients) == 0 {
		// Recipient-less notifications (admin broadcast) count as one success.
		return []RecipientResult{{}}
	}
	results := make([]RecipientResult, len(recipients))
	for i, r := range recipients {
		results[i] = RecipientResult{Recipient: r}
	}
	return results
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
