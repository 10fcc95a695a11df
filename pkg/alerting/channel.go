package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/slack-go/slack"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// Channel delivers one Notification over a single transport. Channels
// are stateless with respect to each other: a failure in one channel's
// Send must never affect another channel's delivery of the same
// notification.
type Channel interface {
	Name() contracts.NotificationChannel
	Send(ctx context.Context, notification contracts.Notification) (bool, error)
	ValidateConfig() bool
}

// ConsoleChannel hands each notification body to an output callback
// (a stdout printer in production), primarily for local development and
// tests.
type ConsoleChannel struct {
	Out func(string)
}

// NewConsoleChannel builds a ConsoleChannel writing through out.
func NewConsoleChannel(out func(string)) *ConsoleChannel {
	return &ConsoleChannel{Out: out}
}

func (c *ConsoleChannel) Name() contracts.NotificationChannel { return contracts.ChannelConsole }

func (c *ConsoleChannel) Send(_ context.Context, notification contracts.Notification) (bool, error) {
	if c.Out != nil {
		c.Out(notification.Body)
	}
	return true, nil
}

func (c *ConsoleChannel) ValidateConfig() bool { return true }

// FileChannel appends each notification to an append-only daily log,
// notifications_{YYYYMMDD}.log, one line per event:
// [iso8601] [PRIORITY] {subject}: {content}. Directory and file-write
// failures are wrapped as RetryableError so the delivery worker retries
// rather than dropping the notification.
type FileChannel struct {
	Directory string
}

// NewFileChannel builds a FileChannel rooted at dir.
func NewFileChannel(dir string) *FileChannel {
	return &FileChannel{Directory: dir}
}

func (c *FileChannel) Name() contracts.NotificationChannel { return contracts.ChannelFile }

func (c *FileChannel) Send(_ context.Context, notification contracts.Notification) (bool, error) {
	if err := os.MkdirAll(c.Directory, 0o755); err != nil {
		return false, sharederrors.Retryable(sharederrors.FailedTo("create notification output directory", err))
	}
	now := time.Now().UTC()
	path := filepath.Join(c.Directory, "notifications_"+now.Format("20060102")+".log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, sharederrors.Retryable(sharederrors.FailedTo("open notification log", err))
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] [%s] %s: %s\n",
		now.Format(time.RFC3339), priorityOrDefault(notification.Priority),
		notification.Subject, notification.Body)
	if _, err := f.WriteString(line); err != nil {
		return false, sharederrors.Retryable(sharederrors.FailedTo("append notification log entry", err))
	}
	return true, nil
}

func priorityOrDefault(priority string) string {
	if priority == "" {
		return string(contracts.SeverityInfo)
	}
	return priority
}

func (c *FileChannel) ValidateConfig() bool { return c.Directory != "" }

// WebhookChannel POSTs (or PUTs) a generic JSON payload to a fixed URL.
type WebhookChannel struct {
	Client *http.Client
	URL    string
	Method string
}

// NewWebhookChannel builds a WebhookChannel. method defaults to POST.
func NewWebhookChannel(client *http.Client, url, method string) *WebhookChannel {
	if method == "" {
		method = http.MethodPost
	}
	return &WebhookChannel{Client: client, URL: url, Method: method}
}

func (c *WebhookChannel) Name() contracts.NotificationChannel { return contracts.ChannelWebhook }

func (c *WebhookChannel) Send(ctx context.Context, notification contracts.Notification) (bool, error) {
	payload, err := json.Marshal(map[string]string{
		"id":        notification.ID,
		"alert_id":  notification.AlertID,
		"recipient": notification.Recipient,
		"body":      notification.Body,
	})
	if err != nil {
		return false, sharederrors.FailedTo("marshal webhook payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, c.Method, c.URL, bytes.NewReader(payload))
	if err != nil {
		return false, sharederrors.FailedTo("build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, sharederrors.Retryable(sharederrors.NetworkError("post webhook", c.URL, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return false, sharederrors.Retryable(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return true, nil
}

func (c *WebhookChannel) ValidateConfig() bool { return c.URL != "" && c.Client != nil }

// SlackChannel posts a notification as a Slack webhook message, via
// slack-go/slack.
type SlackChannel struct {
	Client     *http.Client
	WebhookURL string
	Channel    string
}

// NewSlackChannel builds a SlackChannel posting to webhookURL.
func NewSlackChannel(client *http.Client, webhookURL, slackChannel string) *SlackChannel {
	return &SlackChannel{Client: client, WebhookURL: webhookURL, Channel: slackChannel}
}

func (c *SlackChannel) Name() contracts.NotificationChannel { return contracts.ChannelSlack }

func (c *SlackChannel) Send(ctx context.Context, notification contracts.Notification) (bool, error) {
	msg := &slack.WebhookMessage{
		Channel: c.Channel,
		Text:    notification.Body,
	}
	if err := postSlackWebhook(ctx, c.Client, c.WebhookURL, msg); err != nil {
		return false, sharederrors.Retryable(sharederrors.NetworkError("post slack webhook", c.WebhookURL, err))
	}
	return true, nil
}

func (c *SlackChannel) ValidateConfig() bool { return c.WebhookURL != "" && c.Client != nil }

// postSlackWebhook is a small seam over slack.PostWebhookCustomHTTPContext
// so tests can point it at an httptest.Server without a real Slack
// endpoint.
var postSlackWebhook = func(ctx context.Context, client *http.Client, url string, msg *slack.WebhookMessage) error {
	return slack.PostWebhookCustomHTTPContext(ctx, url, client, msg)
}

// EmailChannel renders a notification as an email and hands it to Send.
// SendFunc carries the actual transport (SMTP, SES, ...) — it is left as
// an injected dependency rather than a concrete client so deployments
// can supply whatever mail transport their environment already uses.
type EmailChannel struct {
	From     string
	SendFunc func(ctx context.Context, to, subject, body string) error
}

// NewEmailChannel builds an EmailChannel. send implements the actual
// transport (SMTP, SES, ...).
func NewEmailChannel(from string, send func(ctx context.Context, to, subject, body string) error) *EmailChannel {
	return &EmailChannel{From: from, SendFunc: send}
}

func (c *EmailChannel) Name() contracts.NotificationChannel { return contracts.ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, notification contracts.Notification) (bool, error) {
	if c.SendFunc == nil {
		return false, sharederrors.ConfigurationError("email.send_func", "no email transport configured")
	}
	subject := fmt.Sprintf("[AAT] notification %s", notification.ID)
	if err := c.SendFunc(ctx, notification.Recipient, subject, notification.Body); err != nil {
		return false, sharederrors.Retryable(sharederrors.NetworkError("send email", notification.Recipient, err))
	}
	return true, nil
}

func (c *EmailChannel) ValidateConfig() bool { return c.From != "" && c.SendFunc != nil }
