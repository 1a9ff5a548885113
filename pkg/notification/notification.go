// Package notification fans a notification out to delivery channels.
//
// A notification names its channels and implements one interface per
// channel:
//
//	type Welcome struct{ Name string }
//	func (Welcome) Via() []string { return []string{notification.ChannelMail} }
//	func (w Welcome) ToMail() notification.MailData {
//	    return notification.MailData{Subject: "Welcome", Text: "Hi " + w.Name}
//	}
//
//	err := dispatcher.Send(ctx, "user@example.com", Welcome{Name: "Ana"})
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/mail"
)

const (
	ChannelMail    = "mail"
	ChannelSlack   = "slack"
	ChannelWebhook = "webhook"
)

// MailData is the mail rendering of a notification.
type MailData struct {
	To      string // overrides the notifiable address if set
	Subject string
	HTML    string
	Text    string
}

// SlackData is an incoming-webhook payload.
type SlackData struct {
	WebhookURL  string // overrides the dispatcher default
	Text        string
	Attachments []SlackAttachment
}

// SlackAttachment is a single Slack attachment block.
type SlackAttachment struct {
	Color  string `json:"color,omitempty"` // good | warning | danger
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
}

// WebhookData is an arbitrary JSON POST.
type WebhookData struct {
	URL     string // overrides the dispatcher default
	Payload any
	Headers map[string]string
}

// Notification lists the channels it should be delivered on.
type Notification interface {
	Via() []string
}

type Mailable interface {
	ToMail() MailData
}

type Slackable interface {
	ToSlack() SlackData
}

type Webhookable interface {
	ToWebhook() WebhookData
}

// Dispatcher delivers notifications. The zero value is not usable; build
// one with NewDispatcher.
type Dispatcher struct {
	mailer       mail.Sender
	slackWebhook string
	webhookURL   string
	client       *http.Client
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSlackWebhook sets the default incoming webhook URL.
func WithSlackWebhook(url string) Option { return func(d *Dispatcher) { d.slackWebhook = url } }

// WithWebhookURL sets the default target of the webhook channel.
func WithWebhookURL(url string) Option { return func(d *Dispatcher) { d.webhookURL = url } }

// WithHTTPClient replaces the client used for slack and webhook channels.
func WithHTTPClient(c *http.Client) Option { return func(d *Dispatcher) { d.client = c } }

// NewDispatcher returns a Dispatcher that sends mail through mailer.
func NewDispatcher(mailer mail.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mailer: mailer,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SlackEnabled reports whether a default slack webhook is configured.
func (d *Dispatcher) SlackEnabled() bool { return d.slackWebhook != "" }

// WebhookEnabled reports whether a default webhook URL is configured.
func (d *Dispatcher) WebhookEnabled() bool { return d.webhookURL != "" }

// Send delivers n on every channel it names. Channel failures are logged
// and joined; one failing channel does not stop the others.
func (d *Dispatcher) Send(ctx context.Context, address string, n Notification) error {
	var errs []error
	for _, channel := range n.Via() {
		if err := d.dispatch(ctx, address, channel, n); err != nil {
			logger.WithCtx(ctx).Error("notification: channel failed", "channel", channel, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatch(ctx context.Context, address, channel string, n Notification) error {
	switch channel {
	case ChannelMail:
		m, ok := n.(Mailable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Mailable", n)
		}
		return d.sendMail(ctx, address, m.ToMail())

	case ChannelSlack:
		s, ok := n.(Slackable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Slackable", n)
		}
		return d.sendSlack(ctx, s.ToSlack())

	case ChannelWebhook:
		wh, ok := n.(Webhookable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Webhookable", n)
		}
		return d.sendWebhook(ctx, wh.ToWebhook())

	default:
		return fmt.Errorf("notification: unknown channel %q", channel)
	}
}

func (d *Dispatcher) sendMail(ctx context.Context, address string, data MailData) error {
	if d.mailer == nil {
		return fmt.Errorf("notification: no mailer configured")
	}

	to := data.To
	if to == "" {
		to = address
	}

	msg := mail.To(to).Subject(data.Subject)
	if data.HTML != "" {
		msg.HTML(data.HTML)
	} else {
		msg.Text(data.Text)
	}
	return d.mailer.Send(ctx, msg)
}

type slackPayload struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

func (d *Dispatcher) sendSlack(ctx context.Context, data SlackData) error {
	url := data.WebhookURL
	if url == "" {
		url = d.slackWebhook
	}
	if url == "" {
		return fmt.Errorf("notification: slack webhook URL not configured")
	}

	return d.postJSON(ctx, "slack", url, slackPayload{Text: data.Text, Attachments: data.Attachments}, nil)
}

func (d *Dispatcher) sendWebhook(ctx context.Context, data WebhookData) error {
	url := data.URL
	if url == "" {
		url = d.webhookURL
	}
	if url == "" {
		return fmt.Errorf("notification: webhook URL not configured")
	}
	return d.postJSON(ctx, "webhook", url, data.Payload, data.Headers)
}

func (d *Dispatcher) postJSON(ctx context.Context, channel, url string, payload any, headers map[string]string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notification: %s marshal: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notification: %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification: %s send: %w", channel, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification: %s returned HTTP %d", channel, resp.StatusCode)
	}
	return nil
}
