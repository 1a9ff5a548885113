// Package notifications connects order events to the background queue and
// the delivery channels.
package notifications

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/orderly/pkg/notification"
	"github.com/shashiranjanraj/orderly/pkg/queue"
)

// SendMailJobName is the queue registry key of SendMailJob.
const SendMailJobName = "send_mail"

// SendMailJob delivers one message through the notification dispatcher.
type SendMailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`

	dispatcher *notification.Dispatcher
}

func (*SendMailJob) Name() string { return SendMailJobName }

func (j *SendMailJob) Handle(ctx context.Context) error {
	if j.dispatcher == nil {
		return errors.New("notifications: send_mail job has no dispatcher")
	}
	return j.dispatcher.Send(ctx, j.To, &MailNotice{
		To:      j.To,
		Subject: j.Subject,
		Body:    j.Body,
		Slack:   j.dispatcher.SlackEnabled(),
		Webhook: j.dispatcher.WebhookEnabled(),
	})
}

// RegisterJobs teaches q how to decode and run this package's jobs.
func RegisterJobs(q *queue.Manager, d *notification.Dispatcher) {
	q.Register(SendMailJobName, func() queue.Job { return &SendMailJob{dispatcher: d} })
}

// MailNotice is an email, mirrored to the store's slack channel and store
// webhook when those are configured.
type MailNotice struct {
	To      string
	Subject string
	Body    string
	Slack   bool
	Webhook bool
}

func (n *MailNotice) Via() []string {
	via := []string{notification.ChannelMail}
	if n.Slack {
		via = append(via, notification.ChannelSlack)
	}
	if n.Webhook {
		via = append(via, notification.ChannelWebhook)
	}
	return via
}

func (n *MailNotice) ToMail() notification.MailData {
	return notification.MailData{Subject: n.Subject, Text: n.Body}
}

func (n *MailNotice) ToSlack() notification.SlackData {
	return notification.SlackData{Text: n.Subject + ": " + n.Body}
}

// WebhookEvent is the JSON body posted to the store webhook.
type WebhookEvent struct {
	Event   string `json:"event"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (n *MailNotice) ToWebhook() notification.WebhookData {
	return notification.WebhookData{
		Payload: WebhookEvent{Event: "mail.sent", To: n.To, Subject: n.Subject, Body: n.Body},
		Headers: map[string]string{"X-Orderly-Event": "mail.sent"},
	}
}
