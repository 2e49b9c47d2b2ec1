package notify

import (
	"context"
	"os"

	"gopkg.in/gomail.v2"

	"zonewatch/internal/config"
	"zonewatch/internal/logger"
	"zonewatch/internal/metrics"
	"zonewatch/internal/model"
)

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Submitter schedules work off the frame loop. *worker.Pool satisfies it.
type Submitter interface {
	Submit(name string, run func(ctx context.Context)) bool
}

// Message is one alert email.
type Message struct {
	Subject        string
	Body           string
	AttachmentPath string
}

// Notifier emails alerts to a single recipient. Every message gets at most
// one delivery attempt; failures are logged and counted, never returned.
type Notifier struct {
	sender    Sender
	from      string
	to        string
	enabled   bool
	submitter Submitter
	logger    *logger.Logger
}

// New creates a Notifier from the email settings. A disabled config, or one
// without a recipient, yields a Notifier whose Notify is a no-op.
func New(cfg config.EmailConfig, submitter Submitter, logger *logger.Logger) *Notifier {
	n := &Notifier{
		from:      cfg.Sender,
		to:        cfg.Recipient,
		enabled:   cfg.Enabled && cfg.Recipient != "",
		submitter: submitter,
		logger:    logger,
	}
	if n.enabled {
		n.sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Sender, cfg.Password)
	}
	return n
}

// NewWithSender creates an enabled Notifier using sender for delivery.
func NewWithSender(sender Sender, from, to string, submitter Submitter, logger *logger.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		from:      from,
		to:        to,
		enabled:   to != "",
		submitter: submitter,
		logger:    logger,
	}
}

// Enabled reports whether messages are actually sent.
func (n *Notifier) Enabled() bool {
	return n.enabled
}

// Notify schedules delivery of msg and returns immediately.
func (n *Notifier) Notify(msg Message) {
	if !n.enabled {
		n.logger.Debug("Email disabled - skipping %q", msg.Subject)
		return
	}

	// A full queue drops the message; the pool logs and counts it.
	n.submitter.Submit("email", func(ctx context.Context) { n.deliver(msg) })
}

func (n *Notifier) deliver(msg Message) {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if msg.AttachmentPath != "" {
		if _, err := os.Stat(msg.AttachmentPath); err != nil {
			n.logger.Warning("Attachment %s unavailable, sending without it: %v", msg.AttachmentPath, err)
		} else {
			m.Attach(msg.AttachmentPath)
		}
	}

	if err := n.sender.DialAndSend(m); err != nil {
		err = &model.TransientIOError{Op: "send email", Path: n.to, Err: err}
		n.logger.Error("📧 %v", err)
		metrics.RecordDelivery("email", err)
		return
	}

	n.logger.Info("📧 Alert email sent to %s: %s", n.to, msg.Subject)
	metrics.RecordDelivery("email", nil)
}
