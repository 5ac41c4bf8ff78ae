package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
)

const (
	ChannelLog  = "log"
	ChannelSMTP = "smtp"
)

// Channel delivers a rendered message.
type Channel interface {
	Deliver(ctx context.Context, m Message) error
}

// LogChannel writes the message to the log after a simulated delivery delay.
type LogChannel struct {
	logger *zap.Logger
	delay  time.Duration
}

func NewLogChannel(logger *zap.Logger, delay time.Duration) *LogChannel {
	return &LogChannel{logger: logger, delay: delay}
}

func (c *LogChannel) Deliver(ctx context.Context, m Message) error {
	logger.Info(ctx, c.logger, "email",
		zap.Int64("user_id", m.UserID),
		zap.String("to", m.Recipient),
		zap.String("subject", m.Subject),
		zap.String("message", m.Body),
	)

	if c.delay > 0 {
		t := time.NewTimer(c.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	logger.Info(ctx, c.logger, "email sent", zap.Int64("user_id", m.UserID))
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	// RecipientTemplate builds an address from a user id when the message has none.
	RecipientTemplate string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPChannel sends plain text mail through an SMTP relay.
type SMTPChannel struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewSMTPChannel(cfg SMTPConfig, logger *zap.Logger) *SMTPChannel {
	return &SMTPChannel{
		cfg:      cfg,
		sendMail: smtp.SendMail,
		logger:   logger,
		tracer:   otel.Tracer("notification/smtp"),
	}
}

func (c *SMTPChannel) recipient(m Message) string {
	if m.Recipient != "" {
		return m.Recipient
	}
	return fmt.Sprintf(c.cfg.RecipientTemplate, m.UserID)
}

func (c *SMTPChannel) Deliver(ctx context.Context, m Message) error {
	ctx, span := c.tracer.Start(ctx, "smtp.Deliver")
	defer span.End()

	to := c.recipient(m)
	span.SetAttributes(attribute.String("to.email", to))

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-version: 1.0;\r\nContent-Type: text/plain; charset=\"UTF-8\";\r\n\r\n")
	b.WriteString(m.Body)

	var auth smtp.Auth
	if c.cfg.User != "" {
		auth = smtp.PlainAuth("", c.cfg.User, c.cfg.Password, c.cfg.Host)
	}

	addr := c.cfg.Host + ":" + c.cfg.Port
	if err := c.sendMail(addr, auth, c.cfg.From, []string{to}, []byte(b.String())); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	logger.Info(ctx, c.logger, "email sent", zap.String("to", to), zap.String("subject", m.Subject))
	return nil
}
