package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

const (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// Message is a plain-text email to a single recipient.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
}

// Mailer delivers email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid mailer when an API key is configured, otherwise a mailer that only logs.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendGridAPIKey == "" {
		return &LogMailer{logger: logger}
	}
	return &SendGridMailer{
		key:    cfg.SendGridAPIKey,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		prefix: "[" + cfg.FromName + "] ",
		logger: logger,
	}
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	key    string
	from   *sgmail.Email
	prefix string
	logger *zap.Logger
}

func (m *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.prefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Body))
	return v3
}

// Send posts the message. Responses with a 4xx or 5xx status are returned as errors so the caller can retry.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return fmt.Errorf("mail recipient address is empty")
	}
	req := sendgrid.GetRequest(m.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send mail: status %d: %s", res.StatusCode, res.Body)
	}
	m.logger.Debug("mail sent", zap.String("to", msg.ToAddress), zap.String("subject", msg.Subject))
	return nil
}

// LogMailer records messages in the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail delivery disabled", zap.String("to", msg.ToAddress), zap.String("subject", msg.Subject))
	return nil
}
