// Package mail delivers outbound email through SendGrid or the log.
package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// SendGridConfig configures SendGridMailer. Host defaults to the public API.
type SendGridConfig struct {
	APIKey    string
	AppName   string
	FromEmail string
	Host      string
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

// Compile-time check: SendGridMailer implements domain.Mailer.
var _ domain.Mailer = (*SendGridMailer)(nil)

func NewSendGridMailer(cfg SendGridConfig, logger *zap.Logger) *SendGridMailer {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	return &SendGridMailer{
		key:        cfg.APIKey,
		host:       host,
		from:       sgmail.NewEmail(cfg.AppName, cfg.FromEmail),
		subjPrefix: "[" + cfg.AppName + "] ",
		logger:     logger.Named("mail.sendgrid"),
	}
}

func (m *SendGridMailer) prepare(msg domain.MailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)

	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return v3
}

// Send posts one message. Non-2xx responses are errors.
func (m *SendGridMailer) Send(ctx context.Context, msg domain.MailMessage) error {
	req := sendgrid.GetRequest(m.key, endpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("calling sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}

	m.logger.Debug("mail sent", zap.String("to", msg.ToEmail), zap.Int("status", res.StatusCode))
	return nil
}
