package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// Compile-time check: LogMailer implements domain.Mailer.
var _ domain.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mail.log")}
}

func (m *LogMailer) Send(_ context.Context, msg domain.MailMessage) error {
	m.logger.Info("mail",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
