package river

import (
	"context"
	"fmt"
	"html"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// WelcomeMailWorker sends the "school is ready" mail to the new owner.
type WelcomeMailWorker struct {
	river.WorkerDefaults[ConversionCompletedArgs]

	mailer     domain.Mailer
	appName    string
	baseDomain string
	logger     *zap.Logger
}

// Work sends one welcome mail. Delivery errors are returned so River retries.
func (w *WelcomeMailWorker) Work(ctx context.Context, job *river.Job[ConversionCompletedArgs]) error {
	args := job.Args
	url := "https://" + args.TenantDomain
	if w.baseDomain != "" {
		url += "." + w.baseDomain
	}

	msg := domain.MailMessage{
		ToName:  args.AdminName,
		ToEmail: args.AdminEmail,
		Subject: fmt.Sprintf("%s is ready on %s", args.SchoolName, w.appName),
		Text: fmt.Sprintf("Hello %s,\n\n%s has been set up. Sign in at %s with your existing password.\n",
			args.AdminName, args.SchoolName, url),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>%s has been set up. Sign in at <a href=\"%s\">%s</a> with your existing password.</p>",
			html.EscapeString(args.AdminName), html.EscapeString(args.SchoolName), url, url),
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending welcome mail: %w", err)
	}

	w.logger.Info("welcome mail sent",
		zap.String("conversion_id", args.ConversionID),
		zap.String("admin_id", args.AdminID),
		zap.String("tenant_id", args.TenantID),
		zap.Int64("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}
