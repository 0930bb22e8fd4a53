package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Compile-time check: Notifier implements domain.ConversionNotifier.
var _ domain.ConversionNotifier = (*Notifier)(nil)

// ConversionCompletedArgs carries a finished conversion to the welcome-mail
// worker. It is a snapshot taken at enqueue time so the worker never needs
// to query the central database.
type ConversionCompletedArgs struct {
	ConversionID string `json:"conversion_id"`
	AdminID      string `json:"admin_id"`
	AdminName    string `json:"admin_name"`
	AdminEmail   string `json:"admin_email"`
	TenantID     string `json:"tenant_id"`
	TenantDomain string `json:"tenant_domain"`
	SchoolName   string `json:"school_name"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ConversionCompletedArgs) Kind() string { return "conversion.completed" }

// InsertOpts retries mail delivery a bounded number of times.
func (ConversionCompletedArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Notifier implements domain.ConversionNotifier by enqueuing River jobs.
type Notifier struct {
	client *Client
}

// NewNotifier creates a notifier backed by the given River client.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// ConversionCompleted enqueues the welcome mail for a finished conversion.
func (n *Notifier) ConversionCompleted(ctx context.Context, event domain.ConversionCompletedEvent) error {
	_, err := n.client.Insert(ctx, ConversionCompletedArgs{
		ConversionID: event.ConversionID,
		AdminID:      event.AdminID,
		AdminName:    event.AdminName,
		AdminEmail:   event.AdminEmail,
		TenantID:     event.TenantID,
		TenantDomain: event.TenantDomain,
		SchoolName:   event.SchoolName,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing conversion notification: %w", err)
	}
	return nil
}
