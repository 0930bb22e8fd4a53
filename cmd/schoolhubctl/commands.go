package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/neomorfeo/schoolhub/internal/app"
	"github.com/neomorfeo/schoolhub/internal/bootstrap"
	"github.com/neomorfeo/schoolhub/internal/domain"
)

type adminView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	TenantID    *string    `json:"tenant_id,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
}

func viewAdmin(a domain.Admin) adminView {
	return adminView{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Status:      string(a.Status),
		TenantID:    a.TenantID,
		ConvertedAt: a.ConvertedAt,
	}
}

type recordView struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	TenantID     *string    `json:"tenant_id,omitempty"`
	TenantDomain *string    `json:"tenant_domain,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RolledBackAt *time.Time `json:"rolled_back_at,omitempty"`
}

// --- admin ---

func adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage central admins",
	}
	cmd.AddCommand(adminCreateCommand(), adminGetCommand(), adminSetStatusCommand())
	return cmd
}

func adminCreateCommand() *cobra.Command {
	var in app.NewAdminInput

	c := &cobra.Command{
		Use:   "create",
		Short: "Provision a pending admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				admin, err := a.Admins.ProvisionAdmin(ctx, in)
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				return printJSON(cmd, viewAdmin(admin))
			})
		},
	}

	c.Flags().StringVar(&in.Name, "name", "", "full name")
	c.Flags().StringVar(&in.Email, "email", "", "login email")
	c.Flags().StringVar(&in.Password, "password", "", "initial password")
	c.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}

func adminGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ADMIN_ID",
		Short: "Show an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				admin, err := a.Admins.GetAdmin(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, viewAdmin(admin))
			})
		},
	}
}

func adminSetStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status ADMIN_ID STATUS",
		Short: "Move an admin to another status",
		Long:  "Statuses: pending, active, setting_up, converted, suspended. Transitions follow the admin lifecycle.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.AdminStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				admin, err := a.Conversions.UpdateAdminStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				return printJSON(cmd, viewAdmin(admin))
			})
		},
	}
}

// --- convert ---

func convertCommand() *cobra.Command {
	var (
		school  domain.SchoolData
		timeout time.Duration
	)

	c := &cobra.Command{
		Use:   "convert ADMIN_ID",
		Short: "Convert an admin into a school tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}

				result, err := a.Conversions.ConvertAdminToTenant(ctx, args[0], school)
				if err != nil {
					return fmt.Errorf("convert: %w", err)
				}
				return printJSON(cmd, map[string]any{
					"conversion_id":  result.ConversionID,
					"tenant_id":      result.Tenant.ID,
					"tenant_domain":  result.Tenant.Domain,
					"database":       result.Tenant.DatabaseName,
					"tenant_user_id": result.Identity.ID,
				})
			})
		},
	}

	f := c.Flags()
	f.StringVar(&school.Name, "school-name", "", "school name")
	f.StringVar(&school.Email, "school-email", "", "school contact email")
	f.StringVar(&school.Phone, "school-phone", "", "school phone")
	f.StringVar(&school.Address, "school-address", "", "school address")
	f.StringVar(&school.SubscriptionPlan, "plan", "", "subscription plan: basic, standard or premium")
	f.StringVar(&school.PreferredDomain, "domain", "", "preferred tenant domain label")
	f.DurationVar(&timeout, "timeout", 2*time.Minute, "abort the conversion after this long")
	_ = c.MarkFlagRequired("school-name")
	_ = c.MarkFlagRequired("school-email")
	return c
}

// --- conversion ---

func conversionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversion",
		Short: "Inspect and roll back conversions",
	}
	cmd.AddCommand(
		conversionCheckCommand(),
		conversionStatusCommand(),
		conversionListCommand(),
		conversionRollbackCommand(),
	)
	return cmd
}

func conversionCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check ADMIN_ID",
		Short: "Report whether an admin can be converted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				got, err := a.Conversions.ValidateConversionRequirements(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"eligible": got.Eligible, "reason": got.Reason})
			})
		},
	}
}

func conversionStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status ADMIN_ID",
		Short: "Show the latest conversion of an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				s, err := a.Conversions.GetConversionStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"status":        s.Status,
					"conversion_id": s.ConversionID,
					"tenant_domain": s.TenantDomain,
					"error_message": s.ErrorMessage,
					"completed_at":  s.CompletedAt,
				})
			})
		},
	}
}

func conversionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list ADMIN_ID",
		Short: "List every conversion attempt of an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				records, err := a.Conversions.ListConversions(ctx, args[0])
				if err != nil {
					return err
				}
				views := make([]recordView, len(records))
				for i, r := range records {
					views[i] = recordView{
						ID:           r.ID,
						Status:       string(r.Status),
						TenantID:     r.TenantID,
						TenantDomain: r.TenantDomain,
						ErrorMessage: r.ErrorMessage,
						CreatedAt:    r.CreatedAt,
						CompletedAt:  r.CompletedAt,
						RolledBackAt: r.RolledBackAt,
					}
				}
				return printJSON(cmd, views)
			})
		},
	}
}

func conversionRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback CONVERSION_ID",
		Short: "Drop the tenant of a conversion and reset its admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				ok := a.Conversions.RollbackConversion(ctx, args[0])
				if err := printJSON(cmd, map[string]bool{"rolled_back": ok}); err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("conversion %s was not rolled back", args[0])
				}
				return nil
			})
		},
	}
}

// --- sweep ---

func sweepCommand() *cobra.Command {
	var olderThan time.Duration

	c := &cobra.Command{
		Use:   "sweep",
		Short: "Drop databases of failed or stuck tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *bootstrap.App) error {
				report, err := a.Sweeper.Sweep(ctx, olderThan)
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				return printJSON(cmd, map[string]int{
					"scanned": report.Scanned,
					"reaped":  report.Reaped,
					"failed":  report.Failed,
				})
			})
		},
	}

	c.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "only reap tenants untouched for this long")
	return c
}
