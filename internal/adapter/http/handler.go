package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/app"
	"github.com/neomorfeo/schoolhub/internal/domain"
)

const timeLayout = time.RFC3339

// AdminResponse is the API representation of a central admin.
type AdminResponse struct {
	ID          string  `json:"id" doc:"Unique identifier"`
	Name        string  `json:"name" doc:"Full name"`
	Email       string  `json:"email" doc:"Login email"`
	Phone       string  `json:"phone,omitempty" doc:"Phone number"`
	Status      string  `json:"status" doc:"Lifecycle state"`
	TenantID    *string `json:"tenant_id,omitempty" doc:"Tenant owned by the admin once converted"`
	ConvertedAt *string `json:"converted_at,omitempty" doc:"Conversion timestamp (RFC 3339)"`
	CreatedAt   string  `json:"created_at" doc:"Creation timestamp (RFC 3339)"`
	UpdatedAt   string  `json:"updated_at" doc:"Last update timestamp (RFC 3339)"`
}

func toAdminResponse(a domain.Admin) AdminResponse {
	return AdminResponse{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Phone:       a.Phone,
		Status:      string(a.Status),
		TenantID:    a.TenantID,
		ConvertedAt: formatTimePtr(a.ConvertedAt),
		CreatedAt:   a.CreatedAt.Format(timeLayout),
		UpdatedAt:   a.UpdatedAt.Format(timeLayout),
	}
}

// TenantAccess tells the new owner where the school lives.
type TenantAccess struct {
	ID       string `json:"id" doc:"Tenant ID"`
	Domain   string `json:"domain" doc:"Tenant domain label"`
	Database string `json:"database" doc:"Backing database name"`
}

// ConversionRecordResponse is one ledger entry.
type ConversionRecordResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	TenantID     *string `json:"tenant_id,omitempty"`
	TenantDomain *string `json:"tenant_domain,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  *string `json:"completed_at,omitempty"`
	RolledBackAt *string `json:"rolled_back_at,omitempty"`
}

func toRecordResponse(r domain.ConversionRecord) ConversionRecordResponse {
	return ConversionRecordResponse{
		ID:           r.ID,
		Status:       string(r.Status),
		TenantID:     r.TenantID,
		TenantDomain: r.TenantDomain,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt.Format(timeLayout),
		CompletedAt:  formatTimePtr(r.CompletedAt),
		RolledBackAt: formatTimePtr(r.RolledBackAt),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

// --- Admins ---

type CreateAdminInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1" maxLength:"255" doc:"Full name"`
		Email    string `json:"email" format:"email" maxLength:"255" doc:"Login email"`
		Password string `json:"password" minLength:"8" maxLength:"72" doc:"Initial password"`
		Phone    string `json:"phone,omitempty" maxLength:"32" doc:"Phone number"`
	}
}

type AdminIDInput struct {
	ID string `path:"id" doc:"Admin ID"`
}

type AdminOutput struct {
	Body AdminResponse
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" doc:"Login email"`
		Password string `json:"password" doc:"Password"`
	}
}

type UpdateStatusInput struct {
	ID   string `path:"id" doc:"Admin ID"`
	Body struct {
		Status string `json:"status" doc:"Target status" enum:"pending,active,setting_up,converted,suspended"`
	}
}

// --- Conversions ---

type EligibilityOutput struct {
	Body struct {
		Eligible bool   `json:"eligible"`
		Reason   string `json:"reason,omitempty"`
	}
}

type ConvertInput struct {
	ID   string `path:"id" doc:"Admin ID"`
	Body struct {
		SchoolName       string `json:"school_name" minLength:"1" maxLength:"255"`
		SchoolEmail      string `json:"school_email" format:"email"`
		SchoolPhone      string `json:"school_phone,omitempty" maxLength:"32"`
		SchoolAddress    string `json:"school_address,omitempty" maxLength:"500"`
		SubscriptionPlan string `json:"subscription_plan,omitempty" enum:"basic,standard,premium"`
		PreferredDomain  string `json:"preferred_domain,omitempty" maxLength:"63"`
	}
}

type ConvertOutput struct {
	Body struct {
		Success      bool         `json:"success"`
		Tenant       TenantAccess `json:"tenant"`
		TenantUserID int64        `json:"tenant_user_id"`
		ConversionID string       `json:"conversion_id"`
	}
}

type ConversionStatusOutput struct {
	Body struct {
		Status       string  `json:"status" enum:"not_started,initiated,completed,failed"`
		ConversionID string  `json:"conversion_id,omitempty"`
		TenantDomain string  `json:"tenant_domain,omitempty"`
		ErrorMessage string  `json:"error_message,omitempty"`
		CompletedAt  *string `json:"completed_at,omitempty"`
	}
}

type ConversionHistoryOutput struct {
	Body []ConversionRecordResponse
}

type RollbackInput struct {
	ID string `path:"id" doc:"Conversion ID"`
}

type RollbackOutput struct {
	Body struct {
		RolledBack bool `json:"rolled_back"`
	}
}

// Services are the application services exposed over HTTP.
type Services struct {
	Admins      *app.AdminService
	Conversions *app.ConversionService

	// ConversionTimeout bounds ConvertAdminToTenant. Zero means no limit.
	ConversionTimeout time.Duration
}

// Register adds all admin and conversion routes to the Huma API.
func Register(api huma.API, svc Services, logger *zap.Logger) {
	fail := func(ctx context.Context, err error) error {
		return toHumaError(ctx, logger, err)
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-admin",
		Method:        http.MethodPost,
		Path:          "/api/v1/admins",
		Summary:       "Provision a pending admin",
		Tags:          []string{"Admins"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateAdminInput) (*AdminOutput, error) {
		admin, err := svc.Admins.ProvisionAdmin(ctx, app.NewAdminInput{
			Name:     input.Body.Name,
			Email:    input.Body.Email,
			Password: input.Body.Password,
			Phone:    input.Body.Phone,
		})
		if err != nil {
			return nil, fail(ctx, err)
		}
		return &AdminOutput{Body: toAdminResponse(admin)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-admin",
		Method:      http.MethodGet,
		Path:        "/api/v1/admins/{id}",
		Summary:     "Get an admin by ID",
		Tags:        []string{"Admins"},
	}, func(ctx context.Context, input *AdminIDInput) (*AdminOutput, error) {
		admin, err := svc.Admins.GetAdmin(ctx, input.ID)
		if err != nil {
			return nil, fail(ctx, err)
		}
		return &AdminOutput{Body: toAdminResponse(admin)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Verify admin credentials",
		Description: "The first successful login of a pending admin activates it.",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*AdminOutput, error) {
		admin, err := svc.Admins.Authenticate(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, fail(ctx, err)
		}
		return &AdminOutput{Body: toAdminResponse(admin)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-admin-status",
		Method:      http.MethodPatch,
		Path:        "/api/v1/admins/{id}/status",
		Summary:     "Change an admin's status",
		Tags:        []string{"Admins"},
	}, func(ctx context.Context, input *UpdateStatusInput) (*AdminOutput, error) {
		admin, err := svc.Conversions.UpdateAdminStatus(ctx, input.ID, domain.AdminStatus(input.Body.Status))
		if err != nil {
			return nil, fail(ctx, err)
		}
		return &AdminOutput{Body: toAdminResponse(admin)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-conversion-eligibility",
		Method:      http.MethodGet,
		Path:        "/api/v1/admins/{id}/conversion/eligibility",
		Summary:     "Check whether an admin can be converted",
		Tags:        []string{"Conversions"},
	}, func(ctx context.Context, input *AdminIDInput) (*EligibilityOutput, error) {
		got, err := svc.Conversions.ValidateConversionRequirements(ctx, input.ID)
		if err != nil {
			return nil, fail(ctx, err)
		}
		out := &EligibilityOutput{}
		out.Body.Eligible = got.Eligible
		out.Body.Reason = got.Reason
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "convert-admin",
		Method:        http.MethodPost,
		Path:          "/api/v1/admins/{id}/conversion",
		Summary:       "Convert an admin into a school tenant",
		Tags:          []string{"Conversions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *ConvertInput) (*ConvertOutput, error) {
		if svc.ConversionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, svc.ConversionTimeout)
			defer cancel()
		}

		result, err := svc.Conversions.ConvertAdminToTenant(ctx, input.ID, domain.SchoolData{
			Name:             input.Body.SchoolName,
			Email:            input.Body.SchoolEmail,
			Phone:            input.Body.SchoolPhone,
			Address:          input.Body.SchoolAddress,
			SubscriptionPlan: input.Body.SubscriptionPlan,
			PreferredDomain:  input.Body.PreferredDomain,
		})
		if err != nil {
			return nil, fail(ctx, err)
		}

		out := &ConvertOutput{}
		out.Body.Success = true
		out.Body.Tenant = TenantAccess{
			ID:       result.Tenant.ID,
			Domain:   result.Tenant.Domain,
			Database: result.Tenant.DatabaseName,
		}
		out.Body.TenantUserID = result.Identity.ID
		out.Body.ConversionID = result.ConversionID
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-conversion-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/admins/{id}/conversion",
		Summary:     "Get the latest conversion of an admin",
		Tags:        []string{"Conversions"},
	}, func(ctx context.Context, input *AdminIDInput) (*ConversionStatusOutput, error) {
		summary, err := svc.Conversions.GetConversionStatus(ctx, input.ID)
		if err != nil {
			return nil, fail(ctx, err)
		}
		out := &ConversionStatusOutput{}
		out.Body.Status = string(summary.Status)
		out.Body.ConversionID = summary.ConversionID
		out.Body.TenantDomain = summary.TenantDomain
		out.Body.ErrorMessage = summary.ErrorMessage
		out.Body.CompletedAt = formatTimePtr(summary.CompletedAt)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conversions",
		Method:      http.MethodGet,
		Path:        "/api/v1/admins/{id}/conversions",
		Summary:     "List every conversion attempt of an admin",
		Tags:        []string{"Conversions"},
	}, func(ctx context.Context, input *AdminIDInput) (*ConversionHistoryOutput, error) {
		records, err := svc.Conversions.ListConversions(ctx, input.ID)
		if err != nil {
			return nil, fail(ctx, err)
		}
		resp := make([]ConversionRecordResponse, len(records))
		for i, r := range records {
			resp[i] = toRecordResponse(r)
		}
		return &ConversionHistoryOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rollback-conversion",
		Method:      http.MethodPost,
		Path:        "/api/v1/conversions/{id}/rollback",
		Summary:     "Roll back a finished conversion",
		Description: "Drops the tenant database and resets the admin. Returns rolled_back=false when the conversion cannot be rolled back.",
		Tags:        []string{"Conversions"},
	}, func(ctx context.Context, input *RollbackInput) (*RollbackOutput, error) {
		out := &RollbackOutput{}
		out.Body.RolledBack = svc.Conversions.RollbackConversion(ctx, input.ID)
		return out, nil
	})
}
