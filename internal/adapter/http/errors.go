package http

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
	"github.com/neomorfeo/schoolhub/internal/logging"
)

const codeTimeout = "timeout"

// toHumaError translates domain errors to Huma HTTP errors. The machine code
// is carried as an error detail with location "code".
func toHumaError(ctx context.Context, logger *zap.Logger, err error) error {
	code := domain.ErrorCode(err)
	detail := &huma.ErrorDetail{Location: "code", Value: code}

	switch code {
	case domain.CodeNotFound:
		return huma.Error404NotFound(err.Error(), detail)
	case domain.CodeIneligibleAdmin, domain.CodeInvalidTransition:
		return huma.Error422UnprocessableEntity(err.Error(), detail)
	case domain.CodeConversionInProgress:
		return huma.Error409Conflict(err.Error(), detail)
	case domain.CodeProvisioningFailed:
		return huma.Error502BadGateway(err.Error(), detail)
	case domain.CodeMigrationFailed:
		return huma.Error500InternalServerError(err.Error(), detail)
	case domain.CodeInvalidInput:
		return huma.Error400BadRequest(err.Error(), detail)
	case domain.CodeUnauthorized:
		return huma.Error401Unauthorized("invalid credentials", detail)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout("operation timed out", &huma.ErrorDetail{Location: "code", Value: codeTimeout})
	}

	logging.FromContext(ctx, logger).Error("unhandled error", zap.Error(err))
	return huma.Error500InternalServerError("internal server error", detail)
}
