package configurator

import (
	"context"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/common"
	"github.com/noah-isme/camper-configurator/internal/notify"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/selection"
	"github.com/noah-isme/camper-configurator/internal/session"
)

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	appErr := classify(err)
	if appErr.Code == common.CodeInternal {
		h.Logger.Error().Err(err).Msg("request failed")
	}
	common.WriteAppError(w, appErr)
}

// classify maps domain errors onto the error envelope. Unknown errors become
// INTERNAL with their message withheld.
func classify(err error) *common.AppError {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}
	var constraint *selection.ConstraintError
	switch {
	case err == nil:
		return &common.AppError{Code: common.CodeInternal, Message: "unknown error"}
	case errors.As(err, &constraint):
		return &common.AppError{Code: common.CodeConstraintViolation, Message: err.Error(), Details: map[string]any{
			"option_id": constraint.OptionID,
			"missing":   constraint.Missing,
		}}
	case errors.Is(err, selection.ErrConstraintViolation):
		return &common.AppError{Code: common.CodeConstraintViolation, Message: err.Error()}
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, product.ErrUnknownProduct):
		return &common.AppError{Code: common.CodeNotFound, Message: err.Error()}
	case errors.Is(err, pricetable.ErrSource):
		return &common.AppError{Code: common.CodeSourceUnavailable, Message: err.Error(), Details: map[string]any{
			"retryable": pricetable.IsRetryable(err),
		}}
	case errors.Is(err, notify.ErrDisabled):
		return &common.AppError{Code: common.CodeSubmissionsDisabled, Message: "submissions are not configured"}
	case errors.Is(err, context.DeadlineExceeded):
		return &common.AppError{Code: common.CodeSessionBusy, Message: "session is locked by another request"}
	default:
		return &common.AppError{Code: common.CodeInternal, Message: "internal error", Err: err}
	}
}

// validationDetails lists the failing fields of a validator error.
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
