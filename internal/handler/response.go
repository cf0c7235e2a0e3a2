package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/meridianbank/core/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps core error values onto stable API error codes.
// The cooling-period rejection gets its remaining wait spliced into the
// message so the caller can show it.
func RespondDomainError(w http.ResponseWriter, err error) {
	var cooling *domain.CoolingPeriodError
	if errors.As(err, &cooling) {
		remaining := cooling.Remaining.Round(time.Second)
		RespondJSON(w, ErrBeneficiaryCooling.Status, APIResponse{
			Success: false,
			Error: &APIError{
				Code:    ErrBeneficiaryCooling.Code,
				Message: fmt.Sprintf("Beneficiary is still in its cooling period, %s remaining", remaining),
				Details: map[string]string{"remaining": remaining.String()},
			},
		})
		return
	}

	var appErr *AppError
	switch {
	case errors.Is(err, domain.ErrSelfTransfer):
		appErr = ErrSelfTransfer
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidCurrency):
		appErr = ErrInvalidCurrency
	case errors.Is(err, domain.ErrInvalidDayOfMonth):
		appErr = ErrInvalidDayOfMonth
	case errors.Is(err, domain.ErrAccountNotFound):
		appErr = ErrAccountNotFound
	case errors.Is(err, domain.ErrAccountFrozen):
		appErr = ErrAccountFrozen
	case errors.Is(err, domain.ErrAccountClosed):
		appErr = ErrAccountClosed
	case errors.Is(err, domain.ErrBeneficiaryNotFound):
		appErr = ErrBeneficiaryNotFound
	case errors.Is(err, domain.ErrBeneficiaryCooling):
		appErr = ErrBeneficiaryCooling
	case errors.Is(err, domain.ErrDailyLimitExceeded):
		appErr = ErrDailyLimitExceeded
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrInsufficientFunds
	case errors.Is(err, domain.ErrTransferFailed):
		appErr = ErrTransferFailed
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	default:
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
