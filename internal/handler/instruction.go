package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/core/internal/auth"
	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/logging"
)

type instructionService interface {
	Register(ctx context.Context, ownerAccount, payeeAccount, payeeName string, amount int64, currency domain.Currency, dayOfMonth int, now time.Time) (*domain.StandingInstruction, error)
	ListByOwner(ctx context.Context, ownerAccount string) ([]domain.StandingInstruction, error)
}

type InstructionHandler struct {
	instructions instructionService
}

func NewInstructionHandler(instructions instructionService) *InstructionHandler {
	return &InstructionHandler{instructions: instructions}
}

type createInstructionRequest struct {
	PayeeAccount string `json:"payee_account"`
	PayeeName    string `json:"payee_name"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	DayOfMonth   int    `json:"day_of_month"`
}

func (r createInstructionRequest) Validate() []FieldError {
	var errs []FieldError
	if r.PayeeAccount == "" {
		errs = append(errs, FieldError{Field: "payee_account", Message: "required"})
	}
	if _, ok := parseAmount(r.Amount); !ok {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive amount with at most two decimals"})
	}
	if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be INR, USD, or EUR"})
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 28 {
		errs = append(errs, FieldError{Field: "day_of_month", Message: "must be between 1 and 28"})
	}
	return errs
}

type instructionDTO struct {
	ID                uuid.UUID  `json:"id"`
	PayeeAccount      string     `json:"payee_account"`
	PayeeName         string     `json:"payee_name"`
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency"`
	DayOfMonth        int        `json:"day_of_month"`
	NextExecutionDate time.Time  `json:"next_execution_date"`
	Status            string     `json:"status"`
	LastExecuted      *time.Time `json:"last_executed,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toInstructionDTO(si *domain.StandingInstruction) instructionDTO {
	return instructionDTO{
		ID:                si.ID,
		PayeeAccount:      si.PayeeAccount,
		PayeeName:         si.PayeeName,
		Amount:            formatAmount(si.Amount),
		Currency:          string(si.Currency),
		DayOfMonth:        si.DayOfMonth,
		NextExecutionDate: si.NextExecutionDate,
		Status:            string(si.Status),
		LastExecuted:      si.LastExecuted,
		FailureReason:     si.FailureReason,
		CreatedAt:         si.CreatedAt,
	}
}

func (h *InstructionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerAccount, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createInstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := parseAmount(req.Amount)

	si, err := h.instructions.Register(r.Context(), ownerAccount, req.PayeeAccount, req.PayeeName,
		amount, domain.Currency(req.Currency), req.DayOfMonth, time.Now().UTC())
	if err != nil {
		logging.FromContext(r.Context()).Error("standing instruction registration rejected", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toInstructionDTO(si))
}

func (h *InstructionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerAccount, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	list, err := h.instructions.ListByOwner(r.Context(), ownerAccount)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list standing instructions", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]instructionDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, toInstructionDTO(&list[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
