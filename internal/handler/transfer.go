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
	"github.com/meridianbank/core/internal/service/transfer"
)

type transferService interface {
	Transfer(ctx context.Context, req transfer.TransferRequest) (*domain.Transaction, error)
	Deposit(ctx context.Context, accountNumber string, amount int64, currency domain.Currency, description string) (*domain.Transaction, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type createTransferRequest struct {
	ToAccount     string  `json:"to_account"`
	BeneficiaryID *string `json:"beneficiary_id,omitempty"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Description   string  `json:"description"`
}

func (r createTransferRequest) Validate() []FieldError {
	var errs []FieldError

	if r.ToAccount == "" {
		errs = append(errs, FieldError{Field: "to_account", Message: "required"})
	}
	if _, ok := parseAmount(r.Amount); !ok {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive amount with at most two decimals"})
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be INR, USD, or EUR"})
	}
	if r.BeneficiaryID != nil {
		if _, err := uuid.Parse(*r.BeneficiaryID); err != nil {
			errs = append(errs, FieldError{Field: "beneficiary_id", Message: "must be a UUID"})
		}
	}

	return errs
}

type transactionDTO struct {
	ID             uuid.UUID `json:"id"`
	Reference      string    `json:"reference"`
	FromAccount    string    `json:"from_account"`
	ToAccount      string    `json:"to_account"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	RunningBalance string    `json:"running_balance"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:             t.ID,
		Reference:      t.Reference,
		FromAccount:    t.FromAccount,
		ToAccount:      t.ToAccount,
		Amount:         formatAmount(t.Amount),
		Currency:       string(t.Currency),
		Type:           string(t.Type),
		Status:         string(t.Status),
		RunningBalance: formatAmount(t.RunningBalance),
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
	}
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	fromAccount, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := parseAmount(req.Amount)

	engineReq := transfer.TransferRequest{
		FromAccount: fromAccount,
		ToAccount:   req.ToAccount,
		Amount:      amount,
		Currency:    domain.Currency(req.Currency),
		Description: req.Description,
	}
	if req.BeneficiaryID != nil {
		id := uuid.MustParse(*req.BeneficiaryID)
		engineReq.BeneficiaryID = &id
	}

	txn, err := h.transfers.Transfer(r.Context(), engineReq)
	if err != nil {
		logging.FromContext(r.Context()).Error("transfer rejected", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

type createDepositRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func (r createDepositRequest) Validate() []FieldError {
	var errs []FieldError
	if _, ok := parseAmount(r.Amount); !ok {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive amount with at most two decimals"})
	}
	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	} else if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be INR, USD, or EUR"})
	}
	return errs
}

func (h *TransferHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := parseAmount(req.Amount)

	txn, err := h.transfers.Deposit(r.Context(), accountNumber, amount, domain.Currency(req.Currency), req.Description)
	if err != nil {
		logging.FromContext(r.Context()).Error("deposit rejected", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}
