package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/meridianbank/core/internal/auth"
	"github.com/meridianbank/core/internal/domain"
	"github.com/meridianbank/core/internal/logging"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type accountReader interface {
	GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
}

type transactionReader interface {
	GetByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]domain.Transaction, int, error)
}

type AccountHandler struct {
	accounts     accountReader
	transactions transactionReader
}

func NewAccountHandler(accounts accountReader, transactions transactionReader) *AccountHandler {
	return &AccountHandler{accounts: accounts, transactions: transactions}
}

type accountDTO struct {
	AccountNumber string            `json:"account_number"`
	CustomerID    string            `json:"customer_id"`
	HolderName    string            `json:"holder_name"`
	Status        string            `json:"status"`
	Balances      map[string]string `json:"balances"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	balances := make(map[string]string, len(a.Balances))
	for c, v := range a.Balances {
		balances[string(c)] = formatAmount(v)
	}
	return accountDTO{
		AccountNumber: a.AccountNumber,
		CustomerID:    a.CustomerID,
		HolderName:    a.HolderName,
		Status:        string(a.Status),
		Balances:      balances,
		CreatedAt:     a.CreatedAt,
	}
}

// Get returns the authenticated caller's own account with all currency
// balances.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	account, err := h.accounts.GetByNumber(r.Context(), accountNumber)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to load account", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

type transactionListDTO struct {
	Transactions []transactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
}

// Transactions lists the caller's ledger history, newest first.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	txns, total, err := h.transactions.GetByAccount(r.Context(), accountNumber, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list transactions", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, 0, len(txns))
	for i := range txns {
		dtos = append(dtos, toTransactionDTO(&txns[i]))
	}

	RespondSuccess(w, http.StatusOK, transactionListDTO{
		Transactions: dtos,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
