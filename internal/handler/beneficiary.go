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

type beneficiaryService interface {
	Register(ctx context.Context, ownerAccount, targetAccount, name, routingCode string, now time.Time) (*domain.Beneficiary, error)
	Status(ctx context.Context, id uuid.UUID, now time.Time) (bool, time.Duration, error)
	ListByOwner(ctx context.Context, ownerAccount string) ([]domain.Beneficiary, error)
}

type BeneficiaryHandler struct {
	beneficiaries beneficiaryService
}

func NewBeneficiaryHandler(beneficiaries beneficiaryService) *BeneficiaryHandler {
	return &BeneficiaryHandler{beneficiaries: beneficiaries}
}

type createBeneficiaryRequest struct {
	TargetAccount string `json:"target_account"`
	Name          string `json:"name"`
	RoutingCode   string `json:"routing_code"`
}

func (r createBeneficiaryRequest) Validate() []FieldError {
	var errs []FieldError
	if r.TargetAccount == "" {
		errs = append(errs, FieldError{Field: "target_account", Message: "required"})
	}
	if r.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	return errs
}

type beneficiaryDTO struct {
	ID             uuid.UUID `json:"id"`
	TargetAccount  string    `json:"target_account"`
	Name           string    `json:"name"`
	RoutingCode    string    `json:"routing_code"`
	Status         string    `json:"status"`
	ActivationTime time.Time `json:"activation_time"`
	DailyLimit     string    `json:"daily_limit"`
	CreatedAt      time.Time `json:"created_at"`
}

func toBeneficiaryDTO(b *domain.Beneficiary) beneficiaryDTO {
	return beneficiaryDTO{
		ID:             b.ID,
		TargetAccount:  b.TargetAccount,
		Name:           b.Name,
		RoutingCode:    b.RoutingCode,
		Status:         string(b.Status),
		ActivationTime: b.ActivationTime,
		DailyLimit:     formatAmount(b.DailyLimit),
		CreatedAt:      b.CreatedAt,
	}
}

func (h *BeneficiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerAccount, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	b, err := h.beneficiaries.Register(r.Context(), ownerAccount, req.TargetAccount, req.Name, req.RoutingCode, time.Now().UTC())
	if err != nil {
		logging.FromContext(r.Context()).Error("beneficiary registration rejected", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toBeneficiaryDTO(b))
}

func (h *BeneficiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerAccount, ok := auth.AccountFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	list, err := h.beneficiaries.ListByOwner(r.Context(), ownerAccount)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list beneficiaries", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]beneficiaryDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, toBeneficiaryDTO(&list[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

type beneficiaryStatusDTO struct {
	Transferable bool   `json:"transferable"`
	Remaining    string `json:"remaining,omitempty"`
}

// Status reports whether transfers to the payee are currently allowed, and
// the remaining cooling time when they are not.
func (h *BeneficiaryHandler) Status(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.AccountFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a UUID"}})
		return
	}

	active, remaining, err := h.beneficiaries.Status(r.Context(), id, time.Now().UTC())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dto := beneficiaryStatusDTO{Transferable: active}
	if !active {
		dto.Remaining = remaining.Round(time.Second).String()
	}
	RespondSuccess(w, http.StatusOK, dto)
}
