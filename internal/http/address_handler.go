package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/service"
)

type AddressService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
	Add(ctx context.Context, userID uuid.UUID, in service.AddressInput) (*domain.Address, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch domain.AddressPatch) (*domain.Address, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
}

type AddressHandler struct {
	addresses AddressService
	timeout   time.Duration
}

func NewAddressHandler(addresses AddressService, timeout time.Duration) *AddressHandler {
	return &AddressHandler{addresses: addresses, timeout: timeout}
}

type AddressDTO struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Phone        string    `json:"phone"`
	AddressLine1 string    `json:"addressLine1"`
	AddressLine2 string    `json:"addressLine2,omitempty"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Pincode      string    `json:"pincode"`
	Country      string    `json:"country"`
	IsDefault    bool      `json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UpdateAddressRequestDTO is a partial update; absent fields stay unchanged.
type UpdateAddressRequestDTO struct {
	FullName     *string `json:"fullName"`
	Phone        *string `json:"phone"`
	AddressLine1 *string `json:"addressLine1"`
	AddressLine2 *string `json:"addressLine2"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	Pincode      *string `json:"pincode"`
	Country      *string `json:"country"`
	IsDefault    *bool   `json:"isDefault"`
}

func (d UpdateAddressRequestDTO) patch() domain.AddressPatch {
	return domain.AddressPatch{
		FullName:     d.FullName,
		Phone:        d.Phone,
		AddressLine1: d.AddressLine1,
		AddressLine2: d.AddressLine2,
		City:         d.City,
		State:        d.State,
		Pincode:      d.Pincode,
		Country:      d.Country,
		IsDefault:    d.IsDefault,
	}
}

func convertAddress(a *domain.Address) AddressDTO {
	return AddressDTO{
		ID:           a.ID.String(),
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Pincode:      a.Pincode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
		CreatedAt:    a.CreatedAt,
	}
}

// GET /api/v1/addresses
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	addresses, err := h.addresses.List(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	dtos := make([]AddressDTO, 0, len(addresses))
	for _, a := range addresses {
		dtos = append(dtos, convertAddress(a))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/addresses/{address_id}
func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	id, ok := uuidParam(w, r, "address_id")
	if !ok {
		return
	}

	a, err := h.addresses.Get(ctx, userID, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertAddress(a))
}

// POST /api/v1/addresses
func (h *AddressHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	var in service.AddressInput
	if !decodeJSON(w, r, &in) {
		return
	}

	a, err := h.addresses.Add(ctx, userID, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, convertAddress(a))
}

// PUT /api/v1/addresses/{address_id}
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	id, ok := uuidParam(w, r, "address_id")
	if !ok {
		return
	}

	var req UpdateAddressRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.addresses.Update(ctx, userID, id, req.patch())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertAddress(a))
}

// DELETE /api/v1/addresses/{address_id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	id, ok := uuidParam(w, r, "address_id")
	if !ok {
		return
	}

	if err := h.addresses.Delete(ctx, userID, id); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Address deleted successfully"})
}

// PATCH /api/v1/addresses/{address_id}/default
func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	id, ok := uuidParam(w, r, "address_id")
	if !ok {
		return
	}

	a, err := h.addresses.SetDefault(ctx, userID, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertAddress(a))
}
