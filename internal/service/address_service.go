package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/internal/validation"
	"github.com/fjod/redclaw/pkg/logger"
)

// AddressInput is a complete address as entered by a customer.
type AddressInput struct {
	FullName     string `json:"fullName" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,numeric,min=10,max=15"`
	AddressLine1 string `json:"addressLine1" validate:"required,max=200"`
	AddressLine2 string `json:"addressLine2" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	Pincode      string `json:"pincode" validate:"required,numeric,len=6"`
	Country      string `json:"country" validate:"max=100"`
	IsDefault    bool   `json:"isDefault"`
}

func inputFromAddress(a *domain.Address) AddressInput {
	return AddressInput{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Pincode:      a.Pincode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
	}
}

func (in *AddressInput) normalize() {
	for _, f := range []*string{&in.FullName, &in.Phone, &in.AddressLine1, &in.AddressLine2,
		&in.City, &in.State, &in.Pincode, &in.Country} {
		*f = strings.TrimSpace(*f)
	}
	if in.Country == "" {
		in.Country = domain.DefaultCountry
	}
}

type AddressService struct {
	addresses repository.AddressRepository
}

func NewAddressService(addresses repository.AddressRepository) *AddressService {
	return &AddressService{addresses: addresses}
}

// List returns the address book of a user, default first.
func (s *AddressService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	list, err := s.addresses.ListAddresses(ctx, userID)
	if err != nil {
		return nil, toDomainError(err, "list addresses")
	}
	return list, nil
}

func (s *AddressService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	a, err := s.addresses.GetAddress(ctx, userID, id)
	if err != nil {
		return nil, toDomainError(err, "load address")
	}
	return a, nil
}

// Add stores a new address. The first address of a user becomes the default.
func (s *AddressService) Add(ctx context.Context, userID uuid.UUID, in AddressInput) (*domain.Address, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	a := &domain.Address{
		ID:           uuid.New(),
		UserID:       userID,
		FullName:     in.FullName,
		Phone:        in.Phone,
		AddressLine1: in.AddressLine1,
		AddressLine2: in.AddressLine2,
		City:         in.City,
		State:        in.State,
		Pincode:      in.Pincode,
		Country:      in.Country,
		IsDefault:    in.IsDefault,
	}
	if err := s.addresses.CreateAddress(ctx, a); err != nil {
		return nil, toDomainError(err, "save address")
	}

	logger.FromContext(ctx).Info("address added",
		zap.String("user_id", userID.String()),
		zap.String("address_id", a.ID.String()),
		zap.Bool("default", a.IsDefault))
	return a, nil
}

// Update applies a partial change. The default address stays default.
func (s *AddressService) Update(ctx context.Context, userID, id uuid.UUID, patch domain.AddressPatch) (*domain.Address, error) {
	a, err := s.addresses.GetAddress(ctx, userID, id)
	if err != nil {
		return nil, toDomainError(err, "load address")
	}

	patch.Apply(a)
	in := inputFromAddress(a)
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	a.FullName, a.Phone, a.AddressLine1, a.AddressLine2 = in.FullName, in.Phone, in.AddressLine1, in.AddressLine2
	a.City, a.State, a.Pincode, a.Country = in.City, in.State, in.Pincode, in.Country

	if err := s.addresses.UpdateAddress(ctx, a); err != nil {
		return nil, toDomainError(err, "save address")
	}
	return a, nil
}

// Delete removes an address; removing the default promotes the oldest remaining one.
func (s *AddressService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.addresses.DeleteAddress(ctx, userID, id); err != nil {
		return toDomainError(err, "delete address")
	}
	return nil
}

func (s *AddressService) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	if err := s.addresses.SetDefaultAddress(ctx, userID, id); err != nil {
		return nil, toDomainError(err, "set default address")
	}
	return s.Get(ctx, userID, id)
}
