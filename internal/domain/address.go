package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCountry = "India"

type Address struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Pincode      string
	Country      string
	IsDefault    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AddressSnapshot is the copy of an address stored on an order.
type AddressSnapshot struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Country      string `json:"country"`
}

func (a *Address) Snapshot() AddressSnapshot {
	country := a.Country
	if country == "" {
		country = DefaultCountry
	}
	return AddressSnapshot{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Pincode:      a.Pincode,
		Country:      country,
	}
}

// AddressPatch carries the fields of a partial update; nil means unchanged.
type AddressPatch struct {
	FullName     *string
	Phone        *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	State        *string
	Pincode      *string
	Country      *string
	IsDefault    *bool
}

func (p AddressPatch) Apply(a *Address) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&a.FullName, p.FullName)
	set(&a.Phone, p.Phone)
	set(&a.AddressLine1, p.AddressLine1)
	set(&a.AddressLine2, p.AddressLine2)
	set(&a.City, p.City)
	set(&a.State, p.State)
	set(&a.Pincode, p.Pincode)
	set(&a.Country, p.Country)
	if p.IsDefault != nil && *p.IsDefault {
		a.IsDefault = true
	}
}
