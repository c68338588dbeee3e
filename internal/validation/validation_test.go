package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fjod/redclaw/internal/domain"
)

type sample struct {
	Name    string `json:"fullName" validate:"required"`
	Pincode string `json:"pincode" validate:"required,numeric,len=6"`
	Phone   string `json:"phone" validate:"required,numeric,min=10,max=15"`
	Status  string `json:"status,omitempty" validate:"omitempty,oneof=a b"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		msg  string
	}{
		{"valid", sample{Name: "A", Pincode: "560001", Phone: "9876543210"}, ""},
		{"missing name", sample{Pincode: "560001", Phone: "9876543210"}, "fullName is required"},
		{"short pincode", sample{Name: "A", Pincode: "5600", Phone: "9876543210"}, "pincode must be exactly 6 characters"},
		{"letters in pincode", sample{Name: "A", Pincode: "56000a", Phone: "9876543210"}, "pincode must contain digits only"},
		{"short phone", sample{Name: "A", Pincode: "560001", Phone: "98765"}, "phone must be at least 10 characters"},
		{"long phone", sample{Name: "A", Pincode: "560001", Phone: "9876543210123456"}, "phone must be at most 15 characters"},
		{"bad enum", sample{Name: "A", Pincode: "560001", Phone: "9876543210", Status: "c"}, "status must be one of: a b"},
		{"bad email", sample{Name: "A", Pincode: "560001", Phone: "9876543210", Email: "asha@"}, "email must be a valid e-mail address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.msg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.EqualError(t, err, tt.msg)
		})
	}
}
