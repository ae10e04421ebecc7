package domain

import (
	"strings"

	apperrors "github.com/JUNGLI-STORE/jungli-store/pkg/errors"
)

type ShippingDetails struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city,omitempty"`
	Pincode  string `json:"pincode"`
	Email    string `json:"email,omitempty"`
}

// Validate reports every required field that is empty or whitespace only.
func (d ShippingDetails) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(d.FullName) == "" {
		fields["full_name"] = "required"
	}
	if strings.TrimSpace(d.Phone) == "" {
		fields["phone"] = "required"
	}
	if strings.TrimSpace(d.Address) == "" {
		fields["address"] = "required"
	}
	if strings.TrimSpace(d.Pincode) == "" {
		fields["pincode"] = "required"
	}
	if len(fields) == 0 {
		return nil
	}
	return &apperrors.ValidationError{Fields: fields}
}
