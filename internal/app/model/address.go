package model

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ShippingAddress is entered manually or pre-filled from a map pick.
type ShippingAddress struct {
	FullName     string   `json:"full_name"`
	AddressLine1 string   `json:"address_line_1" validate:"required"`
	AddressLine2 string   `json:"address_line_2,omitempty"`
	City         string   `json:"city" validate:"required"`
	State        string   `json:"state"`
	ZipCode      string   `json:"zip_code" validate:"required"`
	Country      string   `json:"country"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Normalize trims surrounding whitespace so blank input fails validation.
func (a ShippingAddress) Normalize() ShippingAddress {
	a.FullName = strings.TrimSpace(a.FullName)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.AddressLine2 = strings.TrimSpace(a.AddressLine2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Country = strings.TrimSpace(a.Country)
	return a
}

// Validate checks the fields required to ship: address line 1, city and zip code.
func (a ShippingAddress) Validate() error {
	return validate.Struct(a)
}

// MergeLookup overlays a geocoded address on the draft. The user's own
// name and second address line survive since geocoders never return them.
func (a ShippingAddress) MergeLookup(found ShippingAddress) ShippingAddress {
	merged := found
	merged.FullName = a.FullName
	if merged.AddressLine2 == "" {
		merged.AddressLine2 = a.AddressLine2
	}
	if merged.Country == "" {
		merged.Country = a.Country
	}
	return merged
}
