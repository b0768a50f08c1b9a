package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Validator decodes and validates JSON request payloads.
type Validator struct {
	v *validator.Validate
}

// NewValidator constructs a Validator reporting json tag names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Decode reads r's JSON body into dst and validates it.
func (val *Validator) Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return NewAppError(CodeBadRequest, "request body required", http.StatusBadRequest, nil)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return NewAppError(CodeBadRequest, "invalid payload", http.StatusBadRequest, err)
	}
	return val.Struct(dst)
}

// Struct validates an already decoded payload.
func (val *Validator) Struct(dst any) error {
	if val == nil || val.v == nil {
		return nil
	}
	err := val.v.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError(CodeBadRequest, "invalid payload", http.StatusBadRequest, err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return NewValidationError(fmt.Sprintf("%d field(s) failed validation", len(fields)), fields, err)
}
