package utils

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cryptonow/paygate/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// NewPaymentID mints a payment identifier of the form pay_<32 hex chars>.
func NewPaymentID() string {
	return "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ParseRequest decodes a JSON request body and checks its struct tags.
func ParseRequest[T any](data []byte) (*T, error) {
	var req T
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, types.Errorf(types.ErrCodeInvalidRequest, "failed to parse request: %v", err)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, types.Errorf(types.ErrCodeInvalidRequest, "validation failed: %v", err)
	}
	return &req, nil
}

// ValidateStruct checks the validate tags on any tagged value.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return types.Errorf(types.ErrCodeInvalidRequest, "validation failed: %v", err)
	}
	return nil
}
