package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

// EventInput is the validated shape of a create or update request.
type EventInput struct {
	Title            string  `json:"title" validate:"required,notblank"`
	Description      string  `json:"description" validate:"required,notblank"`
	Date             string  `json:"date" validate:"required,notblank"`
	Location         string  `json:"location" validate:"required,notblank"`
	Price            Number  `json:"price" validate:"required,notblank"`
	AvailableTickets Number  `json:"availableTickets" validate:"required,notblank"`
	ImageURL         *string `json:"imageUrl,omitempty"`
	Category         *string `json:"category,omitempty"`
}

// Number holds the raw text of a value sent either as a JSON number or a JSON
// string. Null decodes to the empty Number, which counts as absent.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return errors.New("expected a number or a string")
	}
	*n = Number(num.String())
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(n))
}

var (
	validateOnce  sync.Once
	inputValidate *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		inputValidate = v
	})
	return inputValidate
}

func (in EventInput) validate(withTickets bool) error {
	err := inputValidator().Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if !withTickets && name == "availableTickets" {
			continue
		}
		fields[name] = name + " is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: fields}
}
