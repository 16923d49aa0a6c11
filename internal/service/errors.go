// Package service holds the errors shared by the domain services.
package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrNotFound = errors.New("not found")

// ValidationError maps form fields to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has one.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns e only when at least one field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func FieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Publisher is satisfied by kafkax.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

const (
	MsgRequired      = "This field is required."
	MsgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	MsgInvalidEmail  = "Enter a valid email address."
)

var validate = validator.New()

// ValidEmail applies the same rule as the `email` binding tag.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
