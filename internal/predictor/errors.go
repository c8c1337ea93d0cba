package predictor

import (
	"errors"
	"fmt"
)

// Kind tells invalid input apart from failures inside the network.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindComputation
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindComputation:
		return "computation"
	default:
		return "unknown"
	}
}

// Error is the error type returned by Predict.
type Error struct {
	Kind  Kind
	Field string // set for KindInvalidInput
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown on the result card.
func (e *Error) UserMessage() string {
	if e.Kind == KindInvalidInput {
		return fmt.Sprintf("Error: %v. Silakan masukkan data yang valid.", e.Err)
	}
	return fmt.Sprintf("Terjadi kesalahan: %v. Silakan coba lagi.", e.Err)
}

// InvalidInput wraps err as an invalid-input error for field.
func InvalidInput(field string, err error) *Error {
	return invalidInput(field, err)
}

func invalidInput(field string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Err: err}
}

func computation(err error) *Error {
	return &Error{Kind: KindComputation, Err: err}
}

// MessageFor renders any error returned by Predict as card text.
func MessageFor(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.UserMessage()
	}
	return computation(err).UserMessage()
}
