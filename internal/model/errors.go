package model

import (
	"errors"
	"fmt"
	"math/big"
)

// Failure kinds returned by the accounting engine. Callers match them with errors.Is.
var (
	ErrParse             = errors.New("parse error")
	ErrExceedsAvailable  = errors.New("exceeds available")
	ErrExceedsQueued     = errors.New("exceeds queued")
	ErrNonPositiveAmount = errors.New("non-positive amount")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrInconsistentState = errors.New("inconsistent state")
	ErrRangeInvalid      = errors.New("range invalid")
	ErrPriceUnavailable  = errors.New("price unavailable")
)

// ErrInvalidFormat is the parser's name for malformed user input.
var ErrInvalidFormat = ErrParse

// AmountError describes a rejected amount together with the bound it was checked against.
type AmountError struct {
	Err    error
	Field  string
	Input  string
	Amount *big.Int
	Bound  *big.Int
}

func (e *AmountError) Error() string {
	msg := "amount error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	switch {
	case e.Amount != nil && e.Bound != nil:
		return fmt.Sprintf("%s (amount %s, bound %s)", msg, e.Amount.String(), e.Bound.String())
	case e.Amount != nil:
		return fmt.Sprintf("%s (amount %s)", msg, e.Amount.String())
	case e.Input != "":
		return fmt.Sprintf("%s (input %q)", msg, e.Input)
	default:
		return msg
	}
}

func (e *AmountError) Unwrap() error {
	return e.Err
}

// NewAmountError copies amount and bound so the error never aliases caller state.
func NewAmountError(kind error, field string, amount, bound *big.Int) *AmountError {
	e := &AmountError{Err: kind, Field: field}
	if amount != nil {
		e.Amount = new(big.Int).Set(amount)
	}
	if bound != nil {
		e.Bound = new(big.Int).Set(bound)
	}
	return e
}
