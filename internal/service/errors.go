package service

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrStoreUnavailable = errors.New("order store unavailable")
	ErrOrderNotFound    = errors.New("order not found")
)

const (
	MsgMissingFields  = "Missing required fields"
	MsgInvalidAmount  = "Amount must be a positive number"
	MsgAmountTooLarge = "Amount exceeds the maximum of 99999999.99"
)

// ValidationError is a client error. It matches ErrInvalidRequest.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }
