package service

import (
	"encoding/json"
	"errors"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrDuplicateOrder        = errors.New("duplicate custom_order_id")
	ErrCreationInProgress    = errors.New("payment creation already in progress")
	ErrOrderStatusNotFound   = errors.New("order status not found")
	ErrGatewayNoLink         = errors.New("payment gateway did not return a payment link")
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
	ErrInvalidSortField      = errors.New("invalid sort field")
)

// GatewayFailureError is returned when a collect request could not produce a
// payment link. Body is the gateway response as received.
type GatewayFailureError struct {
	Err  error
	Body json.RawMessage
}

func (e *GatewayFailureError) Error() string {
	return e.Err.Error()
}

func (e *GatewayFailureError) Unwrap() error {
	return e.Err
}
