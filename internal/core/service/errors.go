package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid order request")
	ErrOutOfStock          = errors.New("product is not in stock")
	ErrUpstreamUnavailable = errors.New("inventory service unavailable")
	ErrStore               = errors.New("order store failure")
	ErrPublish             = errors.New("order event publish failed")
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrIdempotency         = errors.New("idempotency store unavailable")
	ErrInsufficientStock   = errors.New("insufficient stock")
)
