package transport

import "errors"

var (
	ErrSendFailed       = errors.New("transport: send failed")
	ErrInvalidRecipient = errors.New("transport: invalid recipient")
	ErrUnconfigured     = errors.New("transport: not configured")
)
