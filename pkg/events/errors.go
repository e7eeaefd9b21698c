package events

import "errors"

var (
	ErrBusClosed     = errors.New("events: bus closed")
	ErrPublishFailed = errors.New("events: publish failed")
	ErrDecodeFailed  = errors.New("events: decode failed")
)
