package render

import "errors"

var (
	ErrTemplateNotFound = errors.New("render: template not found")
	ErrInvalidTemplate  = errors.New("render: invalid template")
	ErrMissingVariable  = errors.New("render: missing variable")
	ErrRenderFailed     = errors.New("render: failed to execute template")
)
