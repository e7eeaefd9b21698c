package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// EmailSender sends a single email and returns the provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) (string, error)
}

// SendEmailParams represents the parameters for sending an email.
// At least one of BodyHTML and BodyText is required.
type SendEmailParams struct {
	SendTo   string            `json:"send_to"`
	Subject  string            `json:"subject"`
	BodyHTML string            `json:"body_html,omitempty"`
	BodyText string            `json:"body_text,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsValidAddress reports whether addr looks like a deliverable email address.
func IsValidAddress(addr string) bool {
	return emailRegex.MatchString(addr)
}

// Validate checks the parameters before they reach a provider.
func (p SendEmailParams) Validate() error {
	if strings.TrimSpace(p.SendTo) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	}
	if !IsValidAddress(p.SendTo) {
		return fmt.Errorf("%w: invalid recipient address %q", ErrInvalidParams, p.SendTo)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" && strings.TrimSpace(p.BodyText) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}
