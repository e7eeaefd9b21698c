// Package email sends transactional email through a provider-agnostic
// EmailSender.
//
// Two implementations are provided:
//   - NewPostmarkClient sends through Postmark and returns the Postmark message id.
//   - NewDevSender writes messages to a local directory for development.
//
// Parameters are validated before any provider call; validation failures wrap
// ErrInvalidParams and provider failures wrap ErrFailedToSendEmail.
package email
