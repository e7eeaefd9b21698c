package email_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmadcode/courier/pkg/email"
)

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	base := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "noreply@example.com",
		SupportEmail:         "support@example.com",
	}

	tests := []struct {
		name    string
		mutate  func(c *email.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *email.Config) {}},
		{name: "missing server token", mutate: func(c *email.Config) { c.PostmarkServerToken = "" }, wantErr: true},
		{name: "missing account token", mutate: func(c *email.Config) { c.PostmarkAccountToken = "" }, wantErr: true},
		{name: "invalid sender", mutate: func(c *email.Config) { c.SenderEmail = "nope" }, wantErr: true},
		{name: "invalid support", mutate: func(c *email.Config) { c.SupportEmail = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			client, err := email.NewPostmarkClient(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, email.ErrInvalidConfig)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestPostmarkClient_ValidatesBeforeSending(t *testing.T) {
	t.Parallel()

	client, err := email.NewPostmarkClient(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "noreply@example.com",
		SupportEmail:         "support@example.com",
	})
	require.NoError(t, err)

	_, err = client.SendEmail(context.Background(), email.SendEmailParams{SendTo: "user@example.com"})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
}

func TestConfig_HasPostmark(t *testing.T) {
	t.Parallel()

	assert.False(t, email.Config{}.HasPostmark())
	assert.False(t, email.Config{PostmarkServerToken: "x"}.HasPostmark())
	assert.True(t, email.Config{PostmarkServerToken: "x", PostmarkAccountToken: "y"}.HasPostmark())
}
