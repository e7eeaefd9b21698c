package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmadcode/courier/pkg/email"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Hello",
		BodyText: "body",
	}

	tests := []struct {
		name    string
		mutate  func(p *email.SendEmailParams)
		wantErr bool
	}{
		{name: "valid text body", mutate: func(p *email.SendEmailParams) {}},
		{name: "valid html body", mutate: func(p *email.SendEmailParams) { p.BodyText = ""; p.BodyHTML = "<p>hi</p>" }},
		{name: "missing recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "" }, wantErr: true},
		{name: "invalid recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }, wantErr: true},
		{name: "missing subject", mutate: func(p *email.SendEmailParams) { p.Subject = "  " }, wantErr: true},
		{name: "missing body", mutate: func(p *email.SendEmailParams) { p.BodyText = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, email.ErrInvalidParams)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIsValidAddress(t *testing.T) {
	t.Parallel()

	assert.True(t, email.IsValidAddress("a.b+tag@sub.example.org"))
	assert.False(t, email.IsValidAddress("user@localhost"))
	assert.False(t, email.IsValidAddress("@example.com"))
	assert.False(t, email.IsValidAddress(""))
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "emails")
	sender := email.NewDevSender(dir)

	id, err := sender.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Order Shipped",
		BodyHTML: "<p>shipped</p>",
		Tag:      "order-shipped",
		Metadata: map[string]string{"notification_id": "n-1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var metaFile, bodyFile string
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".json"):
			metaFile = e.Name()
		case strings.HasSuffix(e.Name(), ".html"):
			bodyFile = e.Name()
		}
	}
	require.NotEmpty(t, metaFile)
	require.NotEmpty(t, bodyFile)
	assert.Contains(t, bodyFile, "order-shipped")

	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, id, meta["message_id"])
	assert.Equal(t, "user@example.com", meta["send_to"])
}

func TestDevSender_TextOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := email.NewDevSender(dir).SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Plain",
		BodyText: "plain text",
	})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestDevSender_RejectsInvalidParams(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "never")
	_, err := email.NewDevSender(dir).SendEmail(context.Background(), email.SendEmailParams{SendTo: "bad"})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
	assert.NoDirExists(t, dir)
}
