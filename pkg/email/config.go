package email

// Config holds email provider configuration.
// Postmark tokens are optional: without them the transport falls back to the
// on-disk DevSender. SenderEmail and SupportEmail establish the From and
// Reply-To identity for every outbound message.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"notifications@localhost.localdomain"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@localhost.localdomain"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
	MessageStream        string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
}

// HasPostmark reports whether both Postmark tokens are present.
func (c Config) HasPostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
