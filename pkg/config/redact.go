package config

import (
	"net/url"
	"strings"

	"digital.vasic.challengeboard/pkg/logging"
)

// RedactSecret masks a secret, showing only its first 4 and last
// 4 characters.
func RedactSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// RedactURL masks the password and the query of a URL.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.User != nil {
		if password, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), RedactSecret(password))
		}
	}
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	return u.String()
}

// LogFields describes c for the startup log with secrets masked.
func (c *Config) LogFields() []logging.Field {
	fields := []logging.Field{
		logging.StringField("catalog", c.CatalogDir),
		logging.StringField("store", c.StoreDriver),
		logging.StringField("store_path", c.StorePath),
		logging.StringField("policy", c.Policy),
		logging.BoolField("testing", c.Testing),
		logging.DurationField("tick", c.TickInterval),
		logging.StringField("http_addr", c.HTTPAddr),
	}
	if c.WebhookURL != "" {
		fields = append(fields, logging.StringField("webhook", RedactURL(c.WebhookURL)))
	}
	if c.WebhookToken != "" {
		fields = append(fields, logging.StringField("webhook_token", RedactSecret(c.WebhookToken)))
	}
	return fields
}
