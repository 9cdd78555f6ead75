package accounts

import "time"

// ConfirmationConfig collects every knob the confirmation flow reads. One
// structure, passed at construction time, instead of settings scattered per
// call site.
type ConfirmationConfig struct {
	// SuccessRedirect is where confirmed users land.
	SuccessRedirect string
	// FailureRedirect is where unknown, expired, or reused keys land.
	FailureRedirect string
	// ConfirmationExpiry is the token lifetime. Zero means 72h.
	ConfirmationExpiry time.Duration
	// ConfirmationURL is the base the emailed link is built from; the token
	// key is appended as the final path segment.
	ConfirmationURL string
	// ConfirmationTemplate is the template name for the confirmation email.
	ConfirmationTemplate string
	// WelcomeTemplate is the template name for the post-verification email.
	WelcomeTemplate string
}

// DefaultConfirmationExpiry matches the 3 day confirmation window.
const DefaultConfirmationExpiry = 72 * time.Hour

func (c ConfirmationConfig) expiry() time.Duration {
	if c.ConfirmationExpiry <= 0 {
		return DefaultConfirmationExpiry
	}
	return c.ConfirmationExpiry
}

func (c ConfirmationConfig) confirmationLink(key string) string {
	base := c.ConfirmationURL
	if base == "" {
		return key
	}
	if base[len(base)-1] != '/' {
		base += "/"
	}
	return base + key
}
