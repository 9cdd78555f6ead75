package social

import (
	"context"
	"time"
)

// Provider is implemented by OAuth2 identity providers that support both
// the authorization-code exchange and direct identity-token verification.
type Provider interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// Exchange trades an authorization code for an access token.
	Exchange(ctx context.Context, code string) (*Token, error)

	// UserInfo fetches the user's profile using the access token.
	UserInfo(ctx context.Context, token *Token) (*Profile, error)

	// VerifyIdentityToken verifies a signed identity token and extracts the
	// profile embedded in its claims.
	VerifyIdentityToken(ctx context.Context, rawToken string) (*Profile, error)
}

// Token represents an OAuth2 token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
	Raw          map[string]any
}

// Profile represents normalized user information from a social provider.
type Profile struct {
	ProviderUserID string
	Provider       string
	Email          string
	EmailVerified  bool
	Name           string
	FirstName      string
	LastName       string
	AvatarURL      string
	Raw            map[string]any
}
