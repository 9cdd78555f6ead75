package social

import "strings"

// CredentialKind discriminates the two shapes a provider credential can
// arrive in.
type CredentialKind string

const (
	// KindAuthorizationCode is an OAuth2 authorization code to be exchanged
	// at the provider's token endpoint.
	KindAuthorizationCode CredentialKind = "authorization_code"
	// KindIdentityToken is a signed identity token presented directly, as in
	// one-tap flows.
	KindIdentityToken CredentialKind = "id_token"
)

// Credential is a tagged provider credential. Exactly one of Code or Token
// carries the value, selected by Kind. Both shapes normalize to the same
// resolved profile before any account logic runs.
type Credential struct {
	Provider string
	Kind     CredentialKind
	Code     string
	Token    string
}

// AuthorizationCode builds a code-exchange credential.
func AuthorizationCode(provider, code string) Credential {
	return Credential{
		Provider: strings.ToLower(provider),
		Kind:     KindAuthorizationCode,
		Code:     strings.TrimSpace(code),
	}
}

// IdentityToken builds a direct identity-token credential.
func IdentityToken(provider, token string) Credential {
	return Credential{
		Provider: strings.ToLower(provider),
		Kind:     KindIdentityToken,
		Token:    strings.TrimSpace(token),
	}
}

// Validate checks the credential carries the value its kind requires.
func (c Credential) Validate() error {
	switch c.Kind {
	case KindAuthorizationCode:
		if c.Code == "" {
			return ErrNoAuthorizationCode
		}
	case KindIdentityToken:
		if c.Token == "" {
			return ErrNoIdentityToken
		}
	default:
		return ErrNoIdentityToken
	}
	return nil
}
