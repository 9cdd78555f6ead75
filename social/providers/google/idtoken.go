package google

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-accounts/social"
)

// identityTokenVerifier checks one-tap id_token credentials against
// Google's published JWK set. The key set is fetched on first use and
// refreshed in the background.
type identityTokenVerifier struct {
	config Config

	once    sync.Once
	jwks    *keyfunc.JWKS
	jwksErr error
}

func newIdentityTokenVerifier(cfg Config) *identityTokenVerifier {
	return &identityTokenVerifier{config: cfg}
}

func (v *identityTokenVerifier) keySet() (*keyfunc.JWKS, error) {
	v.once.Do(func() {
		v.jwks, v.jwksErr = keyfunc.Get(v.config.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Printf("failed to refresh google JWK set: %s", err)
			},
		})
	})
	return v.jwks, v.jwksErr
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// Verify parses and validates a raw id_token and maps its claims to a
// normalized profile.
func (v *identityTokenVerifier) Verify(ctx context.Context, rawToken string) (*social.Profile, error) {
	jwks, err := v.keySet()
	if err != nil {
		return nil, providerError("verify_id_token", 0, "jwks_unavailable", "failed to load google key set", err, nil)
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
	}
	if v.config.ClientID != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.config.ClientID))
	}

	token, err := jwt.ParseWithClaims(rawToken, &idTokenClaims{}, jwks.Keyfunc, parserOptions...)
	if err != nil {
		return nil, providerError("verify_id_token", 0, "invalid_token", "id_token failed verification", err, nil)
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return nil, providerError("verify_id_token", 0, "invalid_claims", "id_token claims could not be decoded", nil, nil)
	}

	// Google issues either form depending on the client library
	issuer := strings.TrimPrefix(claims.Issuer, "https://")
	if issuer != "accounts.google.com" {
		return nil, providerError("verify_id_token", 0, "invalid_issuer", "unexpected id_token issuer", nil, map[string]any{
			"issuer": claims.Issuer,
		})
	}

	if claims.Subject == "" {
		return nil, providerError("verify_id_token", 0, "missing_subject", "id_token has no subject claim", nil, nil)
	}

	return mapProfile(&googleUserInfo{
		Sub:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Picture:       claims.Picture,
		Locale:        claims.Locale,
	}), nil
}
