package google

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-accounts/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderName(t *testing.T) {
	assert.Equal(t, "google", New(Config{}).Name())
}

func TestExchange(t *testing.T) {
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"code":          r.PostFormValue("code"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
			"grant_type":    r.PostFormValue("grant_type"),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "ya29.access",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "1//refresh",
			"scope":         "openid email profile",
			"id_token":      "header.payload.signature",
		})
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		CallbackURL:  "https://app.example.com/callback",
		TokenURL:     server.URL,
	})

	token, err := provider.Exchange(context.Background(), "4/abc123")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"client_id":     "client-123",
		"client_secret": "secret-456",
		"code":          "4/abc123",
		"redirect_uri":  "https://app.example.com/callback",
		"grant_type":    "authorization_code",
	}, gotForm)

	assert.Equal(t, "ya29.access", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "1//refresh", token.RefreshToken)
	assert.Equal(t, []string{"openid", "email", "profile"}, token.Scopes)
	assert.Equal(t, "header.payload.signature", token.Raw["id_token"])
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)
}

func TestExchangeErrors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantCode        string
		wantDescription string
	}{
		{
			name:            "oauth error response",
			status:          http.StatusBadRequest,
			body:            `{"error":"invalid_grant","error_description":"Bad Request"}`,
			wantCode:        "invalid_grant",
			wantDescription: "Bad Request",
		},
		{
			// a structured API error does not fit the token response shape
			name:            "nested api error response",
			status:          http.StatusUnauthorized,
			body:            `{"error":{"code":401,"message":"Invalid Credentials","status":"UNAUTHENTICATED"}}`,
			wantCode:        "invalid_response",
			wantDescription: "failed to decode token response",
		},
		{
			name:            "error description only",
			status:          http.StatusInternalServerError,
			body:            `{"error_description":"backend error"}`,
			wantDescription: "backend error",
		},
		{
			name:     "missing access token",
			status:   http.StatusOK,
			body:     `{"token_type":"Bearer"}`,
			wantCode: "missing_access_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			provider := New(Config{TokenURL: server.URL})

			_, err := provider.Exchange(context.Background(), "4/abc123")
			require.Error(t, err)

			var perr *social.ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "google", perr.Provider)
			assert.Equal(t, "exchange", perr.Operation)
			assert.Equal(t, tt.status, perr.Status)
			assert.Equal(t, tt.wantCode, perr.Code)
			if tt.wantDescription != "" {
				assert.Equal(t, tt.wantDescription, perr.Description)
			}
		})
	}
}

func TestUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ya29.access", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"sub":            "goog-123",
			"email":          "walter@example.com",
			"email_verified": true,
			"name":           "Walter Sobchak",
			"given_name":     "Walter",
			"family_name":    "Sobchak",
			"picture":        "https://lh3.example.com/photo.jpg",
			"locale":         "en",
		})
	}))
	defer server.Close()

	provider := New(Config{UserInfoURL: server.URL})

	profile, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "ya29.access"})
	require.NoError(t, err)

	assert.Equal(t, "goog-123", profile.ProviderUserID)
	assert.Equal(t, "google", profile.Provider)
	assert.Equal(t, "walter@example.com", profile.Email)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Walter Sobchak", profile.Name)
	assert.Equal(t, "Walter", profile.FirstName)
	assert.Equal(t, "Sobchak", profile.LastName)
	assert.Equal(t, "https://lh3.example.com/photo.jpg", profile.AvatarURL)
	assert.Equal(t, "en", profile.Raw["locale"])
}

func TestUserInfoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":401,"message":"Request had invalid authentication credentials.","status":"UNAUTHENTICATED"}}`)
	}))
	defer server.Close()

	provider := New(Config{UserInfoURL: server.URL})

	_, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "stale"})
	require.Error(t, err)

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "user_info", perr.Operation)
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Equal(t, "UNAUTHENTICATED", perr.Code)
}

const testKID = "test-kid"

func newJWKSServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": testKID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	return server
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validIDTokenClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            "client-123",
		"sub":            "goog-123",
		"email":          "walter@example.com",
		"email_verified": true,
		"name":           "Walter Sobchak",
		"given_name":     "Walter",
		"family_name":    "Sobchak",
		"picture":        "https://lh3.example.com/photo.jpg",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyIdentityToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, key)
	provider := New(Config{
		ClientID: "client-123",
		JWKSURL:  server.URL,
	})

	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		raw := signIDToken(t, key, validIDTokenClaims())

		profile, err := provider.VerifyIdentityToken(ctx, raw)
		require.NoError(t, err)

		assert.Equal(t, "goog-123", profile.ProviderUserID)
		assert.Equal(t, "walter@example.com", profile.Email)
		assert.True(t, profile.EmailVerified)
		assert.Equal(t, "Walter", profile.FirstName)
		assert.Equal(t, "Sobchak", profile.LastName)
	})

	t.Run("bare issuer form accepted", func(t *testing.T) {
		claims := validIDTokenClaims()
		claims["iss"] = "accounts.google.com"

		profile, err := provider.VerifyIdentityToken(ctx, signIDToken(t, key, claims))
		require.NoError(t, err)
		assert.Equal(t, "goog-123", profile.ProviderUserID)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := validIDTokenClaims()
		claims["aud"] = "someone-else"

		_, err := provider.VerifyIdentityToken(ctx, signIDToken(t, key, claims))
		require.Error(t, err)

		var perr *social.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "invalid_token", perr.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validIDTokenClaims()
		claims["iss"] = "https://evil.example.com"

		_, err := provider.VerifyIdentityToken(ctx, signIDToken(t, key, claims))
		require.Error(t, err)

		var perr *social.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "invalid_issuer", perr.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validIDTokenClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()

		_, err := provider.VerifyIdentityToken(ctx, signIDToken(t, key, claims))
		require.Error(t, err)

		var perr *social.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "invalid_token", perr.Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := validIDTokenClaims()
		delete(claims, "sub")

		_, err := provider.VerifyIdentityToken(ctx, signIDToken(t, key, claims))
		require.Error(t, err)

		var perr *social.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "missing_subject", perr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := provider.VerifyIdentityToken(ctx, "not-a-jwt")
		require.Error(t, err)

		var perr *social.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "invalid_token", perr.Code)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, validIDTokenClaims())
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = provider.VerifyIdentityToken(ctx, raw)
		require.Error(t, err)

		var perr *social.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "invalid_token", perr.Code)
	})
}
