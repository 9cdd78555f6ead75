package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationCode(t *testing.T) {
	cred := AuthorizationCode("Google", "  4/abc123  ")

	assert.Equal(t, "google", cred.Provider)
	assert.Equal(t, KindAuthorizationCode, cred.Kind)
	assert.Equal(t, "4/abc123", cred.Code)
	assert.Empty(t, cred.Token)
}

func TestIdentityToken(t *testing.T) {
	cred := IdentityToken("GOOGLE", " eyJhbGciOi ")

	assert.Equal(t, "google", cred.Provider)
	assert.Equal(t, KindIdentityToken, cred.Kind)
	assert.Equal(t, "eyJhbGciOi", cred.Token)
	assert.Empty(t, cred.Code)
}

func TestCredentialValidate(t *testing.T) {
	tests := []struct {
		name    string
		cred    Credential
		wantErr error
	}{
		{
			name: "valid authorization code",
			cred: AuthorizationCode("google", "4/abc123"),
		},
		{
			name: "valid identity token",
			cred: IdentityToken("google", "eyJhbGciOi"),
		},
		{
			name:    "missing authorization code",
			cred:    AuthorizationCode("google", ""),
			wantErr: ErrNoAuthorizationCode,
		},
		{
			name:    "missing identity token",
			cred:    IdentityToken("google", "   "),
			wantErr: ErrNoIdentityToken,
		},
		{
			name:    "unknown kind",
			cred:    Credential{Provider: "google"},
			wantErr: ErrNoIdentityToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNoIdentityTokenMessage(t *testing.T) {
	// clients match on this string
	assert.Equal(t, "No id_token provided", ErrNoIdentityToken.Message)
	assert.Equal(t, "No authorization code provided", ErrNoAuthorizationCode.Message)
}
