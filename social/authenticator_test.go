package social

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type stubProvider struct {
	name        string
	token       *Token
	profile     *Profile
	exchangeErr error
	userInfoErr error
	verifyErr   error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Exchange(ctx context.Context, code string) (*Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.token, nil
}

func (p *stubProvider) UserInfo(ctx context.Context, token *Token) (*Profile, error) {
	if p.userInfoErr != nil {
		return nil, p.userInfoErr
	}
	return p.profile, nil
}

func (p *stubProvider) VerifyIdentityToken(ctx context.Context, rawToken string) (*Profile, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return p.profile, nil
}

type stubLinkRepo struct {
	mu      sync.Mutex
	links   []*Link
	upserts int
}

func (r *stubLinkRepo) FindByProviderID(ctx context.Context, provider, providerUserID string) (*Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.links {
		if link.Provider == provider && link.ProviderUserID == providerUserID {
			return link, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubLinkRepo) FindByUserID(ctx context.Context, userID string) ([]*Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Link
	for _, link := range r.links {
		if link.UserID == userID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (r *stubLinkRepo) Upsert(ctx context.Context, link *Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	for i, existing := range r.links {
		if existing.Provider == link.Provider && existing.ProviderUserID == link.ProviderUserID {
			r.links[i] = link
			return nil
		}
	}
	r.links = append(r.links, link)
	return nil
}

func (r *stubLinkRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, link := range r.links {
		if link.ID == id {
			r.links = append(r.links[:i], r.links[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *stubLinkRepo) DeleteByUserAndProvider(ctx context.Context, userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*Link
	for _, link := range r.links {
		if link.UserID == userID && link.Provider == provider {
			continue
		}
		kept = append(kept, link)
	}
	r.links = kept
	return nil
}

type stubTokenService struct {
	token string
	err   error
}

func (s stubTokenService) Generate(identity accounts.Identity) (string, error) {
	return s.token, s.err
}

func (s stubTokenService) Validate(tokenString string) (*accounts.SessionClaims, error) {
	return nil, nil
}

type sentWelcome struct {
	to       string
	subject  string
	template string
}

type welcomeRecorder struct {
	mu   sync.Mutex
	sent []sentWelcome
}

func (r *welcomeRecorder) SendTemplate(ctx context.Context, to, subject, template string, binding map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentWelcome{to: to, subject: subject, template: template})
	return nil
}

func newTestUsers(t *testing.T) accounts.Users {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, accounts.CreateSchema(context.Background(), db))

	return accounts.NewUsersRepository(db)
}

func seedAccount(t *testing.T, users accounts.Users, email string, active, verified bool) *accounts.User {
	t.Helper()

	user, err := users.Register(context.Background(), &accounts.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    "Walter",
		LastName:     "Sobchak",
		PasswordHash: "$2a$14$not-a-real-hash",
		IsActive:     active,
		IsVerified:   verified,
	})
	require.NoError(t, err)
	return user
}

func googleProfile() *Profile {
	return &Profile{
		ProviderUserID: "goog-123",
		Provider:       "google",
		Email:          "walter@example.com",
		EmailVerified:  true,
		Name:           "Walter Sobchak",
		FirstName:      "Walter",
		LastName:       "Sobchak",
		AvatarURL:      "https://lh3.example.com/photo.jpg",
		Raw:            map[string]any{"sub": "goog-123"},
	}
}

func TestSocialLoginNewUser(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	linkRepo := &stubLinkRepo{}
	mailer := &welcomeRecorder{}

	var mu sync.Mutex
	var events []accounts.ActivityEvent
	sink := accounts.ActivitySinkFunc(func(ctx context.Context, event accounts.ActivityEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		return nil
	})

	provider := &stubProvider{name: "google", profile: googleProfile()}

	sa := NewSocialAuthenticator(linkRepo, users, stubTokenService{token: "signed-jwt"}, Config{
		AllowSignup:          true,
		RequireEmailVerified: true,
	},
		WithProvider(provider),
		WithMailer(mailer),
		WithActivitySink(sink),
	)

	result, err := sa.Login(ctx, IdentityToken("google", "raw-id-token"))
	require.NoError(t, err)

	assert.True(t, result.IsNewUser)
	assert.Equal(t, "signed-jwt", result.Token)
	assert.Equal(t, "google", result.Provider)
	assert.Equal(t, "walter@example.com", result.User.Email())
	assert.Equal(t, "Successfully signed in as walter@example.com.", result.Message)

	user, err := users.GetByIdentifier(ctx, "walter@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsVerified)
	assert.Equal(t, "Walter", user.FirstName)
	assert.Equal(t, "Sobchak", user.LastName)
	assert.NotEmpty(t, user.PasswordHash)

	link, err := linkRepo.FindByProviderID(ctx, "google", "goog-123")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), link.UserID)
	assert.Equal(t, "walter@example.com", link.Email)
	assert.Equal(t, "https://lh3.example.com/photo.jpg", link.AvatarURL)
	assert.Empty(t, link.AccessToken)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "walter@example.com", mailer.sent[0].to)
	assert.Equal(t, "Welcome to Our Platform!", mailer.sent[0].subject)
	assert.Equal(t, "welcome", mailer.sent[0].template)

	require.Len(t, events, 1)
	assert.Equal(t, accounts.ActivityEventSocialLogin, events[0].EventType)
	assert.Equal(t, user.ID.String(), events[0].UserID)
	assert.Equal(t, accounts.ActorRef{Type: "social", ID: "google"}, events[0].Actor)
	assert.Equal(t, true, events[0].Metadata["is_new_user"])
	assert.Equal(t, "goog-123", events[0].Metadata["provider_user_id"])
}

func TestSocialLoginAuthorizationCodeStoresTokens(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	linkRepo := &stubLinkRepo{}

	expiresAt := time.Now().Add(time.Hour)
	provider := &stubProvider{
		name: "google",
		token: &Token{
			AccessToken:  "ya29.access",
			TokenType:    "Bearer",
			RefreshToken: "1//refresh",
			ExpiresAt:    expiresAt,
		},
		profile: googleProfile(),
	}

	sa := NewSocialAuthenticator(linkRepo, users, stubTokenService{token: "signed-jwt"}, Config{
		AllowSignup: true,
	}, WithProvider(provider))

	result, err := sa.Login(ctx, AuthorizationCode("google", "4/abc123"))
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)

	link, err := linkRepo.FindByProviderID(ctx, "google", "goog-123")
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", link.AccessToken)
	assert.Equal(t, "1//refresh", link.RefreshToken)
	require.NotNil(t, link.TokenExpiresAt)
	assert.WithinDuration(t, expiresAt, *link.TokenExpiresAt, time.Second)
}

func TestSocialLoginExistingLink(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	user := seedAccount(t, users, "walter@example.com", true, true)

	linkRepo := &stubLinkRepo{links: []*Link{{
		ID:             uuid.NewString(),
		UserID:         user.ID.String(),
		Provider:       "google",
		ProviderUserID: "goog-123",
		Email:          "stale@example.com",
	}}}

	mailer := &welcomeRecorder{}
	provider := &stubProvider{name: "google", profile: googleProfile()}

	var savedNew *bool
	sa := NewSocialAuthenticator(linkRepo, users, stubTokenService{token: "signed-jwt"}, Config{},
		WithProvider(provider),
		WithMailer(mailer),
		WithHooks(Hooks{
			AfterSave: func(ctx context.Context, user *accounts.User, link *Link, isNew bool) error {
				savedNew = &isNew
				return nil
			},
		}),
	)

	result, err := sa.Login(ctx, IdentityToken("google", "raw-id-token"))
	require.NoError(t, err)

	assert.False(t, result.IsNewUser)
	assert.Equal(t, user.ID.String(), result.User.ID())
	require.NotNil(t, savedNew)
	assert.False(t, *savedNew)

	// profile data refreshed on the stored link, no welcome email replay
	link, err := linkRepo.FindByProviderID(ctx, "google", "goog-123")
	require.NoError(t, err)
	assert.Equal(t, "walter@example.com", link.Email)
	assert.Equal(t, 1, linkRepo.upserts)
	assert.Empty(t, mailer.sent)
}

func TestSocialLoginAdoptsPasswordAccount(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t)
	user := seedAccount(t, users, "walter@example.com", true, false)

	linkRepo := &stubLinkRepo{}
	mailer := &welcomeRecorder{}
	provider := &stubProvider{name: "google", profile: googleProfile()}

	// signup disabled: the pre-existing password account is adopted instead
	sa := NewSocialAuthenticator(linkRepo, users, stubTokenService{token: "signed-jwt"}, Config{
		AllowSignup: false,
	}, WithProvider(provider), WithMailer(mailer))

	result, err := sa.Login(ctx, IdentityToken("google", "raw-id-token"))
	require.NoError(t, err)

	assert.False(t, result.IsNewUser)
	assert.Empty(t, mailer.sent)

	stored, err := users.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)

	link, err := linkRepo.FindByProviderID(ctx, "google", "goog-123")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), link.UserID)
}

func TestSocialLoginFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{})

		_, err := sa.Login(ctx, IdentityToken("github", "raw"))
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("invalid credential", func(t *testing.T) {
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{})

		_, err := sa.Login(ctx, IdentityToken("google", "  "))
		assert.ErrorIs(t, err, ErrNoIdentityToken)
	})

	t.Run("signup disabled", func(t *testing.T) {
		provider := &stubProvider{name: "google", profile: googleProfile()}
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{
			AllowSignup: false,
		}, WithProvider(provider))

		_, err := sa.Login(ctx, IdentityToken("google", "raw"))
		assert.ErrorIs(t, err, ErrSignupNotAllowed)
	})

	t.Run("email not verified", func(t *testing.T) {
		profile := googleProfile()
		profile.EmailVerified = false
		provider := &stubProvider{name: "google", profile: profile}
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{
			AllowSignup:          true,
			RequireEmailVerified: true,
		}, WithProvider(provider))

		_, err := sa.Login(ctx, IdentityToken("google", "raw"))
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})

	t.Run("profile without email", func(t *testing.T) {
		profile := googleProfile()
		profile.Email = ""
		provider := &stubProvider{name: "google", profile: profile}
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{
			AllowSignup: true,
		}, WithProvider(provider))

		_, err := sa.Login(ctx, IdentityToken("google", "raw"))
		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, errors.As(err, &rich))
		assert.Equal(t, TextCodeUserInfoFail, rich.TextCode)
	})

	t.Run("inactive linked account", func(t *testing.T) {
		users := newTestUsers(t)
		user := seedAccount(t, users, "walter@example.com", false, true)

		linkRepo := &stubLinkRepo{links: []*Link{{
			ID:             uuid.NewString(),
			UserID:         user.ID.String(),
			Provider:       "google",
			ProviderUserID: "goog-123",
		}}}

		provider := &stubProvider{name: "google", profile: googleProfile()}
		sa := NewSocialAuthenticator(linkRepo, users, stubTokenService{}, Config{}, WithProvider(provider))

		_, err := sa.Login(ctx, IdentityToken("google", "raw"))
		assert.ErrorIs(t, err, accounts.ErrAccountInactive)
	})

	t.Run("pre login rejection", func(t *testing.T) {
		provider := &stubProvider{name: "google", profile: googleProfile()}
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{
			AllowSignup: true,
		},
			WithProvider(provider),
			WithHooks(Hooks{
				PreLogin: func(ctx context.Context, profile *Profile, existing bool) error {
					return errors.New("domain not allowed")
				},
			}),
		)

		_, err := sa.Login(ctx, IdentityToken("google", "raw"))
		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, errors.As(err, &rich))
		assert.Equal(t, TextCodeLoginRejected, rich.TextCode)
		assert.Equal(t, "pre_login", rich.Metadata["operation"])
	})

	t.Run("token exchange failure", func(t *testing.T) {
		provider := &stubProvider{
			name: "google",
			exchangeErr: &ProviderError{
				Provider:  "google",
				Operation: "exchange",
				Status:    400,
				Code:      "invalid_grant",
			},
		}
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{
			AllowSignup: true,
		}, WithProvider(provider))

		_, err := sa.Login(ctx, AuthorizationCode("google", "4/expired"))
		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, errors.As(err, &rich))
		assert.Equal(t, TextCodeTokenExchangeFail, rich.TextCode)
		assert.Equal(t, "invalid_grant", rich.Metadata["code"])
	})

	t.Run("identity token verification failure", func(t *testing.T) {
		provider := &stubProvider{name: "google", verifyErr: errors.New("bad signature")}
		sa := NewSocialAuthenticator(&stubLinkRepo{}, newTestUsers(t), stubTokenService{}, Config{
			AllowSignup: true,
		}, WithProvider(provider))

		_, err := sa.Login(ctx, IdentityToken("google", "raw"))
		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, errors.As(err, &rich))
		assert.Equal(t, TextCodeTokenVerifyFail, rich.TextCode)
	})
}

func TestListProviders(t *testing.T) {
	sa := NewSocialAuthenticator(&stubLinkRepo{}, nil, stubTokenService{}, Config{},
		WithProvider(&stubProvider{name: "google"}),
		WithProvider(&stubProvider{name: "github"}),
	)

	assert.ElementsMatch(t, []string{"google", "github"}, sa.ListProviders())
}

func TestDefaultPopulateUser(t *testing.T) {
	user := DefaultPopulateUser(googleProfile(), &accounts.User{Email: "walter@example.com"})

	assert.Equal(t, "Walter", user.FirstName)
	assert.Equal(t, "Sobchak", user.LastName)
	assert.True(t, user.IsVerified)

	// existing names are never overwritten
	user = DefaultPopulateUser(googleProfile(), &accounts.User{FirstName: "Donny", LastName: "Kerabatsos"})
	assert.Equal(t, "Donny", user.FirstName)
	assert.Equal(t, "Kerabatsos", user.LastName)
}
