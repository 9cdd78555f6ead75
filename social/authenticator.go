package social

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	accounts "github.com/goliatone/go-accounts"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Config configures the social authenticator.
type Config struct {
	// AllowSignup enables auto provisioning of accounts on first login.
	AllowSignup bool
	// RequireEmailVerified rejects profiles whose provider email is not
	// verified.
	RequireEmailVerified bool
	// WelcomeTemplate is the template name for the first-login email.
	WelcomeTemplate string
}

// SocialAuthenticator resolves provider credentials into local sessions.
// Every credential shape normalizes to a provider profile first; an already
// linked identity then short-circuits straight to session issuance, skipping
// every new-signup side effect.
type SocialAuthenticator struct {
	providers    map[string]Provider
	linkRepo     LinkRepository
	users        accounts.Users
	tokenService accounts.TokenService
	mailer       accounts.TemplateSender
	hooks        Hooks
	config       Config
	activitySink accounts.ActivitySink
	logger       accounts.Logger
}

// Option configures the social authenticator.
type Option func(*SocialAuthenticator)

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(
	linkRepo LinkRepository,
	users accounts.Users,
	tokenService accounts.TokenService,
	config Config,
	opts ...Option,
) *SocialAuthenticator {
	sa := &SocialAuthenticator{
		providers:    make(map[string]Provider),
		linkRepo:     linkRepo,
		users:        users,
		tokenService: tokenService,
		config:       config,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	sa.hooks = sa.hooks.normalized()

	return sa
}

// WithProvider registers a social provider.
func WithProvider(provider Provider) Option {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
	}
}

// WithHooks sets the policy hooks run by the login pipeline.
func WithHooks(hooks Hooks) Option {
	return func(sa *SocialAuthenticator) {
		sa.hooks = hooks
	}
}

// WithMailer sets the template mailer used for first-login welcome emails.
func WithMailer(mailer accounts.TemplateSender) Option {
	return func(sa *SocialAuthenticator) {
		sa.mailer = mailer
	}
}

// WithActivitySink sets the activity sink for audit logging.
func WithActivitySink(sink accounts.ActivitySink) Option {
	return func(sa *SocialAuthenticator) {
		sa.activitySink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger accounts.Logger) Option {
	return func(sa *SocialAuthenticator) {
		sa.logger = logger
	}
}

// AuthResult contains the result of a successful authentication.
type AuthResult struct {
	User      accounts.Identity
	Token     string
	IsNewUser bool
	Provider  string
	Profile   *Profile
	Message   string
}

// ListProviders returns the names of all registered providers.
func (sa *SocialAuthenticator) ListProviders() []string {
	var names []string
	for name := range sa.providers {
		names = append(names, name)
	}
	return names
}

// Login resolves a credential into an authenticated session.
func (sa *SocialAuthenticator) Login(ctx context.Context, cred Credential) (*AuthResult, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	provider, ok := sa.providers[cred.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, cred.Provider)
	}

	profile, token, err := sa.resolveProfile(ctx, provider, cred)
	if err != nil {
		return nil, err
	}

	if profile == nil || profile.ProviderUserID == "" {
		return nil, wrapProviderError(ErrUserInfoFailed, cred.Provider, "profile", nil)
	}

	existing, err := sa.linkRepo.FindByProviderID(ctx, cred.Provider, profile.ProviderUserID)
	if err != nil && !repository.IsRecordNotFound(err) && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up social link: %w", err)
	}

	if err := sa.hooks.PreLogin(ctx, profile, existing != nil); err != nil {
		return nil, wrapProviderError(ErrLoginRejected, cred.Provider, "pre_login", err)
	}

	if existing != nil {
		return sa.loginExisting(ctx, provider, existing, profile, token)
	}

	return sa.loginNew(ctx, provider, profile, token)
}

func (sa *SocialAuthenticator) resolveProfile(ctx context.Context, provider Provider, cred Credential) (*Profile, *Token, error) {
	switch cred.Kind {
	case KindAuthorizationCode:
		token, err := provider.Exchange(ctx, cred.Code)
		if err != nil {
			return nil, nil, wrapProviderError(ErrTokenExchangeFailed, cred.Provider, "exchange", err)
		}

		profile, err := provider.UserInfo(ctx, token)
		if err != nil {
			return nil, nil, wrapProviderError(ErrUserInfoFailed, cred.Provider, "user_info", err)
		}

		return profile, token, nil

	case KindIdentityToken:
		profile, err := provider.VerifyIdentityToken(ctx, cred.Token)
		if err != nil {
			return nil, nil, wrapProviderError(ErrTokenVerificationFailed, cred.Provider, "verify_id_token", err)
		}

		return profile, nil, nil
	}

	return nil, nil, ErrNoIdentityToken
}

// loginExisting handles a credential whose provider identity is already
// linked. No signup side effects run here; the welcome email never fires
// again for a linked identity.
func (sa *SocialAuthenticator) loginExisting(ctx context.Context, provider Provider, link *Link, profile *Profile, token *Token) (*AuthResult, error) {
	user, err := sa.users.GetByID(ctx, link.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, accounts.ErrIdentityNotFound
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, accounts.ErrAccountInactive
	}

	// keep provider tokens and profile data fresh on the existing link
	sa.applyProfile(link, profile, token)
	if err := sa.linkRepo.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to refresh social link: %w", err)
	}

	if err := sa.hooks.AfterSave(ctx, user, link, false); err != nil {
		return nil, err
	}

	return sa.finishLogin(ctx, provider, user, profile, false)
}

// loginNew provisions or adopts a local account, links the provider
// identity, and fires the first-login side effects exactly once.
func (sa *SocialAuthenticator) loginNew(ctx context.Context, provider Provider, profile *Profile, token *Token) (*AuthResult, error) {
	if sa.config.RequireEmailVerified && !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if profile.Email == "" {
		return nil, wrapProviderError(ErrUserInfoFailed, provider.Name(), "profile", nil)
	}

	user, err := sa.users.GetByIdentifier(ctx, profile.Email)
	isNewUser := false

	if err != nil {
		if !repository.IsRecordNotFound(err) && err != sql.ErrNoRows {
			return nil, err
		}

		if !sa.config.AllowSignup {
			return nil, ErrSignupNotAllowed
		}

		candidate := &accounts.User{
			Email:        profile.Email,
			IsActive:     true,
			PasswordHash: accounts.RandomPasswordHash(),
		}
		candidate = sa.hooks.PopulateUser(profile, candidate)

		user, err = sa.users.Register(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to provision account: %w", err)
		}
		isNewUser = true
	}

	if !user.IsActive {
		return nil, accounts.ErrAccountInactive
	}

	// an adopted password account skips its email confirmation entirely
	if !user.IsVerified {
		if _, err := sa.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to mark account verified: %w", err)
		}
		user.IsVerified = true
	}

	link := &Link{
		ID:             uuid.NewString(),
		UserID:         user.ID.String(),
		Provider:       provider.Name(),
		ProviderUserID: profile.ProviderUserID,
	}
	sa.applyProfile(link, profile, token)

	if err := sa.linkRepo.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to save social link: %w", err)
	}

	if err := sa.hooks.AfterSave(ctx, user, link, isNewUser); err != nil {
		return nil, err
	}

	if isNewUser {
		sa.sendWelcome(ctx, user)
	}

	return sa.finishLogin(ctx, provider, user, profile, isNewUser)
}

func (sa *SocialAuthenticator) applyProfile(link *Link, profile *Profile, token *Token) {
	if link == nil || profile == nil {
		return
	}

	link.Email = profile.Email
	link.Name = profile.Name
	link.AvatarURL = profile.AvatarURL
	link.ProfileData = profile.Raw

	if token != nil {
		link.AccessToken = token.AccessToken
		link.RefreshToken = token.RefreshToken
		if !token.ExpiresAt.IsZero() {
			expiresAt := token.ExpiresAt
			link.TokenExpiresAt = &expiresAt
		}
	}
}

func (sa *SocialAuthenticator) finishLogin(ctx context.Context, provider Provider, user *accounts.User, profile *Profile, isNewUser bool) (*AuthResult, error) {
	identity := accounts.NewIdentityFromUser(user)
	if identity == nil {
		return nil, accounts.ErrIdentityNotFound
	}

	jwtToken, err := sa.tokenService.Generate(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if sa.activitySink != nil {
		_ = sa.activitySink.Record(ctx, accounts.ActivityEvent{
			EventType:  accounts.ActivityEventSocialLogin,
			UserID:     identity.ID(),
			Actor:      accounts.ActorRef{Type: "social", ID: provider.Name()},
			OccurredAt: time.Now(),
			Metadata: map[string]any{
				"provider":         provider.Name(),
				"provider_user_id": profile.ProviderUserID,
				"is_new_user":      isNewUser,
			},
		})
	}

	return &AuthResult{
		User:      identity,
		Token:     jwtToken,
		IsNewUser: isNewUser,
		Provider:  provider.Name(),
		Profile:   profile,
		Message:   fmt.Sprintf("Successfully signed in as %s.", identity.Email()),
	}, nil
}

func (sa *SocialAuthenticator) sendWelcome(ctx context.Context, user *accounts.User) {
	if sa.mailer == nil || user == nil {
		return
	}

	templateName := sa.config.WelcomeTemplate
	if templateName == "" {
		templateName = "welcome"
	}

	err := sa.mailer.SendTemplate(ctx, user.Email, "Welcome to Our Platform!", templateName, map[string]any{
		"user":         user,
		"current_year": time.Now().Year(),
	})
	if err != nil {
		if sa.logger != nil {
			sa.logger.Error("failed to send welcome email to %s: %v", user.Email, err)
		}
		return
	}

	if sa.logger != nil {
		sa.logger.Info("welcome email sent to %s", user.Email)
	}
}
