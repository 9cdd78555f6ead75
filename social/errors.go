package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "social_provider_not_found"
	TextCodeNoIdentityToken   = "social_no_id_token"
	TextCodeTokenExchangeFail = "social_token_exchange_failed"
	TextCodeTokenVerifyFail   = "social_token_verification_failed"
	TextCodeUserInfoFail      = "social_user_info_failed"
	TextCodeEmailNotVerified  = "social_email_not_verified"
	TextCodeSignupDisabled    = "social_signup_disabled"
	TextCodeLoginRejected     = "social_login_rejected"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrNoIdentityToken is returned when the token endpoint is called without
// an id_token value.
var ErrNoIdentityToken = errors.New("No id_token provided", errors.CategoryBadInput).
	WithTextCode(TextCodeNoIdentityToken).
	WithCode(errors.CodeBadRequest)

// ErrNoAuthorizationCode is returned when the code exchange endpoint is
// called without an authorization code.
var ErrNoAuthorizationCode = errors.New("No authorization code provided", errors.CategoryBadInput).
	WithTextCode(TextCodeNoIdentityToken).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeBadRequest)

// ErrTokenVerificationFailed is returned when an identity token fails
// signature or claim checks.
var ErrTokenVerificationFailed = errors.New("identity token verification failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenVerifyFail).
	WithCode(errors.CodeBadRequest)

// ErrUserInfoFailed is returned when fetching user info fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeBadRequest)

// ErrEmailNotVerified is returned when a provider email is not verified.
var ErrEmailNotVerified = errors.New("email not verified", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrSignupNotAllowed is returned when auto provisioning is disabled.
var ErrSignupNotAllowed = errors.New("signup not allowed", errors.CategoryAuth).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(errors.CodeForbidden)

// ErrLoginRejected is returned when a pre-login policy hook turns the
// profile away.
var ErrLoginRejected = errors.New("social login rejected", errors.CategoryAuth).
	WithTextCode(TextCodeLoginRejected).
	WithCode(errors.CodeForbidden)
