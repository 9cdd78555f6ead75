package accounts

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = stderrors.New("identity not found")

// ErrNoEmptyString guards against hashing empty passwords
var ErrNoEmptyString = stderrors.New("password must not be empty")

// ErrMismatchedHashAndPassword wraps the bcrypt mismatch error
var ErrMismatchedHashAndPassword = stderrors.New("password does not match")

// ErrAccountInactive is returned when a deactivated account tries to log in
var ErrAccountInactive = stderrors.New("account is inactive")

// ErrTokenExpired is returned for session tokens past their expiry
var ErrTokenExpired = stderrors.New("token is expired")

// ErrTokenMalformed is returned for tokens that fail to parse or verify
var ErrTokenMalformed = stderrors.New("token is malformed")

// ErrUnableToDecodeSession unable to decode JWT session claims
var ErrUnableToDecodeSession = stderrors.New("unable to decode session")

const (
	// TextCodeEmailTaken marks a uniqueness violation on the email column
	TextCodeEmailTaken = "account_email_taken"
	// TextCodeTokenExpired marks an expired confirmation or reset token
	TextCodeTokenExpired = "token_expired"
	// TextCodeTokenUsed marks a consumed single-use token
	TextCodeTokenUsed = "token_already_used"
	// TextCodeMailDelivery marks a transactional email transport failure
	TextCodeMailDelivery = "mail_delivery_failed"
)

// NewConflictError builds the uniqueness-violation error kind the controller
// maps to a 409 class response.
func NewConflictError(msg string) *errors.Error {
	return errors.New(msg, errors.CategoryConflict).
		WithTextCode(TextCodeEmailTaken).
		WithCode(errors.CodeConflict)
}

// NewTokenNotFoundError covers both unknown and expired tokens without
// leaking which of the two it was.
func NewTokenNotFoundError() *errors.Error {
	return errors.New("invalid or expired token", errors.CategoryNotFound).
		WithCode(errors.CodeNotFound)
}

// NewTransportError wraps an outbound email failure as a server-error class.
func NewTransportError(err error, msg string) *errors.Error {
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode(TextCodeMailDelivery).
		WithCode(errors.CodeInternal)
}

// IsConflict reports whether err is a uniqueness-violation class error.
func IsConflict(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryConflict
	}
	return false
}

// IsValidation reports whether err carries field-level validation detail.
func IsValidation(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryValidation
	}
	return false
}

// IsTransport reports whether err came from the outbound mail transport.
func IsTransport(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeMailDelivery
	}
	return false
}
