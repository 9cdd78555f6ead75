package social

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
)

// PreLoginFunc runs after the provider profile is resolved and before any
// account lookup. Returning an error rejects the login. The existing flag is
// true when a link for this provider identity already exists; hooks must not
// run signup side effects in that case.
type PreLoginFunc func(ctx context.Context, profile *Profile, existing bool) error

// PopulateUserFunc fills a freshly provisioned account from the provider
// profile. It runs only for accounts created by this login.
type PopulateUserFunc func(profile *Profile, user *accounts.User) *accounts.User

// AfterSaveFunc runs after the account and link have been persisted.
type AfterSaveFunc func(ctx context.Context, user *accounts.User, link *Link, isNew bool) error

// Hooks are the policy extension points of the login pipeline. They are
// plain functions composed explicitly; each one is optional.
type Hooks struct {
	PreLogin     PreLoginFunc
	PopulateUser PopulateUserFunc
	AfterSave    AfterSaveFunc
}

func (h Hooks) normalized() Hooks {
	out := h
	if out.PreLogin == nil {
		out.PreLogin = func(ctx context.Context, profile *Profile, existing bool) error {
			return nil
		}
	}
	if out.PopulateUser == nil {
		out.PopulateUser = DefaultPopulateUser
	}
	if out.AfterSave == nil {
		out.AfterSave = func(ctx context.Context, user *accounts.User, link *Link, isNew bool) error {
			return nil
		}
	}
	return out
}

// DefaultPopulateUser copies the provider profile's name fields onto the
// account and marks it verified. Social providers are treated as having
// already verified the email.
func DefaultPopulateUser(profile *Profile, user *accounts.User) *accounts.User {
	if user == nil || profile == nil {
		return user
	}

	if user.FirstName == "" {
		user.FirstName = profile.FirstName
	}
	if user.LastName == "" {
		user.LastName = profile.LastName
	}
	if user.Email == "" {
		user.Email = profile.Email
	}
	user.IsVerified = true

	return user
}
