package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account identity record
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name" json:"last_name,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	IsVerified     bool       `bun:"is_verified" json:"is_verified"`
	EmailMarketing bool       `bun:"email_marketing" json:"email_marketing"`
	SMSMarketing   bool       `bun:"sms_marketing" json:"sms_marketing"`
	TOSAccepted    bool       `bun:"tos_accepted" json:"tos_accepted"`
	TOSAcceptedAt  *time.Time `bun:"tos_accepted_at,nullzero" json:"tos_accepted_at,omitempty"`
	IsActive       bool       `bun:"is_active" json:"is_active"`
	DateOfBirth    *time.Time `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	AvatarURL      string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*User)(nil)

// BeforeAppendModel stamps TOSAcceptedAt the first time TOSAccepted turns
// true. The timestamp is never cleared here: withdrawal handling is
// deliberately not implemented, only the set-once transition is.
func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if u.TOSAccepted && u.TOSAcceptedAt == nil {
		now := time.Now()
		u.TOSAcceptedAt = &now
	}
	return nil
}

// FullName joins the user's name parts for notification templates.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// ConfirmationStatus is the email confirmation token state
type ConfirmationStatus = string

const (
	// ConfirmationIssued means the token is live and can be consumed
	ConfirmationIssued ConfirmationStatus = "issued"
	// ConfirmationConsumed is terminal, the token was presented and accepted
	ConfirmationConsumed ConfirmationStatus = "consumed"
)

// EmailConfirmation is a single-use, time-limited token proving control of
// an email address. Expiry is lazy: an issued token past ExpiresAt is
// rejected on presentation, there is no background sweep.
type EmailConfirmation struct {
	bun.BaseModel `bun:"table:email_confirmations,alias:cnf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Key           string     `bun:"key,notnull,unique" json:"-"`
	UserID        *uuid.UUID `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:has-one,join:user_id=id" json:"user,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewEmailConfirmation issues a confirmation token for the user's address.
func NewEmailConfirmation(user *User, expiry time.Duration) *EmailConfirmation {
	return &EmailConfirmation{
		ID:        uuid.New(),
		Key:       uuid.NewString(),
		UserID:    &user.ID,
		Email:     user.Email,
		Status:    ConfirmationIssued,
		ExpiresAt: time.Now().Add(expiry),
	}
}

// Expired reports whether the token is past its expiry window.
func (c *EmailConfirmation) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

// PasswordResetStep identifies the stage of the reset flow a client is in
type PasswordResetStep = string

const (
	// ResetUnknown is the unknown status
	ResetUnknown PasswordResetStep = "unknown"
	// ResetInit is the initial step
	ResetInit PasswordResetStep = "show-reset"
	//AccountVerification notifiction sent
	AccountVerification PasswordResetStep = "email-sent"
	// ChangingPassword user will change password
	ChangingPassword PasswordResetStep = "change-password"
	// ChangeFinalized processing change
	ChangeFinalized PasswordResetStep = "password-changed"
)

const (
	// ResetRequestedStatus is the requested status
	ResetRequestedStatus = "requested"
	// ResetExpiredStatus is the expired status
	ResetExpiredStatus = "expired"
	// ResetChangedStatus is the changed status
	ResetChangedStatus = "changed"
)

// PasswordReset is a single-use password reset request
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_reset,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        *uuid.UUID `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:has-one,join:user_id=id" json:"user,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// MarkPasswordAsReseted will create a new instance
func MarkPasswordAsReseted(id uuid.UUID) *PasswordReset {
	r := &PasswordReset{}
	r.ID = id
	r.Status = ResetChangedStatus
	n := time.Now()
	r.ResetedAt = &n
	return r
}

// AddressType classifies an address record
type AddressType = string

const (
	AddressShipping AddressType = "shipping"
	AddressBilling  AddressType = "billing"
	AddressBoth     AddressType = "both"
)

// Address is a profile sub-record owned by a user
type Address struct {
	bun.BaseModel  `bun:"table:addresses,alias:adr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID         *uuid.UUID `bun:"user_id,notnull" json:"user_id,omitempty"`
	AddressType    string     `bun:"address_type,notnull" json:"address_type,omitempty"`
	IsPrimary      bool       `bun:"is_primary" json:"is_primary"`
	FullName       string     `bun:"full_name,notnull" json:"full_name,omitempty"`
	StreetAddress1 string     `bun:"street_address1,notnull" json:"street_address1,omitempty"`
	StreetAddress2 string     `bun:"street_address2" json:"street_address2,omitempty"`
	City           string     `bun:"city,notnull" json:"city,omitempty"`
	StateProvince  string     `bun:"state_province" json:"state_province,omitempty"`
	PostalCode     string     `bun:"postal_code,notnull" json:"postal_code,omitempty"`
	Country        string     `bun:"country,notnull" json:"country,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PhoneType classifies a phone record
type PhoneType = string

const (
	PhoneMobile PhoneType = "mobile"
	PhoneHome   PhoneType = "home"
	PhoneWork   PhoneType = "work"
)

// Phone owner kinds. Phones attach to any taggable owner through the
// OwnerType + OwnerID pair rather than a hard foreign key.
const (
	PhoneOwnerUser    = "user"
	PhoneOwnerAddress = "address"
)

// Phone is a phone number attached to a user or an address
type Phone struct {
	bun.BaseModel `bun:"table:phones,alias:phn"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerType     string     `bun:"owner_type,notnull" json:"owner_type,omitempty"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	PhoneType     string     `bun:"phone_type,notnull" json:"phone_type,omitempty"`
	CountryCode   string     `bun:"country_code" json:"country_code,omitempty"`
	Number        string     `bun:"number,notnull" json:"number,omitempty"`
	IsVerified    bool       `bun:"is_verified" json:"is_verified"`
	IsPrimary     bool       `bun:"is_primary" json:"is_primary"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
