package social

import (
	"context"
	"time"
)

// Link associates a local account with a provider identity. At most one
// account may hold a given (provider, provider_user_id) pair.
type Link struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Provider       string         `json:"provider"`
	ProviderUserID string         `json:"provider_user_id"`
	Email          string         `json:"email,omitempty"`
	Name           string         `json:"name,omitempty"`
	AvatarURL      string         `json:"avatar_url,omitempty"`
	AccessToken    string         `json:"-"`
	RefreshToken   string         `json:"-"`
	TokenExpiresAt *time.Time     `json:"token_expires_at,omitempty"`
	ProfileData    map[string]any `json:"profile_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// LinkRepository manages social link persistence.
type LinkRepository interface {
	FindByProviderID(ctx context.Context, provider, providerUserID string) (*Link, error)
	FindByUserID(ctx context.Context, userID string) ([]*Link, error)
	Upsert(ctx context.Context, link *Link) error
	Delete(ctx context.Context, id string) error
	DeleteByUserAndProvider(ctx context.Context, userID, provider string) error
}
