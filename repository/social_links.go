package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-accounts/social"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialLinkModel is the Bun model for social identity links.
type SocialLinkModel struct {
	bun.BaseModel `bun:"table:social_links"`

	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid"`
	UserID         uuid.UUID      `bun:"user_id,notnull,type:uuid"`
	Provider       string         `bun:"provider,notnull"`
	ProviderUserID string         `bun:"provider_user_id,notnull"`
	Email          string         `bun:"email"`
	Name           string         `bun:"name"`
	AvatarURL      string         `bun:"avatar_url"`
	AccessToken    string         `bun:"access_token"`
	RefreshToken   string         `bun:"refresh_token"`
	TokenExpiresAt *time.Time     `bun:"token_expires_at"`
	ProfileData    map[string]any `bun:"profile_data,type:jsonb"`
	CreatedAt      time.Time      `bun:"created_at,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,default:current_timestamp"`
}

// SocialLinkRepository implements social.LinkRepository using Bun.
type SocialLinkRepository struct {
	db *bun.DB
}

// NewSocialLinkRepository creates a new repository.
func NewSocialLinkRepository(db *bun.DB) *SocialLinkRepository {
	return &SocialLinkRepository{db: db}
}

var _ social.LinkRepository = (*SocialLinkRepository)(nil)

// CreateSchema creates the social_links table and the unique index the
// upsert conflict target depends on.
func (r *SocialLinkRepository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().
		Model((*SocialLinkModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := r.db.NewCreateIndex().
		Model((*SocialLinkModel)(nil)).
		Index("ux_social_links_provider_identity").
		Unique().
		Column("provider", "provider_user_id").
		IfNotExists().
		Exec(ctx)
	return err
}

// FindByProviderID implements social.LinkRepository.
func (r *SocialLinkRepository) FindByProviderID(ctx context.Context, provider, providerUserID string) (*social.Link, error) {
	var model SocialLinkModel
	err := r.db.NewSelect().
		Model(&model).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return r.toLink(&model), nil
}

// FindByUserID implements social.LinkRepository.
func (r *SocialLinkRepository) FindByUserID(ctx context.Context, userID string) ([]*social.Link, error) {
	var models []SocialLinkModel
	err := r.db.NewSelect().
		Model(&models).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []*social.Link{}, nil
		}
		return nil, err
	}

	links := make([]*social.Link, len(models))
	for i, m := range models {
		links[i] = r.toLink(&m)
	}
	return links, nil
}

// Upsert implements social.LinkRepository. The unique key is the
// (provider, provider_user_id) pair; a repeated login refreshes the row
// instead of inserting a duplicate.
func (r *SocialLinkRepository) Upsert(ctx context.Context, link *social.Link) error {
	model := r.fromLink(link)
	model.UpdatedAt = time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = model.UpdatedAt
	}

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (provider, provider_user_id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("email = EXCLUDED.email").
		Set("name = EXCLUDED.name").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("token_expires_at = EXCLUDED.token_expires_at").
		Set("profile_data = EXCLUDED.profile_data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// Delete implements social.LinkRepository.
func (r *SocialLinkRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*SocialLinkModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteByUserAndProvider implements social.LinkRepository.
func (r *SocialLinkRepository) DeleteByUserAndProvider(ctx context.Context, userID, provider string) error {
	_, err := r.db.NewDelete().
		Model((*SocialLinkModel)(nil)).
		Where("user_id = ? AND provider = ?", userID, provider).
		Exec(ctx)
	return err
}

func (r *SocialLinkRepository) toLink(m *SocialLinkModel) *social.Link {
	link := &social.Link{
		ID:             m.ID.String(),
		UserID:         m.UserID.String(),
		Provider:       m.Provider,
		ProviderUserID: m.ProviderUserID,
		Email:          m.Email,
		Name:           m.Name,
		AvatarURL:      m.AvatarURL,
		AccessToken:    m.AccessToken,
		RefreshToken:   m.RefreshToken,
		ProfileData:    m.ProfileData,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	link.TokenExpiresAt = m.TokenExpiresAt
	return link
}

func (r *SocialLinkRepository) fromLink(a *social.Link) *SocialLinkModel {
	if a == nil {
		return &SocialLinkModel{
			ID:          uuid.New(),
			ProfileData: map[string]any{},
		}
	}

	var id uuid.UUID
	if a.ID != "" {
		if parsed, err := uuid.Parse(a.ID); err == nil {
			id = parsed
		}
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	var userID uuid.UUID
	if a.UserID != "" {
		if parsed, err := uuid.Parse(a.UserID); err == nil {
			userID = parsed
		}
	}

	profileData := map[string]any{}
	if a.ProfileData != nil {
		profileData = a.ProfileData
	}

	model := &SocialLinkModel{
		ID:             id,
		UserID:         userID,
		Provider:       a.Provider,
		ProviderUserID: a.ProviderUserID,
		Email:          a.Email,
		Name:           a.Name,
		AvatarURL:      a.AvatarURL,
		AccessToken:    a.AccessToken,
		RefreshToken:   a.RefreshToken,
		ProfileData:    profileData,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	model.TokenExpiresAt = a.TokenExpiresAt
	return model
}
