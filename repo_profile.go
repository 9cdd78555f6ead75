package accounts

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is the parsing hint for numbers without a country code.
var DefaultPhoneRegion = "US"

func NewAddressesRepository(db *bun.DB) repository.Repository[*Address] {
	handlers := repository.ModelHandlers[*Address]{
		NewRecord: func() *Address {
			return &Address{}
		},
		GetID: func(record *Address) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Address, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	}
	return repository.NewRepository(db, handlers)
}

type Phones interface {
	repository.Repository[*Phone]

	// CreateNormalized validates the number against the phone metadata set
	// and stores it split into country code + national significant number.
	CreateNormalized(ctx context.Context, record *Phone) (*Phone, error)
	CreateNormalizedTx(ctx context.Context, tx bun.IDB, record *Phone) (*Phone, error)

	ListByOwner(ctx context.Context, ownerType string, ownerID uuid.UUID) ([]*Phone, error)
}

type phones struct {
	repository.Repository[*Phone]
	db *bun.DB
}

var _ Phones = (*phones)(nil)

func NewPhonesRepository(db *bun.DB) Phones {
	repo := repository.NewRepository[*Phone](db, repository.ModelHandlers[*Phone]{
		NewRecord: func() *Phone { return &Phone{} },
		GetID: func(p *Phone) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Phone, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &phones{
		Repository: repo,
		db:         db,
	}
}

func (p *phones) CreateNormalized(ctx context.Context, record *Phone) (*Phone, error) {
	return p.CreateNormalizedTx(ctx, p.db, record)
}

func (p *phones) CreateNormalizedTx(ctx context.Context, tx bun.IDB, record *Phone) (*Phone, error) {
	countryCode, national, err := NormalizePhoneNumber(record.CountryCode+record.Number, DefaultPhoneRegion)
	if err != nil {
		return nil, err
	}

	record.CountryCode = countryCode
	record.Number = national

	return p.Repository.CreateTx(ctx, tx, record)
}

func (p *phones) ListByOwner(ctx context.Context, ownerType string, ownerID uuid.UUID) ([]*Phone, error) {
	var records []*Phone

	err := p.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_type = ?", ownerType).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("is_primary DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// NormalizePhoneNumber parses raw through the phonenumbers metadata and
// returns the "+NN" country code prefix and the national significant number.
func NormalizePhoneNumber(raw, region string) (string, string, error) {
	parsed, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", "", errors.Wrap(err, errors.CategoryValidation, "invalid phone number").
			WithCode(errors.CodeBadRequest)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", "", errors.New("phone number is not valid for its region", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	countryCode := fmt.Sprintf("+%d", parsed.GetCountryCode())
	national := phonenumbers.GetNationalSignificantNumber(parsed)

	return countryCode, national, nil
}
