package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeConfirmationSQL transitions a token from issued to consumed in one
// conditional statement. A concurrent presentation of the same key races on
// the status predicate, so exactly one caller ever sees the returned row.
var ConsumeConfirmationSQL = `UPDATE "email_confirmations" AS "cnf"
SET
	"status" = 'consumed',
	"consumed_at" = ?
WHERE
	"cnf"."key" = ?
AND "cnf"."status" = 'issued'
AND "cnf"."expires_at" > ?
RETURNING *;`

// DeleteConfirmationsByUserSQL clears a user's tokens during registration
// compensation.
var DeleteConfirmationsByUserSQL = `DELETE FROM "email_confirmations"
WHERE "user_id" = ?
RETURNING *;`

type Confirmations interface {
	repository.Repository[*EmailConfirmation]

	GetByKey(ctx context.Context, key string) (*EmailConfirmation, error)
	GetByKeyTx(ctx context.Context, tx bun.IDB, key string) (*EmailConfirmation, error)

	// Consume atomically marks the token consumed. It returns the consumed
	// record, or a record-not-found error when the key is unknown, already
	// consumed, or past expiry.
	Consume(ctx context.Context, key string) (*EmailConfirmation, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, key string) (*EmailConfirmation, error)

	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type confirmations struct {
	repository.Repository[*EmailConfirmation]
	db *bun.DB
}

var _ Confirmations = (*confirmations)(nil)

func NewConfirmationsRepository(db *bun.DB) Confirmations {
	repo := repository.NewRepository[*EmailConfirmation](db, repository.ModelHandlers[*EmailConfirmation]{
		NewRecord: func() *EmailConfirmation { return &EmailConfirmation{} },
		GetID: func(c *EmailConfirmation) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *EmailConfirmation, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "key"
		},
	})

	return &confirmations{
		Repository: repo,
		db:         db,
	}
}

func (c *confirmations) GetByKey(ctx context.Context, key string) (*EmailConfirmation, error) {
	return c.GetByKeyTx(ctx, c.db, key)
}

func (c *confirmations) GetByKeyTx(ctx context.Context, tx bun.IDB, key string) (*EmailConfirmation, error) {
	record := &EmailConfirmation{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"key": key,
				})
		}
		return nil, err
	}

	return record, nil
}

func (c *confirmations) Consume(ctx context.Context, key string) (*EmailConfirmation, error) {
	return c.ConsumeTx(ctx, c.db, key)
}

func (c *confirmations) ConsumeTx(ctx context.Context, tx bun.IDB, key string) (*EmailConfirmation, error) {
	now := time.Now()
	res, err := c.Repository.RawTx(ctx, tx, ConsumeConfirmationSQL, now, key, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"key": key,
			})
	}

	return res[0], nil
}

func (c *confirmations) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return c.DeleteByUserTx(ctx, c.db, userID)
}

func (c *confirmations) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := c.Repository.RawTx(ctx, tx, DeleteConfirmationsByUserSQL, userID.String())
	return err
}
