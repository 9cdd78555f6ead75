package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Models returns every bun model this package persists, in dependency order.
func Models() []any {
	return []any{
		(*User)(nil),
		(*EmailConfirmation)(nil),
		(*PasswordReset)(nil),
		(*Address)(nil),
		(*Phone)(nil),
	}
}

// CreateSchema creates the backing tables if missing. Deployments with a
// migration pipeline own their DDL; this is the bootstrap for embedded
// sqlite setups and tests.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create schema")
		}
	}
	return nil
}
