// Package directory resolves delivery actors' contact details.
package directory

import (
	"context"
	"database/sql"
	"errors"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/validation"
	"cakeshop-notifier/internal/models"
)

const lookupQuery = `SELECT id, name, COALESCE(email, ''), COALESCE(phone, '') FROM delivery_boys WHERE id = $1`

// Directory looks up actors by id.
type Directory interface {
	Lookup(ctx context.Context, actorID int64) (models.Actor, error)
}

type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Lookup(ctx context.Context, actorID int64) (models.Actor, error) {
	var a models.Actor
	err := d.db.QueryRowContext(ctx, lookupQuery, actorID).Scan(&a.ID, &a.Name, &a.Email, &a.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Actor{}, apperrors.NewActorNotFoundError(actorID)
		}
		return models.Actor{}, apperrors.NewQueryExecutionFailedError("lookup_delivery_boy", err)
	}
	return withValidEmail(a), nil
}

// Static serves a fixed set of actors. Used when no database is configured.
type Static map[int64]models.Actor

func (s Static) Lookup(_ context.Context, actorID int64) (models.Actor, error) {
	a, ok := s[actorID]
	if !ok {
		return models.Actor{}, apperrors.NewActorNotFoundError(actorID)
	}
	return withValidEmail(a), nil
}

// withValidEmail drops an address that is not a single well-formed mailbox,
// which leaves the actor without an email channel.
func withValidEmail(a models.Actor) models.Actor {
	if a.Email != "" && !validation.ValidateEmail(a.Email) {
		a.Email = ""
	}
	return a
}
