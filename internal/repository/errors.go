package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = pgx.ErrNoRows

// ErrStatusConflict is returned when a conditional update lost the race on status.
var ErrStatusConflict = errors.New("repository: status changed concurrently")

// invalidTextRepresentation is raised by Postgres for malformed input such as a bad UUID.
const invalidTextRepresentation = "22P02"

// lookupError reports a malformed id as a missing row; no row can match it.
func lookupError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return ErrNotFound
	}
	return err
}
