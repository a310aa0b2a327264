// Package repository implements the database access layer for the Health Check engine.
// Every repository obtains its connection through database.Conn so the same methods run
// inside a service transaction or directly on the pool.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup scoped to a company matches no row.
var ErrNotFound = errors.New("not found")

// notFound converts pgx.ErrNoRows into ErrNotFound and passes other errors through.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
