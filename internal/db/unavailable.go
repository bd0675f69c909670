package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUnavailable = errors.New("database unavailable")

// Unavailable stands in for a pool that could not be opened. Every call
// fails with ErrUnavailable.
var Unavailable Querier = unavailable{}

type unavailable struct{}

func (unavailable) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, ErrUnavailable
}

func (unavailable) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, ErrUnavailable
}

func (unavailable) QueryRow(context.Context, string, ...any) pgx.Row {
	return unavailableRow{}
}

type unavailableRow struct{}

func (unavailableRow) Scan(...any) error { return ErrUnavailable }
