package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound maps sql.ErrNoRows to (nil, nil) so Find* callers can treat
// an absent row as a value rather than a failure.
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// rowsAffected unwraps an Exec result.
func rowsAffected(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// transitioned reports whether a conditional UPDATE won its guard.
func transitioned(result sql.Result, err error) (bool, error) {
	n, err := rowsAffected(result, err)
	return n > 0, err
}
