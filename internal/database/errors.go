package database

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrAlreadyExists is returned when an insert hits a uniqueness constraint.
// Callers translate it into an "already added" outcome instead of a generic
// failure.
var ErrAlreadyExists = errors.New("already exists")

// translateWriteError maps driver-level duplicate key errors onto the named
// outcome, so no call site ever inspects transport error codes.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}
