package database

import "errors"

var (
	// ErrNoDatabase is returned when the database file is missing and
	// creation was not requested.
	ErrNoDatabase = errors.New("database not found")

	// ErrSessionNotFound is returned when no session matches an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAmbiguousID is returned when an id prefix matches several sessions.
	ErrAmbiguousID = errors.New("session id prefix is ambiguous")
)
