// Package service holds the prediction game's business rules: scoring,
// prediction submission, match administration, fixture sync and ranking.
// Services own their transactions and hand repositories a *sql.Tx.
package service

import "errors"

var (
	// ErrInvalidInput reports a request that fails validation before any
	// storage access.
	ErrInvalidInput = errors.New("invalid input")

	ErrMatchNotFound = errors.New("match not found")

	// ErrMatchStarted is returned when a prediction arrives at or after kickoff.
	ErrMatchStarted = errors.New("match already started")

	// ErrNothingToSave is returned for an empty batch.
	ErrNothingToSave = errors.New("nothing to save")

	// ErrNoFixtureData means the provider answered but returned no fixtures.
	// It is a no-op, not a failure.
	ErrNoFixtureData = errors.New("no fixture data")

	// ErrProviderUnavailable wraps any failure talking to the fixture
	// provider.  The match store is untouched when it is returned.
	ErrProviderUnavailable = errors.New("fixture provider unavailable")

	ErrForbidden = errors.New("forbidden")
)
