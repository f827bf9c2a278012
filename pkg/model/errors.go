package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrParse is returned when a persisted example record is malformed
	ErrParse = goerr.New("malformed example record")

	// ErrStoreWrite is returned when an example could not be persisted
	ErrStoreWrite = goerr.New("failed to write example")

	// ErrOracle is returned when an external classifier or fallback oracle fails or times out
	ErrOracle = goerr.New("oracle unavailable")

	// ErrInvalidEmbedding is returned for vectors with wrong dimension or non-unit norm
	ErrInvalidEmbedding = goerr.New("invalid embedding")

	// ErrNoEvidence is returned when neither model nor memory yields a label
	ErrNoEvidence = goerr.New("no evidence for prediction")

	// ErrInvalidInput is returned for requests with missing text or unknown labels
	ErrInvalidInput = goerr.New("invalid input")

	// ErrInvalidConfig is returned when routing parameters are out of range
	ErrInvalidConfig = goerr.New("invalid configuration")
)
