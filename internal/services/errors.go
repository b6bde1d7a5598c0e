package services

import "errors"

// Service errors
var (
	ErrNoSource        = errors.New("ledger source has neither a path nor a reader")
	ErrUnknownArtifact = errors.New("unknown artifact kind")
)
