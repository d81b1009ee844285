package core

import "errors"

// Failure taxonomy shared across the ledger, generation client, storage
// manager and orchestrator. Callers discriminate with errors.Is.
var (
	// ErrInsufficientCredits indicates the balance cannot cover the
	// requested cost. No state has changed when it is returned.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrTransport indicates a network-level failure reaching an upstream
	// generative service.
	ErrTransport = errors.New("transport failure")

	// ErrAuth indicates the upstream service rejected the credentials.
	ErrAuth = errors.New("authentication rejected")

	// ErrMalformedResponse indicates the upstream returned output that does
	// not parse against the expected schema.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrGenerationFailed indicates an empty or rejected generation result.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrPersistence indicates a disk or secure-store write failed.
	ErrPersistence = errors.New("persistence failure")
)
