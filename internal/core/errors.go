package core

import "errors"

var (
	// ErrAlreadyProcessed signals a duplicate idempotency key. Callers
	// must treat it as "already handled", not as a failure.
	ErrAlreadyProcessed = errors.New("event already processed")

	// ErrDuplicateWord signals a case-insensitive word collision on insert.
	ErrDuplicateWord = errors.New("word already exists")

	// ErrAlreadyResolved means the item left pending before this update
	// ran, usually because a concurrent event transitioned it first.
	ErrAlreadyResolved = errors.New("item already resolved")

	// ErrRateLimited is a retryable denial from an outbound gate. The
	// triggering event must not be marked processed.
	ErrRateLimited = errors.New("rate limited, try later")

	// ErrAwaitingResponse means an item is still pending and no new word
	// may be generated.
	ErrAwaitingResponse = errors.New("awaiting response to pending word")

	// ErrNoUniqueWord is terminal: generation kept producing words that
	// already exist in history.
	ErrNoUniqueWord = errors.New("no unique word found")

	// ErrGenerationFailed is terminal: the backend produced no parseable
	// word within the retry budget.
	ErrGenerationFailed = errors.New("word generation failed")
)
