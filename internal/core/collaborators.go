package core

import "context"

// Platform is the message-platform collaborator. Thread refs are opaque
// strings owned by the adapter.
type Platform interface {
	// CreateThread opens a new discussion thread with text as its
	// headline message and returns the thread ref.
	CreateThread(ctx context.Context, text string) (string, error)
	// PostToThread posts a reply into an existing thread and returns a
	// message ref.
	PostToThread(ctx context.Context, threadRef, text string) (string, error)
	// GetThreadMessages returns the thread's conversation history in
	// chronological order.
	GetThreadMessages(ctx context.Context, threadRef string) ([]ThreadMessage, error)
}

type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Completer is the generative text backend: prompt in, free text out.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
