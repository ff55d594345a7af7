// Package provider wraps external generative-AI services behind
// canonical request/result types. Clients are stateless, safe for
// concurrent use, and never retry; callers bound each call with a
// context deadline.
package provider

import (
	"context"
	"fmt"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// DefaultQualityScore is recorded when the provider supplies no score.
const DefaultQualityScore = 0.8

type TextRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

type ImageRequest struct {
	Prompt  string
	Size    string
	Quality string
}

// Generation is the canonical provider result. Content is set for text
// kinds, FileURL for image kinds.
type Generation struct {
	Kind         Kind
	Content      string
	FileURL      string
	Metadata     map[string]any
	QualityScore float64
}

type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (*Generation, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*Generation, error)
}

// Error wraps any transport, auth, rate-limit, or malformed-response
// failure from a remote provider call.
type Error struct {
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// limiter caps concurrent outbound calls per provider so a burst of
// dispatched tasks cannot open an unbounded number of connections.
type limiter chan struct{}

func newLimiter(n int) limiter {
	if n <= 0 {
		n = 10
	}
	return make(limiter, n)
}

func (l limiter) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l limiter) release() { <-l }
