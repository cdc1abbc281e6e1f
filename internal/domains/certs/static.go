package certs

import (
	"context"
	"time"

	"linkforge/pkg/requestcontext"
)

// Static is a canned provisioner for tests and development. When Err is set
// every call fails with it; otherwise each call issues a 90-day certificate
// dated from the request clock.
type Static struct {
	Err      error
	Lifetime time.Duration
	// Calls counts Provision invocations. Not safe for concurrent use;
	// tests drive it from one goroutine.
	Calls int
}

func (s *Static) Provision(ctx context.Context, _ string) (Certificate, error) {
	s.Calls++
	if s.Err != nil {
		return Certificate{}, s.Err
	}
	lifetime := s.Lifetime
	if lifetime <= 0 {
		lifetime = 90 * 24 * time.Hour
	}
	now := requestcontext.Now(ctx)
	return Certificate{
		Provider:  "static",
		IssuedAt:  now,
		ExpiresAt: now.Add(lifetime),
	}, nil
}
