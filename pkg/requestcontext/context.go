// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, requestcontext.ActorInfo{OwnerID: id, Admin: false})
package requestcontext

import (
	"context"
	"time"

	id "linkforge/pkg/domain"
)

// ActorInfo identifies who is performing an operation. Admin actors bypass
// ownership checks on delete and drive the blacklist operations.
type ActorInfo struct {
	OwnerID id.OwnerID
	Admin   bool
}

// Context key types (unexported for encapsulation).
type (
	actorKey       struct{}
	requestTimeKey struct{}
)

// WithActor stores the requesting actor in context.
func WithActor(ctx context.Context, actor ActorInfo) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the requesting actor, or the zero ActorInfo when unset.
func Actor(ctx context.Context) ActorInfo {
	v, _ := ctx.Value(actorKey{}).(ActorInfo)
	return v
}

// WithTime pins the request time. Middleware sets this once per request so a
// single operation observes one consistent clock; tests use it to freeze time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the request time if pinned, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
