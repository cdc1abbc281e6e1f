package testutil

import (
	"net/http"

	id "linkforge/pkg/domain"
	"linkforge/pkg/requestcontext"
)

// AsOwner adds the acting owner to the request context, simulating what the
// actor middleware does for requests carrying the owner header.
func AsOwner(req *http.Request, ownerID id.OwnerID) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorInfo{OwnerID: ownerID})
	return req.WithContext(ctx)
}

// AsAdmin marks the request as performed by an operator.
func AsAdmin(req *http.Request) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorInfo{Admin: true})
	return req.WithContext(ctx)
}

// WithAdminToken sets the admin token header the admin middleware checks.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set("X-Admin-Token", token)
	return req
}

// WithOwnerHeader sets the owner header the actor middleware resolves.
func WithOwnerHeader(req *http.Request, ownerID id.OwnerID) *http.Request {
	req.Header.Set("X-Owner-ID", ownerID.String())
	return req
}
