// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is the sentinel for failed authentication or a denied
// authorization decision. Providers wrap it so the transport layer can map
// any cause to a 401 without inspecting provider-specific errors:
//
//	return nil, fmt.Errorf("token expired: %w", extensions.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo is the identity attached to a request after its bearer token
// has been validated. UserID is the only field the catalog relies on; it
// ends up in audit events and must never be empty. Email and Roles carry
// whatever the identity provider reported and may be empty.
type AuthInfo struct {
	UserID string
	Email  string
	Roles  []string
}

// AuthProvider validates bearer tokens presented to the catalog API.
//
// The open source build uses NopAuthProvider, which accepts anything; the
// cmd/catalog launcher swaps in a static-token provider when an API token
// is configured. Enterprise builds validate against an identity provider
// (Okta, Auth0, Azure AD) instead.
//
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	// The token format is provider-specific (JWT, API key, session ID).
	// Invalid tokens return an error wrapping ErrUnauthorized; other
	// errors indicate a provider failure, not a rejection.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest is one access-control question: may this user perform this
// action on this resource? ResourceType names the catalog noun involved
// ("context", "field", "observation_batch"); ResourceID narrows the check
// to one instance and may be empty for type-level checks.
type AuthzRequest struct {
	User         *AuthInfo
	Action       string
	ResourceType string
	ResourceID   string
}

// AuthzProvider decides AuthzRequests. The handlers consult it before
// every mutation; a denial wraps ErrUnauthorized and aborts the request.
//
// Implementations must be safe for concurrent use.
type AuthzProvider interface {
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider accepts every token and reports a local admin user.
// This is the default for single-user local deployments, where requiring
// a real token would only get in the way of the CLI.
type NopAuthProvider struct{}

// Validate ignores the token and returns the local user.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// NopAuthzProvider allows every action. Local deployments have exactly
// one user, so there is nothing to decide.
type NopAuthzProvider struct{}

// Authorize always permits the request.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
