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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthProvider struct{ userID string }

func (p *stubAuthProvider) Validate(context.Context, string) (*AuthInfo, error) {
	return &AuthInfo{UserID: p.userID}, nil
}

type stubAuthzProvider struct{ err error }

func (p *stubAuthzProvider) Authorize(context.Context, AuthzRequest) error {
	return p.err
}

type stubAuditLogger struct{ events []AuditEvent }

func (l *stubAuditLogger) Log(_ context.Context, event AuditEvent) error {
	l.events = append(l.events, event)
	return nil
}

type stubValueFilter struct{}

func (f *stubValueFilter) FilterValue(_ context.Context, _, value string) (*FilterResult, error) {
	return &FilterResult{Original: value, Filtered: value}, nil
}

func (f *stubValueFilter) FilterQuery(_ context.Context, query string) (*FilterResult, error) {
	return &FilterResult{Original: query, Filtered: query}, nil
}

func TestDefaultOptions_AllSeamsPopulated(t *testing.T) {
	opts := DefaultOptions()

	assert.IsType(t, &NopAuthProvider{}, opts.AuthProvider)
	assert.IsType(t, &NopAuthzProvider{}, opts.AuthzProvider)
	assert.IsType(t, &NopAuditLogger{}, opts.AuditLogger)
	assert.IsType(t, &NopValueFilter{}, opts.ValueFilter)
}

func TestServiceOptions_WithReplacesOnlyTargetSeam(t *testing.T) {
	base := DefaultOptions()

	custom := &stubAuthProvider{userID: "okta-user"}
	opts := base.WithAuth(custom)

	assert.Same(t, custom, opts.AuthProvider.(*stubAuthProvider))
	assert.IsType(t, &NopAuthzProvider{}, opts.AuthzProvider)
	assert.IsType(t, &NopAuditLogger{}, opts.AuditLogger)

	// The receiver is copied, not mutated.
	assert.IsType(t, &NopAuthProvider{}, base.AuthProvider)
}

func TestServiceOptions_WithChaining(t *testing.T) {
	authz := &stubAuthzProvider{}
	audit := &stubAuditLogger{}
	filter := &stubValueFilter{}

	opts := DefaultOptions().
		WithAuthz(authz).
		WithAudit(audit).
		WithFilter(filter)

	assert.Same(t, authz, opts.AuthzProvider.(*stubAuthzProvider))
	assert.Same(t, audit, opts.AuditLogger.(*stubAuditLogger))
	assert.Same(t, filter, opts.ValueFilter.(*stubValueFilter))
}

func TestNopAuthProvider_AcceptsAnyToken(t *testing.T) {
	provider := &NopAuthProvider{}

	for _, token := range []string{"", "anything", "Bearer junk"} {
		info, err := provider.Validate(context.Background(), token)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "local-user", info.UserID)
		assert.Contains(t, info.Roles, "admin")
	}
}

func TestNopAuthzProvider_AllowsEverything(t *testing.T) {
	provider := &NopAuthzProvider{}

	err := provider.Authorize(context.Background(), AuthzRequest{
		User:         &AuthInfo{UserID: "local-user"},
		Action:       "delete",
		ResourceType: "context",
		ResourceID:   "invoice-inbound",
	})
	assert.NoError(t, err)
}

func TestNopAuditLogger_DiscardsEvents(t *testing.T) {
	logger := &NopAuditLogger{}

	err := logger.Log(context.Background(), AuditEvent{
		EventType: "context.create",
		UserID:    "local-user",
	})
	assert.NoError(t, err)
}

func TestNopValueFilter_PassesValuesThrough(t *testing.T) {
	filter := &NopValueFilter{}

	result, err := filter.FilterValue(context.Background(), "ssn", "123-45-6789")
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", result.Filtered)
	assert.False(t, result.WasModified)
	assert.False(t, result.WasBlocked)

	result, err = filter.FilterQuery(context.Background(), "amount")
	require.NoError(t, err)
	assert.Equal(t, "amount", result.Filtered)
	assert.False(t, result.WasBlocked)
}

func TestErrUnauthorized_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("token expired: %w", ErrUnauthorized)

	assert.True(t, errors.Is(wrapped, ErrUnauthorized))
	assert.False(t, errors.Is(errors.New("unauthorized"), ErrUnauthorized))
}
