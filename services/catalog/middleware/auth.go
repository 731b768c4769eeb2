// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware holds the Gin middleware in front of the catalog
// API: bearer-token authentication and ingest rate limiting.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// authInfoKey namespaces the AuthInfo entry in the Gin context so it
// cannot collide with handler-set values.
const authInfoKey = "fieldscope_auth_info"

// SetAuthInfo attaches the authenticated identity to the request
// context. AuthMiddleware calls this after a successful Validate.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the identity AuthMiddleware stored, or nil when
// the request never passed through it. Handlers use it to stamp the
// UserID on audit events and authorization checks.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// AuthMiddleware validates every request against the given provider
// and rejects failures with a 401 in the shared error envelope.
//
// A missing or malformed Authorization header is passed to Validate as
// an empty token rather than rejected here; whether an empty token is
// acceptable is the provider's decision. The default NopAuthProvider
// accepts it, so a bare local deployment needs no credentials at all.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			message := "authentication failed"
			if errors.Is(err, extensions.ErrUnauthorized) {
				message = "unauthorized"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, datatypes.ErrorResponse{
				Message: message,
				Status:  http.StatusUnauthorized,
				Code:    datatypes.CodeUnauthorized,
			})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

// extractBearerToken pulls the token out of "Authorization: Bearer
// <token>". The scheme comparison is case-insensitive per RFC 7235.
// Anything that does not parse yields the empty string.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
