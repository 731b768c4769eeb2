// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/engine"
	"github.com/AleutianAI/FieldScope/services/catalog/handlers"
	"github.com/AleutianAI/FieldScope/services/catalog/middleware"
	"github.com/AleutianAI/FieldScope/services/catalog/query"
	"github.com/AleutianAI/FieldScope/services/catalog/registry"
	"github.com/AleutianAI/FieldScope/services/catalog/watch"
)

// SetupRoutes wires every catalog endpoint onto the router.
//
// Health and metrics stay outside the versioned group so probes and
// scrapers never need credentials. Everything under /v1 passes the
// bearer-token auth middleware; with the default NopAuthProvider that
// is a no-op, so a local deployment works out of the box.
func SetupRoutes(router *gin.Engine, reg *registry.Registry, eng *engine.Engine,
	queries *query.Engine, hub *watch.Hub, ingestLimiter *rate.Limiter,
	opts extensions.ServiceOptions) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		// Context administration routes
		contexts := v1.Group("/contexts")
		{
			contexts.POST("", handlers.CreateContext(reg, opts))
			contexts.GET("", handlers.ListContexts(reg))
			contexts.GET("/:contextId", handlers.GetContext(reg))
			contexts.PUT("/:contextId", handlers.UpdateContext(reg, opts))
			contexts.DELETE("/:contextId", handlers.DeleteContext(reg, opts))

			// Observation ingest is the only rate-limited route: it is
			// the one path a runaway integration can hammer.
			contexts.POST("/:contextId/observations",
				middleware.RateLimitMiddleware(ingestLimiter),
				handlers.SubmitObservations(eng, opts))
		}

		// Catalog query routes
		fields := v1.Group("/fields")
		{
			fields.GET("", handlers.SearchFields(queries, opts.ValueFilter))
			fields.GET("/suggest", handlers.SuggestValues(queries, opts.ValueFilter))
			fields.GET("/watch", handlers.WatchFields(hub))
			fields.GET("/:fieldId", handlers.GetField(queries))
			fields.PUT("/:fieldId/casing", handlers.SelectCasing(eng, opts))
		}
	}
}
