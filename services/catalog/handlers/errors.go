// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/engine"
	"github.com/AleutianAI/FieldScope/services/catalog/registry"
)

// respondError translates a domain error into the wire error contract.
//
// # Description
//
// Every handler funnels failures through here so clients see one payload
// shape and one code vocabulary regardless of which layer rejected the
// request:
//
//   - ValidationError            → 400 validation_failed (+ field details)
//   - validator.ValidationErrors → 400 validation_failed (+ field details)
//   - ErrInvalidCasing           → 400 invalid_casing
//   - ErrValueBlocked            → 400 validation_failed
//   - ErrContextNotFound         → 404 not_found
//   - ErrFieldNotFound           → 404 not_found
//   - ErrContextExists           → 409 context_exists
//   - ErrImmutableSchema         → 409 immutable_schema
//   - ErrContextInactive         → 409 context_inactive
//   - anything else              → 500 storage_failure
//
// Internal failures are logged with the real error and answered with a
// generic message so storage details never leak to clients.
func respondError(c *gin.Context, err error) {
	var validation *datatypes.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Message: validation.Message,
			Status:  http.StatusBadRequest,
			Code:    datatypes.CodeValidationFailed,
			Errors:  validation.Details,
		})

	case errors.As(err, &fieldErrs):
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Message: "request validation failed",
			Status:  http.StatusBadRequest,
			Code:    datatypes.CodeValidationFailed,
			Errors:  bindingDetails(fieldErrs),
		})

	case errors.Is(err, engine.ErrInvalidCasing):
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Message: err.Error(),
			Status:  http.StatusBadRequest,
			Code:    datatypes.CodeInvalidCasing,
		})

	case errors.Is(err, extensions.ErrValueBlocked):
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Message: err.Error(),
			Status:  http.StatusBadRequest,
			Code:    datatypes.CodeValidationFailed,
		})

	case errors.Is(err, registry.ErrContextNotFound), errors.Is(err, engine.ErrFieldNotFound):
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{
			Message: err.Error(),
			Status:  http.StatusNotFound,
			Code:    datatypes.CodeNotFound,
		})

	case errors.Is(err, registry.ErrContextExists):
		c.JSON(http.StatusConflict, datatypes.ErrorResponse{
			Message: err.Error(),
			Status:  http.StatusConflict,
			Code:    datatypes.CodeContextExists,
		})

	case errors.Is(err, registry.ErrImmutableSchema):
		c.JSON(http.StatusConflict, datatypes.ErrorResponse{
			Message: err.Error(),
			Status:  http.StatusConflict,
			Code:    datatypes.CodeImmutableSchema,
		})

	case errors.Is(err, registry.ErrContextInactive):
		c.JSON(http.StatusConflict, datatypes.ErrorResponse{
			Message: err.Error(),
			Status:  http.StatusConflict,
			Code:    datatypes.CodeContextInactive,
		})

	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Message: "internal storage failure",
			Status:  http.StatusInternalServerError,
			Code:    datatypes.CodeStorageFailure,
		})
	}
}

// respondBadRequest rejects a request the JSON decoder could not bind.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
		Message: message,
		Status:  http.StatusBadRequest,
		Code:    datatypes.CodeValidationFailed,
	})
}

// bindingDetails flattens validator tag failures into field errors.
func bindingDetails(errs validator.ValidationErrors) []datatypes.FieldError {
	details := make([]datatypes.FieldError, 0, len(errs))
	for _, fe := range errs {
		details = append(details, datatypes.FieldError{
			Field:   fe.Namespace(),
			Message: "failed validation: " + fe.Tag(),
		})
	}
	return details
}
