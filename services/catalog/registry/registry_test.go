// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
	badgerstore "github.com/AleutianAI/FieldScope/services/catalog/storage/badger"
)

func newTestRegistry(t *testing.T) (*Registry, *badgerstore.Store) {
	t.Helper()
	db, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := badgerstore.NewStore(db)
	require.NoError(t, err)

	reg, err := New(store, store, nil)
	require.NoError(t, err)
	reg.now = func() int64 { return 1700000000000 }
	return reg, store
}

func createRequest() *datatypes.CreateContextRequest {
	return &datatypes.CreateContextRequest{
		ContextID:    "invoice-inbound",
		DisplayName:  "Inbound invoices",
		RequiredKeys: []string{"partner", "doctype"},
		OptionalKeys: []string{"channel"},
	}
}

// ===== Create =====

func TestRegistry_Create(t *testing.T) {
	reg, _ := newTestRegistry(t)

	c, err := reg.Create(context.Background(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, "invoice-inbound", c.ID)
	assert.Equal(t, []string{"partner", "doctype"}, c.RequiredKeys)
	assert.Equal(t, []string{"channel"}, c.OptionalKeys)
	assert.True(t, c.Active)
	assert.Equal(t, int64(1700000000000), c.CreatedAt)
	assert.Equal(t, int64(1700000000000), c.UpdatedAt)
}

func TestRegistry_Create_NormalizesCase(t *testing.T) {
	reg, _ := newTestRegistry(t)

	req := &datatypes.CreateContextRequest{
		ContextID:    "Invoice-Inbound",
		RequiredKeys: []string{"Partner", "DocType"},
	}
	c, err := reg.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "invoice-inbound", c.ID)
	assert.Equal(t, []string{"partner", "doctype"}, c.RequiredKeys)
}

func TestRegistry_Create_Duplicate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	_, err = reg.Create(ctx, createRequest())
	assert.ErrorIs(t, err, ErrContextExists)
}

func TestRegistry_Create_RejectsSlashInID(t *testing.T) {
	reg, _ := newTestRegistry(t)

	req := createRequest()
	req.ContextID = "invoice/inbound"
	_, err := reg.Create(context.Background(), req)

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRegistry_Create_RejectsDuplicateKeys(t *testing.T) {
	reg, _ := newTestRegistry(t)

	req := createRequest()
	req.RequiredKeys = []string{"partner", "Partner"}
	_, err := reg.Create(context.Background(), req)

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRegistry_Create_RejectsKeyOverlap(t *testing.T) {
	reg, _ := newTestRegistry(t)

	req := createRequest()
	req.OptionalKeys = []string{"partner"}
	_, err := reg.Create(context.Background(), req)

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "both required and optional")
}

func TestRegistry_Create_ExplicitInactive(t *testing.T) {
	reg, _ := newTestRegistry(t)

	inactive := false
	req := createRequest()
	req.Active = &inactive

	c, err := reg.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, c.Active)
}

// ===== Get / List =====

func TestRegistry_Get_NotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrContextNotFound)
}

func TestRegistry_Get_CaseInsensitive(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	c, err := reg.Get(ctx, "INVOICE-INBOUND")
	require.NoError(t, err)
	assert.Equal(t, "invoice-inbound", c.ID)
}

func TestRegistry_List(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"deposits", "auth-events"} {
		req := createRequest()
		req.ContextID = id
		_, err := reg.Create(ctx, req)
		require.NoError(t, err)
	}

	contexts, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "auth-events", contexts[0].ID)
	assert.Equal(t, "deposits", contexts[1].ID)
}

// ===== Update =====

func TestRegistry_Update_MutableFields(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)
	reg.now = func() int64 { return 1700000001000 }

	name := "Renamed"
	inactive := false
	optional := []string{"channel", "region"}
	c, err := reg.Update(ctx, "invoice-inbound", &datatypes.UpdateContextRequest{
		DisplayName:  &name,
		OptionalKeys: &optional,
		Active:       &inactive,
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", c.DisplayName)
	assert.Equal(t, []string{"channel", "region"}, c.OptionalKeys)
	assert.False(t, c.Active)
	assert.Equal(t, int64(1700000001000), c.UpdatedAt)
	assert.Equal(t, int64(1700000000000), c.CreatedAt)
}

func TestRegistry_Update_SameRequiredKeysIsNoop(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	same := []string{"Partner", "DOCTYPE"} // same keys, different case
	_, err = reg.Update(ctx, "invoice-inbound", &datatypes.UpdateContextRequest{
		RequiredKeys: &same,
	})
	assert.NoError(t, err)
}

func TestRegistry_Update_RequiredKeysImmutable(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	changed := []string{"partner", "doctype", "region"}
	_, err = reg.Update(ctx, "invoice-inbound", &datatypes.UpdateContextRequest{
		RequiredKeys: &changed,
	})
	assert.ErrorIs(t, err, ErrImmutableSchema)

	// Reordering is a schema change too: identity hashes values in
	// declaration order.
	reordered := []string{"doctype", "partner"}
	_, err = reg.Update(ctx, "invoice-inbound", &datatypes.UpdateContextRequest{
		RequiredKeys: &reordered,
	})
	assert.ErrorIs(t, err, ErrImmutableSchema)
}

func TestRegistry_Update_NotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)

	name := "x"
	_, err := reg.Update(context.Background(), "nope", &datatypes.UpdateContextRequest{
		DisplayName: &name,
	})
	assert.ErrorIs(t, err, ErrContextNotFound)
}

func TestRegistry_Update_OptionalOverlapRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	overlap := []string{"partner"}
	_, err = reg.Update(ctx, "invoice-inbound", &datatypes.UpdateContextRequest{
		OptionalKeys: &overlap,
	})

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
}

// ===== Delete =====

func TestRegistry_Delete_Cascades(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	entries := []*datatypes.CatalogEntry{
		{ID: "id-a", ContextID: "invoice-inbound", VariantKey: "v1", FieldPath: "a"},
		{ID: "id-b", ContextID: "invoice-inbound", VariantKey: "v1", FieldPath: "b"},
	}
	require.NoError(t, store.WithMergeTxn(ctx, func(txn storage.MergeTxn) error {
		for _, e := range entries {
			if err := txn.Put(e); err != nil {
				return err
			}
		}
		return nil
	}))

	removed, err := reg.Delete(ctx, "invoice-inbound")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = reg.Get(ctx, "invoice-inbound")
	assert.ErrorIs(t, err, ErrContextNotFound)
	_, err = store.GetEntry(ctx, "id-a")
	assert.Error(t, err)
}

func TestRegistry_Delete_NotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrContextNotFound)
}

// ===== Validate =====

func TestRegistry_Validate_SplitsRequiredAndOptional(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	required, optional, err := reg.Validate(ctx, "invoice-inbound", map[string]string{
		"Partner": "ACME",
		"doctype": "850",
		"Channel": "Web",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"partner": "acme", "doctype": "850"}, required)
	assert.Equal(t, map[string]string{"channel": "web"}, optional)
}

func TestRegistry_Validate_MissingRequiredKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	_, _, err = reg.Validate(ctx, "invoice-inbound", map[string]string{"partner": "acme"})

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Details, 1)
	assert.Equal(t, "metadata.doctype", ve.Details[0].Field)
}

func TestRegistry_Validate_UndeclaredKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, createRequest())
	require.NoError(t, err)

	_, _, err = reg.Validate(ctx, "invoice-inbound", map[string]string{
		"partner": "acme",
		"doctype": "850",
		"rogue":   "value",
	})

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "rogue")
}

func TestRegistry_Validate_InactiveContext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	inactive := false
	req := createRequest()
	req.Active = &inactive
	_, err := reg.Create(ctx, req)
	require.NoError(t, err)

	_, _, err = reg.Validate(ctx, "invoice-inbound", map[string]string{
		"partner": "acme",
		"doctype": "850",
	})
	assert.ErrorIs(t, err, ErrContextInactive)
}

func TestRegistry_Validate_UnknownContext(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, _, err := reg.Validate(context.Background(), "nope", map[string]string{"k": "v"})
	assert.ErrorIs(t, err, ErrContextNotFound)
}

func TestValidateMetadata_WhitespaceValueRejected(t *testing.T) {
	c := &datatypes.Context{
		ID:           "deposits",
		RequiredKeys: []string{"productcode"},
		Active:       true,
	}

	_, _, err := ValidateMetadata(c, map[string]string{"productcode": "   "})

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestValidateMetadata_RejectsInjectionKey(t *testing.T) {
	c := &datatypes.Context{
		ID:           "deposits",
		RequiredKeys: []string{"productcode"},
		OptionalKeys: []string{"channel"},
		Active:       true,
	}

	_, _, err := ValidateMetadata(c, map[string]string{
		"productcode": "dda",
		"chan/nel":    "web",
	})

	var ve *datatypes.ValidationError
	require.ErrorAs(t, err, &ve)
}

// errors.Is sanity for the sentinel taxonomy.
func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{ErrContextExists, ErrContextNotFound, ErrContextInactive, ErrImmutableSchema}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
