// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
	badgerstore "github.com/AleutianAI/FieldScope/services/catalog/storage/badger"
)

// newTestQueryEngine seeds a small catalog:
//
//	e1 invoice-inbound partner=acme   doctype=850 /invoice/header/invoicenumber channel={web}
//	e2 invoice-inbound partner=acme   doctype=810 /invoice/header/total         channel={edi,web}
//	e3 invoice-inbound partner=globex doctype=850 /invoice/lines/line/sku
//	e4 deposits        productcode=dda            /ceremony/amount
//	e5 archived (inactive context)                /archived/secret
func newTestQueryEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := badgerstore.NewStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	contexts := []*datatypes.Context{
		{ID: "invoice-inbound", RequiredKeys: []string{"partner", "doctype"}, OptionalKeys: []string{"channel"}, Active: true},
		{ID: "deposits", RequiredKeys: []string{"productcode"}, Active: true},
		{ID: "archived", RequiredKeys: []string{"partner"}, Active: false},
	}
	for _, c := range contexts {
		require.NoError(t, store.PutContext(ctx, c))
	}

	entries := []*datatypes.CatalogEntry{
		{
			ID: "e1", ContextID: "invoice-inbound", VariantKey: "v-acme-850",
			RequiredValues: map[string]string{"partner": "acme", "doctype": "850"},
			OptionalValues: map[string][]string{"channel": {"web"}},
			FieldPath:      "/invoice/header/invoicenumber",
			MinOccurs:      1, MaxOccurs: 1,
		},
		{
			ID: "e2", ContextID: "invoice-inbound", VariantKey: "v-acme-810",
			RequiredValues: map[string]string{"partner": "acme", "doctype": "810"},
			OptionalValues: map[string][]string{"channel": {"edi", "web"}},
			FieldPath:      "/invoice/header/total",
			MinOccurs:      0, MaxOccurs: 1,
		},
		{
			ID: "e3", ContextID: "invoice-inbound", VariantKey: "v-globex-850",
			RequiredValues: map[string]string{"partner": "globex", "doctype": "850"},
			FieldPath:      "/invoice/lines/line/sku",
			MinOccurs:      1, MaxOccurs: 40,
		},
		{
			ID: "e4", ContextID: "deposits", VariantKey: "v-dda",
			RequiredValues: map[string]string{"productcode": "dda"},
			FieldPath:      "/ceremony/amount",
			MinOccurs:      1, MaxOccurs: 1,
		},
		{
			ID: "e5", ContextID: "archived", VariantKey: "v-x",
			RequiredValues: map[string]string{"partner": "acme"},
			FieldPath:      "/archived/secret",
			MinOccurs:      1, MaxOccurs: 1,
		},
	}
	require.NoError(t, store.WithMergeTxn(ctx, func(txn storage.MergeTxn) error {
		for _, e := range entries {
			if err := txn.Put(e); err != nil {
				return err
			}
		}
		return nil
	}))

	eng, err := New(store, store, nil)
	require.NoError(t, err)
	return eng
}

func searchIDs(t *testing.T, eng *Engine, criteria Criteria) []string {
	t.Helper()
	page, err := eng.Search(context.Background(), criteria)
	require.NoError(t, err)
	ids := make([]string, 0, len(page.Content))
	for _, entry := range page.Content {
		ids = append(ids, entry.ID)
	}
	return ids
}

// ===== Global term mode =====

func TestSearch_GlobalMatchesFieldPath(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Equal(t, []string{"e1"}, searchIDs(t, eng, Criteria{Query: "invoicenumber"}))
}

func TestSearch_GlobalMatchesContextID(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Equal(t, []string{"e4"}, searchIDs(t, eng, Criteria{Query: "deposits"}))
}

func TestSearch_GlobalMatchesRequiredValue(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Equal(t, []string{"e3"}, searchIDs(t, eng, Criteria{Query: "globex"}))
}

func TestSearch_GlobalMatchesOptionalValue(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Equal(t, []string{"e2"}, searchIDs(t, eng, Criteria{Query: "edi"}))
}

func TestSearch_GlobalIsCaseInsensitive(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Equal(t, []string{"e3"}, searchIDs(t, eng, Criteria{Query: "GLOBEX"}))
}

func TestSearch_GlobalIgnoresScopedFilters(t *testing.T) {
	eng := newTestQueryEngine(t)
	// ContextID would exclude everything; global mode must ignore it.
	got := searchIDs(t, eng, Criteria{Query: "acme", ContextID: "deposits"})
	assert.Equal(t, []string{"e1", "e2"}, got)
}

func TestSearch_GlobalSkipsInactiveContexts(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Empty(t, searchIDs(t, eng, Criteria{Query: "secret"}))
}

// ===== Scoped mode =====

func TestSearch_ScopedByContext(t *testing.T) {
	eng := newTestQueryEngine(t)
	got := searchIDs(t, eng, Criteria{ContextID: "invoice-inbound"})
	assert.Equal(t, []string{"e1", "e2", "e3"}, got)
}

func TestSearch_ScopedFiltersAreANDed(t *testing.T) {
	eng := newTestQueryEngine(t)
	got := searchIDs(t, eng, Criteria{
		ContextID:         "invoice-inbound",
		FieldPathContains: "header",
		Metadata:          map[string][]string{"doctype": {"850"}},
	})
	assert.Equal(t, []string{"e1"}, got)
}

func TestSearch_MetadataValuesAreORed(t *testing.T) {
	eng := newTestQueryEngine(t)
	got := searchIDs(t, eng, Criteria{Metadata: map[string][]string{"doctype": {"810", "850"}}})
	assert.Equal(t, []string{"e1", "e2", "e3"}, got)
}

func TestSearch_RequiredValueIsExactMatch(t *testing.T) {
	eng := newTestQueryEngine(t)
	// Substrings of required values must not match.
	assert.Empty(t, searchIDs(t, eng, Criteria{Metadata: map[string][]string{"partner": {"acm"}}}))
}

func TestSearch_OptionalValueIsSetContainment(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Equal(t, []string{"e1", "e2"}, searchIDs(t, eng, Criteria{Metadata: map[string][]string{"channel": {"web"}}}))
	assert.Equal(t, []string{"e2"}, searchIDs(t, eng, Criteria{Metadata: map[string][]string{"channel": {"edi"}}}))
}

func TestSearch_UnknownMetadataKeyNeverMatches(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Empty(t, searchIDs(t, eng, Criteria{Metadata: map[string][]string{"nope": {"x"}}}))
}

func TestSearch_MetadataFilterNormalizesCase(t *testing.T) {
	eng := newTestQueryEngine(t)
	got := searchIDs(t, eng, Criteria{Metadata: map[string][]string{"Partner": {"ACME"}}})
	assert.Equal(t, []string{"e1", "e2"}, got)
}

func TestSearch_FieldPathContains(t *testing.T) {
	eng := newTestQueryEngine(t)
	assert.Equal(t, []string{"e1", "e2"}, searchIDs(t, eng, Criteria{FieldPathContains: "HEADER"}))
}

func TestSearch_EmptyCriteriaListsAllVisible(t *testing.T) {
	eng := newTestQueryEngine(t)
	page, err := eng.Search(context.Background(), Criteria{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.TotalElements)
	assert.Equal(t, datatypes.DefaultPageSize, page.Size)
}

// ===== Regex =====

func TestSearch_RegexFieldPath(t *testing.T) {
	eng := newTestQueryEngine(t)
	got := searchIDs(t, eng, Criteria{FieldPathContains: "^/invoice/lines", UseRegex: true})
	assert.Equal(t, []string{"e3"}, got)
}

func TestSearch_RegexIsCaseInsensitive(t *testing.T) {
	eng := newTestQueryEngine(t)
	got := searchIDs(t, eng, Criteria{Query: "INVOICENUMBER$", UseRegex: true})
	assert.Equal(t, []string{"e1"}, got)
}

func TestSearch_InvalidRegexRejected(t *testing.T) {
	eng := newTestQueryEngine(t)

	var ve *datatypes.ValidationError
	_, err := eng.Search(context.Background(), Criteria{Query: "[unclosed", UseRegex: true})
	require.ErrorAs(t, err, &ve)

	_, err = eng.Search(context.Background(), Criteria{FieldPathContains: "[unclosed", UseRegex: true})
	require.ErrorAs(t, err, &ve)
}

// ===== Pagination =====

func TestSearch_Pagination(t *testing.T) {
	eng := newTestQueryEngine(t)

	page0, err := eng.Search(context.Background(), Criteria{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page0.TotalElements)
	assert.Equal(t, 2, page0.TotalPages)
	assert.Equal(t, 0, page0.Number)
	require.Len(t, page0.Content, 2)
	assert.Equal(t, "e1", page0.Content[0].ID)
	assert.Equal(t, "e2", page0.Content[1].ID)

	page1, err := eng.Search(context.Background(), Criteria{Page: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, page1.Content, 2)
	assert.Equal(t, "e3", page1.Content[0].ID)
	assert.Equal(t, "e4", page1.Content[1].ID)
}

func TestSearch_PagePastEnd(t *testing.T) {
	eng := newTestQueryEngine(t)

	page, err := eng.Search(context.Background(), Criteria{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, int64(4), page.TotalElements)
}

func TestSearch_SizeClamped(t *testing.T) {
	eng := newTestQueryEngine(t)

	page, err := eng.Search(context.Background(), Criteria{Size: 5000})
	require.NoError(t, err)
	assert.Equal(t, datatypes.MaxPageSize, page.Size)
}

func TestSearch_NegativePageRejected(t *testing.T) {
	eng := newTestQueryEngine(t)

	var ve *datatypes.ValidationError
	_, err := eng.Search(context.Background(), Criteria{Page: -1})
	require.ErrorAs(t, err, &ve)

	_, err = eng.Search(context.Background(), Criteria{Size: -1})
	require.ErrorAs(t, err, &ve)
}
