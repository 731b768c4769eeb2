// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

func byPath(t *testing.T, obs []datatypes.Observation) map[string]datatypes.Observation {
	t.Helper()
	m := make(map[string]datatypes.Observation, len(obs))
	for _, o := range obs {
		m[o.FieldPath] = o
	}
	return m
}

func TestScanXML_CountsRepeatedElements(t *testing.T) {
	doc := `<Order>
		<Line><Sku>A1</Sku></Line>
		<Line><Sku>B2</Sku></Line>
		<Line><Sku>C3</Sku></Line>
	</Order>`

	obs, err := ScanXML(strings.NewReader(doc), nil)
	require.NoError(t, err)
	m := byPath(t, obs)

	assert.Equal(t, int64(1), m["/Order"].Count)
	assert.Equal(t, int64(3), m["/Order/Line"].Count)
	assert.Equal(t, int64(3), m["/Order/Line/Sku"].Count)
	assert.False(t, m["/Order/Line/Sku"].HasNull)
	assert.False(t, m["/Order/Line/Sku"].HasEmpty)
}

func TestScanXML_PreservesOriginalCasing(t *testing.T) {
	doc := `<Ceremony><Amount>100</Amount></Ceremony>`

	obs, err := ScanXML(strings.NewReader(doc), nil)
	require.NoError(t, err)
	m := byPath(t, obs)

	// Casing normalization is the server's job, not the scanner's.
	assert.Contains(t, m, "/Ceremony/Amount")
	assert.NotContains(t, m, "/ceremony/amount")
}

func TestScanXML_XsiNilMarksNull(t *testing.T) {
	doc := `<Invoice xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
		<Total xsi:nil="true"/>
		<Total>12.50</Total>
	</Invoice>`

	obs, err := ScanXML(strings.NewReader(doc), nil)
	require.NoError(t, err)
	m := byPath(t, obs)

	total := m["/Invoice/Total"]
	assert.Equal(t, int64(2), total.Count)
	assert.True(t, total.HasNull)
	// A nilled element is null, not empty.
	assert.False(t, total.HasEmpty)
	// The xsi:nil attribute itself is not a field.
	assert.NotContains(t, m, "/Invoice/Total/@nil")
}

func TestScanXML_EmptyElementMarksEmpty(t *testing.T) {
	doc := `<Invoice><Remarks></Remarks><Remarks>late</Remarks></Invoice>`

	obs, err := ScanXML(strings.NewReader(doc), nil)
	require.NoError(t, err)
	m := byPath(t, obs)

	remarks := m["/Invoice/Remarks"]
	assert.Equal(t, int64(2), remarks.Count)
	assert.True(t, remarks.HasEmpty)
	assert.False(t, remarks.HasNull)
}

func TestScanXML_ContainerWithChildrenIsNotEmpty(t *testing.T) {
	doc := `<Invoice><Header><Number>7</Number></Header></Invoice>`

	obs, err := ScanXML(strings.NewReader(doc), nil)
	require.NoError(t, err)
	m := byPath(t, obs)

	assert.False(t, m["/Invoice/Header"].HasEmpty)
	assert.False(t, m["/Invoice"].HasEmpty)
}

func TestScanXML_AttributesBecomeFields(t *testing.T) {
	doc := `<Invoice version="2.1" draft=""><Total>1</Total></Invoice>`

	obs, err := ScanXML(strings.NewReader(doc), nil)
	require.NoError(t, err)
	m := byPath(t, obs)

	version := m["/Invoice/@version"]
	assert.Equal(t, int64(1), version.Count)
	assert.False(t, version.HasEmpty)

	draft := m["/Invoice/@draft"]
	assert.True(t, draft.HasEmpty)
}

func TestScanXML_MetadataAttachedToEveryObservation(t *testing.T) {
	meta := map[string]string{"productCode": "DDA"}
	obs, err := ScanXML(strings.NewReader(`<A><B>x</B></A>`), meta)
	require.NoError(t, err)

	for _, o := range obs {
		assert.Equal(t, meta, o.Metadata)
	}
}

func TestScanXML_OutputSortedByPath(t *testing.T) {
	doc := `<Z><M>1</M><A>2</A></Z>`
	obs, err := ScanXML(strings.NewReader(doc), nil)
	require.NoError(t, err)

	paths := make([]string, len(obs))
	for i, o := range obs {
		paths[i] = o.FieldPath
	}
	assert.True(t, sort.StringsAreSorted(paths))
}

func TestScanXML_MalformedDocument(t *testing.T) {
	_, err := ScanXML(strings.NewReader(`<A><B></A>`), nil)
	assert.Error(t, err)
}

func TestScanXML_EmptyInput(t *testing.T) {
	_, err := ScanXML(strings.NewReader(""), nil)
	assert.Error(t, err)
}
