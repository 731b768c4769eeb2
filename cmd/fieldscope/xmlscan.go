// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the XML sample scanner for the observe command. It
// turns one XML document into the observation batch the catalog merges:
// per element path, how often it occurred, whether it was ever nil or
// empty. Paths keep their original casing; the server owns lowercase
// normalization and casing statistics.
package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// xsiNamespace is the XML Schema instance namespace carrying xsi:nil.
const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// pathStat accumulates one path's statistics while scanning.
type pathStat struct {
	count    int64
	hasNull  bool
	hasEmpty bool
}

// elementFrame tracks one open element during the token walk.
type elementFrame struct {
	path     string
	nilled   bool
	hasText  bool
	children int
}

// ScanXML extracts field observations from one XML document.
//
// # Description
//
// Walks the token stream and records every element and attribute as a
// slash-separated path rooted at the document element, e.g.
// "/Invoice/Header/InvoiceNumber" or "/Invoice/@version". Statistics
// per path:
//
//   - count: occurrences within this document
//   - hasNull: any occurrence carried xsi:nil="true"
//   - hasEmpty: any element occurrence closed with no text and no
//     children (attributes are empty when their value is "")
//
// The metadata map is attached verbatim to every observation; the
// caller supplies the business-context values (--meta flags).
//
// # Outputs
//
//   - []datatypes.Observation: sorted by field path for deterministic
//     batches
//   - error: non-nil when the document is not well-formed XML
func ScanXML(r io.Reader, metadata map[string]string) ([]datatypes.Observation, error) {
	stats := make(map[string]*pathStat)
	var stack []elementFrame

	decoder := xml.NewDecoder(r)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			parent := "/"
			if len(stack) > 0 {
				stack[len(stack)-1].children++
				parent = stack[len(stack)-1].path + "/"
			}
			path := parent + t.Name.Local

			frame := elementFrame{path: path}
			for _, attr := range t.Attr {
				if attr.Name.Space == xsiNamespace && attr.Name.Local == "nil" &&
					strings.EqualFold(strings.TrimSpace(attr.Value), "true") {
					frame.nilled = true
					continue
				}
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" ||
					attr.Name.Space == xsiNamespace {
					continue
				}
				attrStat := statFor(stats, path+"/@"+attr.Name.Local)
				attrStat.count++
				if attr.Value == "" {
					attrStat.hasEmpty = true
				}
			}
			stack = append(stack, frame)

		case xml.CharData:
			if len(stack) > 0 && len(strings.TrimSpace(string(t))) > 0 {
				stack[len(stack)-1].hasText = true
			}

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			stat := statFor(stats, frame.path)
			stat.count++
			if frame.nilled {
				stat.hasNull = true
			}
			if !frame.hasText && frame.children == 0 && !frame.nilled {
				stat.hasEmpty = true
			}
		}
	}

	if len(stats) == 0 {
		return nil, fmt.Errorf("document contains no elements")
	}

	paths := make([]string, 0, len(stats))
	for path := range stats {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	observations := make([]datatypes.Observation, 0, len(paths))
	for _, path := range paths {
		stat := stats[path]
		observations = append(observations, datatypes.Observation{
			Metadata:  metadata,
			FieldPath: path,
			Count:     stat.count,
			HasNull:   stat.hasNull,
			HasEmpty:  stat.hasEmpty,
		})
	}
	return observations, nil
}

func statFor(stats map[string]*pathStat, path string) *pathStat {
	stat, ok := stats[path]
	if !ok {
		stat = &pathStat{}
		stats[path] = stat
	}
	return stat
}
