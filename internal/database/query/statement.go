// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package query

import "strings"

// Statement is SQL text with its positional arguments.
type Statement struct {
	Text string
	Args []interface{}
}

// WithBuilder composes a statement out of named CTEs and a final SELECT.
// Each fragment brings its own arguments, appended in fragment order, so
// fragments can be written and reused without counting parameter positions.
type WithBuilder struct {
	names []string
	ctes  []string
	args  []interface{}
}

// NewWithBuilder returns an empty builder.
func NewWithBuilder() *WithBuilder {
	return &WithBuilder{}
}

// CTE appends "name AS (body)". A name that is already present is ignored,
// which lets shared fragments be added by several callers.
func (b *WithBuilder) CTE(name, body string, args ...interface{}) *WithBuilder {
	if b.Has(name) {
		return b
	}
	b.names = append(b.names, name)
	b.ctes = append(b.ctes, name+" AS (\n"+strings.TrimSpace(body)+"\n)")
	b.args = append(b.args, args...)
	return b
}

// Has reports whether a CTE with this name was added.
func (b *WithBuilder) Has(name string) bool {
	for _, n := range b.names {
		if n == name {
			return true
		}
	}
	return false
}

// Select finishes the statement with the final query.
func (b *WithBuilder) Select(body string, args ...interface{}) Statement {
	var sb strings.Builder
	if len(b.ctes) > 0 {
		sb.WriteString("WITH ")
		sb.WriteString(strings.Join(b.ctes, ",\n"))
		sb.WriteString("\n")
	}
	sb.WriteString(strings.TrimSpace(body))

	all := make([]interface{}, 0, len(b.args)+len(args))
	all = append(all, b.args...)
	all = append(all, args...)
	return Statement{Text: sb.String(), Args: all}
}
