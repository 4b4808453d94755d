// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package search parses the match and team list query language:
// free words plus key:value filters such as team:lions, status:live,
// date:>=2026-04-01 or date:2026-04..2026-05.
package search

import (
	"strings"
	"unicode"
)

// Operator defines the type of comparison for a filter.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpRange          Operator = ".." // date:2026-04..2026-05
)

// prefixOps is checked in order; two-character operators come first.
var prefixOps = []Operator{OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess}

// Filter is one key:value criterion.
type Filter struct {
	Key      string   // "team", "status", "date", ...
	Value    string   // lower bound for OpRange
	MaxValue string   // upper bound, OpRange only
	Operator Operator
}

// Query represents the parsed search query.
type Query struct {
	Filters  []Filter
	FreeText []string
}

// Parse splits input into filters and free text. Quoted values keep their
// spaces. Tokens with an empty key or value, or an unquoted second colon,
// are free text.
func Parse(input string) Query {
	q := Query{
		Filters:  make([]Filter, 0),
		FreeText: make([]string, 0),
	}
	for _, token := range tokenize(input) {
		if f, ok := parseFilter(token); ok {
			q.Filters = append(q.Filters, f)
			continue
		}
		q.FreeText = append(q.FreeText, unquote(token))
	}
	return q
}

func parseFilter(token string) (Filter, bool) {
	key, val, found := strings.Cut(token, ":")
	if !found {
		return Filter{}, false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	val = strings.TrimSpace(val)
	if key == "" || val == "" {
		return Filter{}, false
	}
	if strings.Contains(val, ":") && !isQuoted(val) {
		return Filter{}, false
	}

	if lo, hi, ok := strings.Cut(val, string(OpRange)); ok {
		return Filter{Key: key, Value: unquote(lo), MaxValue: unquote(hi), Operator: OpRange}, true
	}
	for _, op := range prefixOps {
		if rest, ok := strings.CutPrefix(val, string(op)); ok {
			return Filter{Key: key, Value: unquote(rest), Operator: op}, true
		}
	}
	return Filter{Key: key, Value: unquote(val), Operator: OpEqual}, true
}

// Normalize lowercases free text and filter values, except the values of
// the keys listed in keep.
func (q *Query) Normalize(keep ...string) {
	for i, t := range q.FreeText {
		q.FreeText[i] = strings.ToLower(t)
	}
outer:
	for i, f := range q.Filters {
		for _, k := range keep {
			if f.Key == k {
				continue outer
			}
		}
		q.Filters[i].Value = strings.ToLower(f.Value)
		q.Filters[i].MaxValue = strings.ToLower(f.MaxValue)
	}
}

// Contains reports whether s contains the filter value, ignoring case. The
// value is expected to be normalized already.
func (f Filter) Contains(s string) bool {
	return strings.Contains(strings.ToLower(s), f.Value)
}

// Compare matches v against the filter as an ordered string. OpEqual is a
// prefix match so date:2026-04 selects the whole month, and the upper range
// bound is inclusive of anything it prefixes.
func (f Filter) Compare(v string) bool {
	switch f.Operator {
	case OpEqual:
		return strings.HasPrefix(v, f.Value)
	case OpGreater:
		return v > f.Value
	case OpGreaterOrEqual:
		return v >= f.Value
	case OpLess:
		return v < f.Value
	case OpLessOrEqual:
		return v <= f.Value
	case OpRange:
		return v >= f.Value && v <= f.MaxValue+"~"
	}
	return true
}

// tokenize splits the string by spaces, respecting quotes.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune

	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func isQuoted(s string) bool {
	return strings.HasPrefix(s, `"`) || strings.HasPrefix(s, "'")
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
