/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package luatable reads and writes the restricted textual table format
// used by rockspecs and repository manifests.
//
// The upstream ecosystem loads these files by evaluating them as code.
// This package instead parses the textual form directly and accepts only
// the closed value vocabulary the formats actually use: nested tables,
// strings, numbers, booleans and nil. Executable content is structurally
// unrepresentable — there is no token for a function body, a call, an
// operator or a variable reference, so a hostile rockspec fails with a
// parse error instead of running. A leading shebang line is stripped
// before parsing, and a leading "return" keyword is accepted and ignored.
//
// Values decode to:
//
//	table   -> *Table (insertion-ordered fields plus positional entries)
//	string  -> string
//	number  -> int64 (integral) or float64
//	boolean -> bool
//	nil     -> nil
//
// The writer emits the same subset, pretty-printed with two-space
// indentation, so that rockspecs luadist generates are readable diffs
// against hand-written ones.
package luatable

import (
	"sort"
	"strconv"
	"strings"

	"dirpx.dev/luadist/distcore/errors"
)

// Table is a parsed table value: named fields in source order plus
// positional (array-part) entries.
type Table struct {
	fieldKeys []string
	fields    map[string]any
	list      []any
}

// NewTable returns an empty Table, ready for Set/Append. The writer emits
// fields in Set order, so builders control the on-disk layout.
func NewTable() *Table {
	return &Table{fields: map[string]any{}}
}

// Set inserts or overwrites a named field. A new key is appended to the
// field order; a present key keeps its original position.
func (t *Table) Set(key string, value any) {
	if _, ok := t.fields[key]; !ok {
		t.fieldKeys = append(t.fieldKeys, key)
	}
	t.fields[key] = value
}

// Append adds a positional entry to the array part.
func (t *Table) Append(value any) {
	t.list = append(t.list, value)
}

// Get returns the named field's value and whether it is present.
func (t *Table) Get(key string) (any, bool) {
	v, ok := t.fields[key]
	return v, ok
}

// Str returns the named field as a string, or "" when the field is absent
// or not a string.
func (t *Table) Str(key string) string {
	if s, ok := t.fields[key].(string); ok {
		return s
	}
	return ""
}

// Sub returns the named field as a nested table, or nil when the field is
// absent or not a table.
func (t *Table) Sub(key string) *Table {
	if sub, ok := t.fields[key].(*Table); ok {
		return sub
	}
	return nil
}

// Strings returns the named field's positional entries as a string slice,
// skipping non-string entries. A nil slice is returned when the field is
// absent or not a table.
func (t *Table) Strings(key string) []string {
	sub := t.Sub(key)
	if sub == nil {
		return nil
	}
	var out []string
	for _, v := range sub.list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns the named field keys in source (or Set) order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.fieldKeys))
	copy(out, t.fieldKeys)
	return out
}

// List returns the positional entries.
func (t *Table) List() []any {
	out := make([]any, len(t.list))
	copy(out, t.list)
	return out
}

// Len returns the number of named fields plus positional entries.
func (t *Table) Len() int {
	return len(t.fieldKeys) + len(t.list)
}

// Parse reads a textual table document and returns its root table.
//
// The document is a single table constructor, optionally preceded by a
// shebang line and/or the "return" keyword. Anything outside the
// restricted value vocabulary fails with a *ParseError that reports the
// line of the offending token.
func Parse(src []byte) (*Table, error) {
	text := string(src)
	if strings.HasPrefix(text, "#!") {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = ""
		}
	}

	p := &parser{lex: newLexer(text)}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokIdent && p.tok.text == "return" {
		if err := p.next(); err != nil {
			return nil, err
		}
	}

	root, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected trailing %q", p.tok.text)
	}
	return root, nil
}

// Marshal renders a value in the restricted table format, prefixed with
// "return " so the document stays loadable by the upstream ecosystem's
// own tools.
//
// Supported value types are *Table, string, bool, nil, and the Go integer
// and float types; map[string]any is accepted for convenience and emitted
// with sorted keys (it carries no order of its own). Unsupported types
// return a *MarshalError.
func Marshal(v any) ([]byte, error) {
	var b strings.Builder
	b.WriteString("return ")
	if err := writeValue(&b, v, 0); err != nil {
		return nil, err
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func writeValue(b *strings.Builder, v any, depth int) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case string:
		b.WriteString(quote(val))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case *Table:
		return writeTable(b, val, depth)
	case map[string]any:
		t := NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.Set(k, val[k])
		}
		return writeTable(b, t, depth)
	case []string:
		t := NewTable()
		for _, s := range val {
			t.Append(s)
		}
		return writeTable(b, t, depth)
	case []any:
		t := NewTable()
		for _, e := range val {
			t.Append(e)
		}
		return writeTable(b, t, depth)
	default:
		return &errors.MarshalError{Type: "Table", Value: 0}
	}
	return nil
}

func writeTable(b *strings.Builder, t *Table, depth int) error {
	if t.Len() == 0 {
		b.WriteString("{}")
		return nil
	}

	indent := strings.Repeat("  ", depth+1)
	b.WriteString("{\n")

	for _, v := range t.list {
		b.WriteString(indent)
		if err := writeValue(b, v, depth+1); err != nil {
			return err
		}
		b.WriteString(",\n")
	}
	for _, k := range t.fieldKeys {
		b.WriteString(indent)
		if isIdent(k) {
			b.WriteString(k)
		} else {
			b.WriteString("[" + quote(k) + "]")
		}
		b.WriteString(" = ")
		if err := writeValue(b, t.fields[k], depth+1); err != nil {
			return err
		}
		b.WriteString(",\n")
	}

	b.WriteString(strings.Repeat("  ", depth))
	b.WriteByte('}')
	return nil
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
		digit := c >= '0' && c <= '9'
		if !letter && !(digit && i > 0) {
			return false
		}
	}
	switch s {
	case "and", "break", "do", "else", "elseif", "end", "false", "for",
		"function", "goto", "if", "in", "local", "nil", "not", "or",
		"repeat", "return", "then", "true", "until", "while":
		return false
	}
	return true
}
