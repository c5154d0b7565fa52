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

// Package rock defines the package-management domain types: package
// references, packages, rockspecs, repository manifests, and the
// installed-package set.
package rock

import (
	"encoding/json"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model"
	"dirpx.dev/luadist/distcore/model/version"
)

const (
	// refPattern is the regular expression pattern used to split a
	// package reference or dependency string into its name and
	// constraint parts.
	//
	// The pattern matches:
	//   <name>[<whitespace><constraints>]
	//
	// Capture groups:
	//   1. name - the package name (letters, digits, '.', '_', '-',
	//      not starting with a separator)
	//   2. constraints - everything after the first whitespace run,
	//      handed to version.ParseConstraint
	//
	// Examples that match:
	//   - "xml"
	//   - "xml 1.8.0-1"
	//   - "lua >= 5.1"
	//   - "lua >= 5.1, < 5.4"
	refPattern = `^([A-Za-z0-9][A-Za-z0-9._-]*)(?:\s+(.+))?$`
)

// refRegexp is the compiled regular expression for splitting package
// references.
var refRegexp = regexp.MustCompile(refPattern)

// Ref is a package reference: a name plus a version constraint.
//
// Refs come from three places with one grammar: CLI arguments
// ("xml 1.8.0-1"), rockspec dependency strings ("lua >= 5.1"), and the
// packer's rewritten dependencies ("lua ~> 5.3"). A Ref with an empty
// constraint matches every version of the named package.
type Ref struct {
	// Name is the package name.
	Name string `json:"name" yaml:"name"`

	// Constraint is the AND-combined clause list. The zero value matches
	// all versions.
	Constraint version.Constraint `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// Compile-time check that Ref implements the model.Model interface.
var _ model.Model = (*Ref)(nil)

// ParseRef parses a package reference string.
//
// Accepted forms:
//
//	"xml"                 -> any version of xml
//	"xml 1.8.0-1"         -> exactly that version (bare version means ==)
//	"lua >= 5.1"          -> constrained
//	"lua >= 5.1, < 5.4"   -> multiple AND-combined clauses
//
// A malformed name or constraint returns a *ParseError carrying the whole
// input string.
func ParseRef(s string) (Ref, error) {
	trimmed := strings.TrimSpace(s)
	m := refRegexp.FindStringSubmatch(trimmed)
	if m == nil {
		return Ref{}, &errors.ParseError{Type: "Ref", Value: s}
	}

	c, err := version.ParseConstraint(m[2])
	if err != nil {
		return Ref{}, &errors.ParseError{Type: "Ref", Value: s}
	}

	return Ref{Name: m[1], Constraint: c}, nil
}

// ParseRefs parses a list of reference strings, failing on the first
// malformed entry.
func ParseRefs(list []string) ([]Ref, error) {
	out := make([]Ref, 0, len(list))
	for _, s := range list {
		r, err := ParseRef(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// String renders the reference in the grammar accepted by ParseRef.
func (r Ref) String() string {
	if r.Constraint.IsZero() {
		return r.Name
	}
	return r.Name + " " + r.Constraint.String()
}

// Matches reports whether the given version satisfies this reference's
// constraint. The name is not consulted; callers compare names first.
func (r Ref) Matches(v version.Version) bool {
	return r.Constraint.Satisfies(v)
}

// Validate checks that the name is present and the constraint is
// well-formed.
func (r Ref) Validate() error {
	if r.Name == "" {
		return &errors.ValidationError{Type: "Ref", Field: "Name", Reason: "must not be empty"}
	}
	return r.Constraint.Validate()
}

// IsZero reports whether the Ref is the zero value.
func (r Ref) IsZero() bool {
	return r.Name == "" && r.Constraint.IsZero()
}

// TypeName returns "Ref", the name of the type for diagnostics.
func (r Ref) TypeName() string {
	return "Ref"
}

// Redacted returns the same representation as String. References carry no
// sensitive information.
func (r Ref) Redacted() string {
	return r.String()
}

// MarshalJSON implements json.Marshaler for Ref, emitting the textual
// reference form.
func (r Ref) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON implements json.Unmarshaler for Ref. The JSON value must
// be a string in the reference grammar.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &errors.UnmarshalError{Type: "Ref", Data: data, Reason: err.Error()}
	}

	parsed, err := ParseRef(s)
	if err != nil {
		return err
	}

	*r = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for Ref, emitting the textual
// reference form as a scalar.
func (r Ref) MarshalYAML() (interface{}, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Ref. The YAML value is
// expected to be a scalar string in the reference grammar.
func (r *Ref) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return &errors.UnmarshalError{Type: "Ref", Data: nil, Reason: err.Error()}
	}

	parsed, err := ParseRef(s)
	if err != nil {
		return err
	}

	*r = parsed
	return nil
}
