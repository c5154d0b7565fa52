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

// Package version implements the rock version and constraint algebra used
// throughout luadist.
//
// Rock versions are NOT semantic versions. The grammar is
//
//	MAJOR[.MINOR[.PATCH[. ...]]][-REV][_HEX]
//
// with an unbounded number of numeric components, an optional numeric
// revision introduced by "-", and an optional hexadecimal dependency-hash
// tag introduced by "_" (appended by the packer when a package is exported
// as a binary rock). Ordering is lexicographic over the numeric components
// with missing tail components treated as 0, then by revision; the hash
// tag never participates in ordering. The revision RAISES precedence
// ("1.0-2" > "1.0-1"), which is the opposite of a SemVer prerelease and
// the reason this package does not wrap a SemVer library.
package version

import (
	"encoding/json"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model"
)

// Version represents a parsed rock version.
//
// Equality and ordering are defined on the parsed components, not the raw
// string: "1.0" and "1.0.0" compare equal. The original string is retained
// in Raw for display and for directory naming, so a round-trip through
// parse and String preserves the user's spelling.
//
// The zero value of Version has no components and is not valid; use Parse
// to construct instances. Version is an immutable value type and safe for
// concurrent reads.
type Version struct {
	// Components are the numeric dotted components, most significant
	// first. At least one component is present in any valid Version.
	Components []int

	// Revision is the numeric revision following "-", or 0 when absent.
	// A present revision of 0 and an absent revision compare equal.
	Revision int

	// Hash is the hexadecimal dependency-hash tag following "_", or empty
	// when absent. The packer appends it when exporting a binary rock.
	// Hash is ignored for ordering and equality.
	Hash string

	// Raw is the original textual form the Version was parsed from,
	// retained for display. When a Version is constructed programmatically
	// Raw may be empty, in which case String falls back to the canonical
	// rendering.
	Raw string
}

// Compile-time check that Version implements the model.Model interface.
var (
	_ model.Model               = (*Version)(nil)
	_ model.Comparable[Version] = Version{}
)

// Parse parses a rock version string into a Version value.
//
// The expected input format is "MAJOR[.MINOR[...]][-REV][_HEX]" where
// every dotted component and the revision are non-negative decimal
// integers and the hash tag is lowercase or uppercase hexadecimal.
//
// Examples:
//
//	Parse("1.8.0-1")        -> {Components: [1 8 0], Revision: 1}
//	Parse("5.3")            -> {Components: [5 3]}
//	Parse("1.8.0-1_ab12cd") -> {Components: [1 8 0], Revision: 1, Hash: "ab12cd"}
//
// On malformed input (empty string, non-numeric components, empty hash
// tag, non-hex hash characters) Parse returns a zero Version and a
// *errors.ParseError. Callers MUST check the error before using the
// returned value.
func Parse(s string) (Version, error) {
	v := Version{Raw: s}
	rest := s

	if i := strings.IndexByte(rest, '_'); i >= 0 {
		hash := rest[i+1:]
		if hash == "" || !isHex(hash) {
			return Version{}, &errors.ParseError{Type: "Version", Value: s}
		}
		v.Hash = hash
		rest = rest[:i]
	}

	if i := strings.IndexByte(rest, '-'); i >= 0 {
		rev, err := strconv.Atoi(rest[i+1:])
		if err != nil || rev < 0 {
			return Version{}, &errors.ParseError{Type: "Version", Value: s}
		}
		v.Revision = rev
		rest = rest[:i]
	}

	if rest == "" {
		return Version{}, &errors.ParseError{Type: "Version", Value: s}
	}
	for _, part := range strings.Split(rest, ".") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, &errors.ParseError{Type: "Version", Value: s}
		}
		v.Components = append(v.Components, n)
	}

	return v, nil
}

// MustParse parses a version string and panics on failure. It is intended
// for tests and constants where a malformed literal is a programming
// error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
		if !ok {
			return false
		}
	}
	return true
}

// String returns the textual representation of the Version.
//
// When the Version was produced by Parse, the original spelling is
// returned unchanged. Programmatically constructed Versions render in the
// canonical "c1.c2...[-REV][_HEX]" form, with the revision included only
// when non-zero.
func (v Version) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	return v.render(len(v.Components), true)
}

// Canonical returns the normalized textual form used for version-key
// equality in manifests: dotted components with trailing zero components
// stripped (at least one component always remains), "-REV" when the
// revision is non-zero, and no hash tag.
//
// "1.0", "1.0.0" and "1.0.0.0" all canonicalize to "1"; "1.8.0-1" and
// "1.8-1" both canonicalize to "1.8-1". Two Versions are Equal exactly
// when their Canonical strings match.
func (v Version) Canonical() string {
	n := len(v.Components)
	for n > 1 && v.Components[n-1] == 0 {
		n--
	}
	return v.render(n, false)
}

func (v Version) render(components int, hash bool) string {
	var b strings.Builder
	for i := 0; i < components; i++ {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(v.Components[i]))
	}
	if v.Revision != 0 {
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(v.Revision))
	}
	if hash && v.Hash != "" {
		b.WriteByte('_')
		b.WriteString(v.Hash)
	}
	return b.String()
}

// Component returns the i-th numeric component, treating components beyond
// the parsed length as 0. This realizes the "missing tail components are
// zero" comparison rule.
func (v Version) Component(i int) int {
	if i < len(v.Components) {
		return v.Components[i]
	}
	return 0
}

// Compare compares v with other and reports their ordering.
//
// It returns:
//
//	-1 if v <  other
//	 0 if v == other
//	+1 if v >  other
//
// Components are compared pairwise as integers with missing tail
// components treated as 0, so "1.0" == "1.0.0". When all components
// compare equal the revisions decide, with a higher revision ordering
// later ("1.0-2" > "1.0-1"). The hash tag is ignored entirely.
//
// Compare is a total order on parsed versions: reflexive, antisymmetric
// and transitive.
func (v Version) Compare(other Version) int {
	n := len(v.Components)
	if len(other.Components) > n {
		n = len(other.Components)
	}
	for i := 0; i < n; i++ {
		a, b := v.Component(i), other.Component(i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	if v.Revision != other.Revision {
		if v.Revision < other.Revision {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether v is strictly less than other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other represent the same parsed version.
//
// Raw spelling and the hash tag are ignored: "1.0" equals "1.0.0", and
// "1.0-1_ab" equals "1.0-1".
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Greater reports whether v is strictly greater than other.
func (v Version) Greater(other Version) bool {
	return v.Compare(other) > 0
}

// PessimisticBound returns the exclusive upper bound implied by the
// pessimistic constraint "~> v": the version with v's last non-zero
// component incremented and the following components dropped.
//
// Examples:
//
//	"5.3"   -> "5.4"
//	"1.8.0" -> "1.9"
//	"2"     -> "3"
//
// When every component is zero the first component is incremented and
// the rest are dropped: "0.0" -> "1". The
// bound carries no revision: "~> 1.0-1" admits any revision of a version
// below the bound.
func (v Version) PessimisticBound() Version {
	last := len(v.Components) - 1
	for last > 0 && v.Components[last] == 0 {
		last--
	}
	bound := make([]int, last+1)
	copy(bound, v.Components[:last+1])
	bound[last]++
	return Version{Components: bound}
}

// StripHash returns a copy of the Version without its dependency-hash tag.
// The raw spelling is dropped so that String renders the hashless
// canonical form; the installer uses this when recording a binary rock
// under its distribution version.
func (v Version) StripHash() Version {
	if v.Hash == "" {
		return v
	}
	out := v
	out.Hash = ""
	out.Raw = out.render(len(out.Components), false)
	return out
}

// Validate checks that the Version is well-formed: at least one component,
// no negative components, a non-negative revision, and a hexadecimal hash
// tag when present.
func (v Version) Validate() error {
	if len(v.Components) == 0 {
		return &errors.ValidationError{Type: "Version", Field: "Components", Reason: "must not be empty"}
	}
	for _, c := range v.Components {
		if c < 0 {
			return &errors.ValidationError{Type: "Version", Field: "Components", Reason: "must be non-negative", Value: c}
		}
	}
	if v.Revision < 0 {
		return &errors.ValidationError{Type: "Version", Field: "Revision", Reason: "must be non-negative", Value: v.Revision}
	}
	if v.Hash != "" && !isHex(v.Hash) {
		return &errors.ValidationError{Type: "Version", Field: "Hash", Reason: "must be hexadecimal", Value: v.Hash}
	}
	return nil
}

// IsZero reports whether the Version is the zero value (no components, no
// revision, no hash). A parsed "0" is NOT zero: it has one component.
func (v Version) IsZero() bool {
	return len(v.Components) == 0 && v.Revision == 0 && v.Hash == "" && v.Raw == ""
}

// TypeName returns "Version", the name of the type for diagnostics.
func (v Version) TypeName() string {
	return "Version"
}

// Redacted returns the same representation as String. Versions carry no
// sensitive information.
func (v Version) Redacted() string {
	return v.String()
}

// MarshalJSON implements json.Marshaler for Version.
//
// A valid Version is serialized as its display string (the retained raw
// spelling when present). An invalid Version returns the validation error
// and produces no output.
func (v Version) MarshalJSON() ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON implements json.Unmarshaler for Version. The JSON value
// must be a string in the rock version grammar; it is parsed via Parse.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &errors.UnmarshalError{Type: "Version", Data: data, Reason: err.Error()}
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for Version. A valid Version is
// serialized as a scalar string; validation failures abort the encode.
func (v Version) MarshalYAML() (interface{}, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Version. The YAML value is
// expected to be a scalar string in the rock version grammar.
func (v *Version) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return &errors.UnmarshalError{Type: "Version", Data: nil, Reason: err.Error()}
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*v = parsed
	return nil
}
