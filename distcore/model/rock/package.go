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

package rock

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model"
	"dirpx.dev/luadist/distcore/model/version"
)

// Package is a concrete (name, version) package instance.
//
// Packages are created by the resolver (selection from the manifest) or
// by loading the installed-package database. They are mutated only during
// install — the pipeline attaches Spec, then Files, then BinDependencies.
// Pack leaves the Package unchanged and writes the dependency-hash tagged
// version into a copy of its rockspec. Two Packages are equal iff their names and parsed versions are
// equal; the Spec and file lists do not participate in identity.
type Package struct {
	// Name is the package name.
	Name string `json:"name" yaml:"name"`

	// Version is the package's parsed version.
	Version version.Version `json:"version" yaml:"version"`

	// Spec is the package's rockspec, attached when install begins. It
	// is nil for freshly resolved packages that have not been fetched
	// yet.
	Spec *Rockspec `json:"spec,omitempty" yaml:"spec,omitempty"`

	// Files lists every file the package installed, relative to the
	// deploy root. Populated by the installer; never absolute.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`

	// BinDependencies names the exact runtime dependencies the package
	// was built against, as canonical "name version" strings. Filled by
	// the post-install pass; every entry names a package present in the
	// installed set at persistence time.
	BinDependencies []string `json:"bin_dependencies,omitempty" yaml:"bin_dependencies,omitempty"`

	// BuiltOnPlatform is the platform tag the package was built on.
	BuiltOnPlatform string `json:"built_on_platform,omitempty" yaml:"built_on_platform,omitempty"`

	// Provisional marks a package inserted only to drive a fallback
	// resolver attempt. Provisional packages MUST never appear in the
	// final install list nor in the persisted installed set.
	Provisional bool `json:"provisional,omitempty" yaml:"provisional,omitempty"`
}

// Compile-time check that Package implements the model.Model interface.
var _ model.Model = (*Package)(nil)

// New returns a Package with the given name and version.
func New(name string, v version.Version) *Package {
	return &Package{Name: name, Version: v}
}

// ID returns the package's "name version" identity string, used for
// staging directory names, diagnostics and bin-dependency records.
func (p *Package) ID() string {
	return p.Name + " " + p.Version.String()
}

// Equal reports whether two packages share name and parsed version.
func (p *Package) Equal(other *Package) bool {
	if other == nil {
		return p == nil
	}
	return p.Name == other.Name && p.Version.Equal(other.Version)
}

// Matches reports whether the package satisfies the reference: same name
// and every constraint clause holds against the package's version.
func (p *Package) Matches(ref Ref) bool {
	return p.Name == ref.Name && ref.Matches(p.Version)
}

// Clone returns a deep copy of the package. The resolver clones the
// entire installed view before every attempt so that failed attempts
// leave no trace.
func (p *Package) Clone() *Package {
	out := *p
	if p.Spec != nil {
		out.Spec = p.Spec.Clone()
	}
	out.Files = append([]string(nil), p.Files...)
	out.BinDependencies = append([]string(nil), p.BinDependencies...)
	if p.Version.Components != nil {
		out.Version.Components = append([]int(nil), p.Version.Components...)
	}
	return &out
}

// Validate checks the package's invariants: a non-empty name, a valid
// version, relative file paths, and a valid spec when one is attached.
func (p *Package) Validate() error {
	if p.Name == "" {
		return &errors.ValidationError{Type: "Package", Field: "Name", Reason: "must not be empty"}
	}
	if err := p.Version.Validate(); err != nil {
		return &errors.ValidationError{Type: "Package", Field: "Version", Reason: err.Error()}
	}
	for _, f := range p.Files {
		if filepath.IsAbs(f) || strings.HasPrefix(f, "/") {
			return &errors.ValidationError{Type: "Package", Field: "Files", Reason: "must be relative to the deploy root", Value: f}
		}
	}
	if p.Spec != nil {
		if err := p.Spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsZero reports whether the package is the zero value.
func (p *Package) IsZero() bool {
	return p == nil || p.Name == "" && p.Version.IsZero() && p.Spec == nil &&
		len(p.Files) == 0 && len(p.BinDependencies) == 0
}

// TypeName returns "Package", the name of the type for diagnostics.
func (p *Package) TypeName() string {
	return "Package"
}

// String returns the package identity. Local paths never live on the
// Package itself, so String and Redacted coincide.
func (p *Package) String() string {
	return p.ID()
}

// Redacted returns the same representation as String.
func (p *Package) Redacted() string {
	return p.ID()
}

// packageAlias strips Package's methods so the codec implementations
// below can delegate to the default struct encoding without recursing.
type packageAlias Package

// MarshalJSON implements json.Marshaler for Package via the default
// struct encoding.
func (p *Package) MarshalJSON() ([]byte, error) {
	return json.Marshal((*packageAlias)(p))
}

// UnmarshalJSON implements json.Unmarshaler for Package via the default
// struct decoding.
func (p *Package) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, (*packageAlias)(p))
}

// MarshalYAML implements yaml.Marshaler for Package via the default
// struct encoding.
func (p *Package) MarshalYAML() (interface{}, error) {
	return (*packageAlias)(p), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Package via the default
// struct decoding.
func (p *Package) UnmarshalYAML(value *yaml.Node) error {
	return value.Decode((*packageAlias)(p))
}
