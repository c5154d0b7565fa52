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
	"strings"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/version"
)

// Source describes where a rock's source tree comes from: a repository
// URL plus an optional tag or branch to check out. Tag wins over Branch
// when both are present.
type Source struct {
	// URL is the repository or archive location.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Tag is the tag to check out, when present.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`

	// Branch is the branch to check out, when present and Tag is not.
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
}

// IsZero reports whether the Source carries no location at all.
func (s Source) IsZero() bool {
	return s == Source{}
}

// Description holds the human-facing metadata of a rock.
type Description struct {
	Summary  string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Homepage string `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	License  string `json:"license,omitempty" yaml:"license,omitempty"`

	// BuiltOn records the platform tag a binary rock was built on. It is
	// filled by the packer and empty for source rocks.
	BuiltOn string `json:"built_on,omitempty" yaml:"built_on,omitempty"`
}

// Build holds the build recipe of a rock.
type Build struct {
	// Type selects the build machinery; see BuildType.
	Type BuildType `json:"type,omitempty" yaml:"type,omitempty"`

	// Variables are CMake cache variables the rockspec requests. They
	// rank below caller overrides: the installer applies them only for
	// keys not already set.
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Modules maps module names (dotted form, "socket.http") to the
	// source files that build them. A module with one pure-source entry
	// ending in .lua deploys as a script; anything else compiles into a
	// native library.
	Modules map[string][]string `json:"modules,omitempty" yaml:"modules,omitempty"`

	// Install maps deploy subtrees ("lua", "bin", "conf") to files
	// copied verbatim under the corresponding deploy-root directory.
	Install map[string][]string `json:"install,omitempty" yaml:"install,omitempty"`
}

// Rockspec is a rock's structured descriptor: identity, source location,
// metadata, dependencies, platform filter and build recipe.
//
// The field set is a closed enumeration fixed by the on-disk format; the
// loader rejects documents with fields outside it. A rockspec either
// describes a source rock (Files empty, Build meaningful) or an
// already-built binary rock (Files lists the payload, no build runs); see
// IsBinary.
type Rockspec struct {
	// Package is the rock's name.
	Package string `json:"package" yaml:"package"`

	// Version is the rock's version, including the dependency-hash tag
	// for exported binary rocks.
	Version version.Version `json:"version" yaml:"version"`

	// Source locates the rock's source tree. Binary rocks may omit it.
	Source Source `json:"source,omitempty" yaml:"source,omitempty"`

	// Description is the human-facing metadata.
	Description Description `json:"description,omitempty" yaml:"description,omitempty"`

	// Dependencies are runtime dependency strings in the Ref grammar
	// ("lua >= 5.1").
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// SupportedPlatforms restricts the rock to the named platform tags.
	// An empty list means every platform.
	SupportedPlatforms []string `json:"supported_platforms,omitempty" yaml:"supported_platforms,omitempty"`

	// Build is the build recipe. Ignored for binary rocks.
	Build Build `json:"build,omitempty" yaml:"build,omitempty"`

	// Files lists the payload of a binary rock, relative to the deploy
	// root. Present only for already-built rocks.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// IsBinary reports whether the rockspec describes an already-built rock.
// The installer short-circuits the build for binary rocks and copies
// Files directly under the deploy root.
func (r *Rockspec) IsBinary() bool {
	return len(r.Files) > 0
}

// DependencyRefs parses the Dependencies strings into Refs, failing on
// the first malformed entry.
func (r *Rockspec) DependencyRefs() ([]Ref, error) {
	return ParseRefs(r.Dependencies)
}

// SupportedOn reports whether the rockspec admits any of the active
// platform tags. A rockspec with no SupportedPlatforms admits every
// platform. A tag prefixed with "!" excludes that platform and takes
// precedence over any positive match.
func (r *Rockspec) SupportedOn(active []string) bool {
	return PlatformSupported(r.SupportedPlatforms, active)
}

// PlatformSupported evaluates a supported_platforms list against the
// active platform tag set. With no positive entries, only the negations
// decide; with positive entries at least one must match.
func PlatformSupported(supported, active []string) bool {
	if len(supported) == 0 {
		return true
	}

	activeSet := make(map[string]bool, len(active))
	for _, tag := range active {
		activeSet[tag] = true
	}

	positive := false
	matched := false
	for _, entry := range supported {
		if neg, ok := strings.CutPrefix(entry, "!"); ok {
			if activeSet[neg] {
				return false
			}
			continue
		}
		positive = true
		if activeSet[entry] {
			matched = true
		}
	}
	if !positive {
		return true
	}
	return matched
}

// Validate checks the rockspec's identity fields, version, build type and
// dependency strings.
func (r *Rockspec) Validate() error {
	if r.Package == "" {
		return &errors.ValidationError{Type: "Rockspec", Field: "Package", Reason: "must not be empty"}
	}
	if err := r.Version.Validate(); err != nil {
		return &errors.ValidationError{Type: "Rockspec", Field: "Version", Reason: err.Error()}
	}
	if err := r.Build.Type.Validate(); err != nil {
		return &errors.ValidationError{Type: "Rockspec", Field: "Build.Type", Reason: err.Error()}
	}
	for _, dep := range r.Dependencies {
		if _, err := ParseRef(dep); err != nil {
			return &errors.ValidationError{Type: "Rockspec", Field: "Dependencies", Reason: "malformed dependency", Value: dep}
		}
	}
	return nil
}

// IsZero reports whether the rockspec is the zero value.
func (r *Rockspec) IsZero() bool {
	return r.Package == "" && r.Version.IsZero() && r.Source.IsZero() &&
		len(r.Dependencies) == 0 && len(r.Files) == 0
}

// TypeName returns "Rockspec", the name of the type for diagnostics.
func (r *Rockspec) TypeName() string {
	return "Rockspec"
}

// FileName returns the canonical on-disk name of the rockspec:
// "<package>-<version>.rockspec".
func (r *Rockspec) FileName() string {
	return r.Package + "-" + r.Version.String() + ".rockspec"
}

// Clone returns a deep copy of the rockspec.
func (r *Rockspec) Clone() *Rockspec {
	out := *r
	out.Dependencies = append([]string(nil), r.Dependencies...)
	out.SupportedPlatforms = append([]string(nil), r.SupportedPlatforms...)
	out.Files = append([]string(nil), r.Files...)
	out.Build.Variables = cloneStringMap(r.Build.Variables)
	out.Build.Modules = cloneListMap(r.Build.Modules)
	out.Build.Install = cloneListMap(r.Build.Install)
	if v := r.Version.Components; v != nil {
		out.Version.Components = append([]int(nil), v...)
	}
	return &out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneListMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
