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

	"dirpx.dev/luadist/distcore/errors"
)

// BuildType selects how the installer turns a rock's source tree into
// built artifacts.
//
// The installer normalizes every rock to a CMake build: BuildBuiltin and
// BuildNone get a generated CMakeLists.txt, while BuildCMake uses the
// rock's own file when one is present. The vocabulary is closed by the
// rockspec format.
type BuildType int

const (
	// BuildBuiltin generates a build description from the rockspec's
	// build.modules table. This is the default when a rockspec names no
	// build type.
	BuildBuiltin BuildType = iota

	// BuildCMake uses the rock's own CMakeLists.txt when the source tree
	// provides one; otherwise a build description is generated from the
	// rockspec, and generation failure is fatal.
	BuildCMake

	// BuildNone marks a recipe with nothing to compile, which is how
	// pure-Lua rocks and configuration-only rocks are deployed. The build
	// description is generated as for BuildBuiltin, so any build.modules
	// entries are still emitted; an empty description is not an error.
	BuildNone
)

// String constants for BuildType values used in serialization, parsing,
// and human-facing output. These are the exact spellings of the rockspec
// format and MUST NOT change.
const (
	BuildBuiltinStr = "builtin"
	BuildCMakeStr   = "cmake"
	BuildNoneStr    = "none"
)

// ParseBuildType converts a textual representation into a BuildType
// value. The empty string maps to BuildBuiltin, matching the rockspec
// format's default. Any other unrecognized input returns a *ParseError.
func ParseBuildType(s string) (BuildType, error) {
	switch s {
	case BuildBuiltinStr, "":
		return BuildBuiltin, nil
	case BuildCMakeStr:
		return BuildCMake, nil
	case BuildNoneStr:
		return BuildNone, nil
	default:
		return BuildBuiltin, &errors.ParseError{Type: "BuildType", Value: s}
	}
}

// String returns the canonical spelling of the BuildType, or "unknown"
// for values outside the defined constants.
func (b BuildType) String() string {
	switch b {
	case BuildBuiltin:
		return BuildBuiltinStr
	case BuildCMake:
		return BuildCMakeStr
	case BuildNone:
		return BuildNoneStr
	default:
		return "unknown"
	}
}

// Valid reports whether the BuildType is one of the defined constants.
func (b BuildType) Valid() bool {
	return b == BuildBuiltin || b == BuildCMake || b == BuildNone
}

// MarshalJSON implements json.Marshaler for BuildType, emitting the
// canonical spelling. Invalid values return a *MarshalError.
func (b BuildType) MarshalJSON() ([]byte, error) {
	if !b.Valid() {
		return nil, &errors.MarshalError{Type: "BuildType", Value: int(b)}
	}
	return json.Marshal(b.String())
}

// UnmarshalJSON implements json.Unmarshaler for BuildType. String input
// is resolved via ParseBuildType; numeric input corresponds to the enum
// constants in declaration order.
func (b *BuildType) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return &errors.UnmarshalError{Type: "BuildType", Data: data, Reason: "empty data"}
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return &errors.UnmarshalError{Type: "BuildType", Data: data, Reason: err.Error()}
		}
		parsed, err := ParseBuildType(str)
		if err != nil {
			return err
		}
		*b = parsed
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return &errors.UnmarshalError{Type: "BuildType", Data: data, Reason: err.Error()}
	}
	*b = BuildType(i)
	if !b.Valid() {
		return &errors.UnmarshalError{Type: "BuildType", Data: data, Reason: "invalid numeric value"}
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler for BuildType, emitting
// the canonical spelling. Used by YAML encoding.
func (b BuildType) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, &errors.MarshalError{Type: "BuildType", Value: int(b)}
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for BuildType, using
// ParseBuildType as the single source of truth for the vocabulary.
func (b *BuildType) UnmarshalText(text []byte) error {
	parsed, err := ParseBuildType(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// TypeName returns "BuildType", the name of the type for diagnostics.
func (b BuildType) TypeName() string {
	return "BuildType"
}

// Redacted returns the same string as String. Build types carry no
// sensitive information.
func (b BuildType) Redacted() string {
	return b.String()
}

// IsZero reports whether the BuildType has its zero value. The zero value
// is BuildBuiltin, the format default, so IsZero returning true does not
// indicate an error condition.
func (b BuildType) IsZero() bool {
	return b == BuildBuiltin
}

// Validate checks whether the BuildType is one of the defined constants
// and returns a *MarshalError otherwise.
func (b BuildType) Validate() error {
	if !b.Valid() {
		return &errors.MarshalError{Type: "BuildType", Value: int(b)}
	}
	return nil
}
