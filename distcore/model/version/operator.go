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

package version

import (
	"encoding/json"

	"dirpx.dev/luadist/distcore/errors"
)

// Operator represents a single comparison operator usable in a version
// constraint clause.
//
// A constraint is an AND-combined list of (Operator, Version) clauses;
// Operator encodes which comparison each clause performs. The vocabulary
// is fixed by the rockspec dependency grammar and MUST NOT grow without a
// corresponding change to the dependency-string parser.
type Operator int

const (
	// OpEq matches versions that compare equal to the clause version.
	// Because comparison is on parsed components, "== 1.0" also matches
	// "1.0.0".
	OpEq Operator = iota

	// OpNe matches versions that do not compare equal to the clause
	// version. The rockspec grammar spells it "~=".
	OpNe

	// OpLt matches versions strictly below the clause version.
	OpLt

	// OpLe matches versions at or below the clause version.
	OpLe

	// OpGt matches versions strictly above the clause version.
	OpGt

	// OpGe matches versions at or above the clause version.
	OpGe

	// OpPessimistic is the "~>" operator: at or above the clause version
	// and strictly below the clause version with its last non-zero
	// component incremented. "~> 5.3" admits 5.3, 5.3.4 and 5.3-2 but not
	// 5.4 or 6.0. The packer emits this operator when rewriting runtime
	// dependencies of an exported binary rock.
	OpPessimistic
)

// String constants for Operator values used in serialization, parsing,
// and human-facing output.
//
// These are the exact spellings of the rockspec dependency grammar and
// MUST NOT change: they appear inside published rockspecs.
const (
	OpEqStr          = "=="
	OpNeStr          = "~="
	OpLtStr          = "<"
	OpLeStr          = "<="
	OpGtStr          = ">"
	OpGeStr          = ">="
	OpPessimisticStr = "~>"
)

// ParseOperator converts a textual representation into an Operator value.
//
// Only the exact grammar spellings are accepted ("==", "~=", "<", "<=",
// ">", ">=", "~>"), plus "=" as a tolerated alias for "==" that some
// hand-written rockspecs use. Any other input returns a *ParseError whose
// Value field carries the offending string.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case OpEqStr, "=":
		return OpEq, nil
	case OpNeStr:
		return OpNe, nil
	case OpLtStr:
		return OpLt, nil
	case OpLeStr:
		return OpLe, nil
	case OpGtStr:
		return OpGt, nil
	case OpGeStr:
		return OpGe, nil
	case OpPessimisticStr:
		return OpPessimistic, nil
	default:
		return OpEq, &errors.ParseError{Type: "Operator", Value: s}
	}
}

// String returns the canonical spelling of the Operator.
//
// If the Operator is not one of the defined constants, String returns
// "unknown". Callers that require only valid Operators SHOULD check Valid
// first or treat "unknown" as an indicator of a programming error.
func (o Operator) String() string {
	switch o {
	case OpEq:
		return OpEqStr
	case OpNe:
		return OpNeStr
	case OpLt:
		return OpLtStr
	case OpLe:
		return OpLeStr
	case OpGt:
		return OpGtStr
	case OpGe:
		return OpGeStr
	case OpPessimistic:
		return OpPessimisticStr
	default:
		return "unknown"
	}
}

// Valid reports whether the Operator value is one of the defined
// constants. Code that receives Operators from deserialization or numeric
// casts SHOULD call Valid before using them to evaluate constraints.
func (o Operator) Valid() bool {
	return o >= OpEq && o <= OpPessimistic
}

// Holds evaluates the operator for a candidate version against the clause
// version: "candidate o clause". For OpPessimistic this is the compound
// "candidate >= clause && candidate < clause.PessimisticBound()".
func (o Operator) Holds(candidate, clause Version) bool {
	switch o {
	case OpEq:
		return candidate.Equal(clause)
	case OpNe:
		return !candidate.Equal(clause)
	case OpLt:
		return candidate.Less(clause)
	case OpLe:
		return candidate.Compare(clause) <= 0
	case OpGt:
		return candidate.Greater(clause)
	case OpGe:
		return candidate.Compare(clause) >= 0
	case OpPessimistic:
		return candidate.Compare(clause) >= 0 && candidate.Less(clause.PessimisticBound())
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler for Operator.
//
// A valid Operator is serialized as its canonical spelling (for example,
// ">="). If the value is not valid, MarshalJSON returns a *MarshalError
// and does not produce output, preventing invalid Operators from silently
// leaking into serialized constraints.
func (o Operator) MarshalJSON() ([]byte, error) {
	if !o.Valid() {
		return nil, &errors.MarshalError{Type: "Operator", Value: int(o)}
	}
	return json.Marshal(o.String())
}

// UnmarshalJSON implements json.Unmarshaler for Operator.
//
// The method accepts both string and numeric JSON representations. String
// input is resolved via ParseOperator and is the preferred, stable form;
// numeric input corresponds to the enum constants in declaration order and
// is accepted for compatibility. Invalid input returns an
// *UnmarshalError.
func (o *Operator) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return &errors.UnmarshalError{Type: "Operator", Data: data, Reason: "empty data"}
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return &errors.UnmarshalError{Type: "Operator", Data: data, Reason: err.Error()}
		}
		parsed, err := ParseOperator(str)
		if err != nil {
			return err
		}
		*o = parsed
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return &errors.UnmarshalError{Type: "Operator", Data: data, Reason: err.Error()}
	}
	*o = Operator(i)
	if !o.Valid() {
		return &errors.UnmarshalError{Type: "Operator", Data: data, Reason: "invalid numeric value"}
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler for Operator, emitting the
// canonical spelling. This encoding is used by YAML and other text-based
// formats. If the Operator is invalid, MarshalText returns a
// *MarshalError.
func (o Operator) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, &errors.MarshalError{Type: "Operator", Value: int(o)}
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for Operator, using
// ParseOperator as the single source of truth for the textual vocabulary.
func (o *Operator) UnmarshalText(text []byte) error {
	parsed, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// TypeName returns "Operator", the name of the type for diagnostics.
func (o Operator) TypeName() string {
	return "Operator"
}

// Redacted returns the same string as String. Operators carry no sensitive
// information.
func (o Operator) Redacted() string {
	return o.String()
}

// IsZero reports whether the Operator has its zero value.
//
// The zero value is OpEq (constant 0), which is a valid Operator, so
// IsZero returning true does not indicate an error condition.
func (o Operator) IsZero() bool {
	return o == OpEq
}

// Validate checks whether the Operator is one of the defined constants and
// returns a *MarshalError otherwise.
func (o Operator) Validate() error {
	if !o.Valid() {
		return &errors.MarshalError{Type: "Operator", Value: int(o)}
	}
	return nil
}
