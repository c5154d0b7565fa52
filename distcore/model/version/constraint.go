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
	"strings"

	"gopkg.in/yaml.v3"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model"
)

// Clause is a single (operator, version) pair inside a Constraint.
type Clause struct {
	// Op is the comparison the clause performs.
	Op Operator `json:"op" yaml:"op"`

	// Version is the right-hand side of the comparison.
	Version Version `json:"version" yaml:"version"`
}

// Holds reports whether the candidate version satisfies this clause.
func (c Clause) Holds(candidate Version) bool {
	return c.Op.Holds(candidate, c.Version)
}

// String renders the clause as "op version", the form used inside
// dependency strings.
func (c Clause) String() string {
	return c.Op.String() + " " + c.Version.String()
}

// Validate checks the clause's operator and version.
func (c Clause) Validate() error {
	if err := c.Op.Validate(); err != nil {
		return err
	}
	return c.Version.Validate()
}

// Constraint is a conjunction of clauses over a version.
//
// A Constraint with no clauses accepts every version; this is how a bare
// package name ("xml", no version) is represented. Constraints are
// immutable value types: Satisfies never mutates the receiver, and And
// returns a new Constraint.
type Constraint struct {
	// Clauses are the AND-combined comparison clauses.
	Clauses []Clause `json:"clauses,omitempty" yaml:"clauses,omitempty"`
}

// Compile-time check that Constraint implements the model.Model
// interface.
var _ model.Model = (*Constraint)(nil)

// ParseConstraint parses the textual clause list of a dependency string,
// the part after the package name: "OP VERSION[, OP VERSION...]". A bare
// version with no operator is shorthand for equality, so "5.1.5" parses
// as "== 5.1.5".
//
// Examples:
//
//	ParseConstraint(">= 5.1")        -> one clause
//	ParseConstraint(">= 5.1, < 5.4") -> two clauses
//	ParseConstraint("1.8.0-1")       -> one equality clause
//	ParseConstraint("")              -> empty constraint (matches all)
//
// Malformed clauses return a *ParseError carrying the offending fragment.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Constraint{}, nil
	}

	var out Constraint
	for _, frag := range strings.Split(s, ",") {
		frag = strings.TrimSpace(frag)
		if frag == "" {
			return Constraint{}, &errors.ParseError{Type: "Constraint", Value: s}
		}

		fields := strings.Fields(frag)
		var clause Clause
		switch len(fields) {
		case 1:
			// Either "OPVERSION" glued together or a bare version.
			op, rest, ok := splitGluedOperator(fields[0])
			if ok {
				v, err := Parse(rest)
				if err != nil {
					return Constraint{}, &errors.ParseError{Type: "Constraint", Value: frag}
				}
				clause = Clause{Op: op, Version: v}
			} else {
				v, err := Parse(fields[0])
				if err != nil {
					return Constraint{}, &errors.ParseError{Type: "Constraint", Value: frag}
				}
				clause = Clause{Op: OpEq, Version: v}
			}
		case 2:
			op, err := ParseOperator(fields[0])
			if err != nil {
				return Constraint{}, &errors.ParseError{Type: "Constraint", Value: frag}
			}
			v, err := Parse(fields[1])
			if err != nil {
				return Constraint{}, &errors.ParseError{Type: "Constraint", Value: frag}
			}
			clause = Clause{Op: op, Version: v}
		default:
			return Constraint{}, &errors.ParseError{Type: "Constraint", Value: frag}
		}

		out.Clauses = append(out.Clauses, clause)
	}

	return out, nil
}

// splitGluedOperator splits a fragment like ">=5.1" into its operator and
// version parts. Two-character operators are tried before one-character
// ones so that ">=" is not misread as ">" followed by "=5.1".
func splitGluedOperator(s string) (Operator, string, bool) {
	for _, opStr := range []string{OpEqStr, OpNeStr, OpLeStr, OpGeStr, OpPessimisticStr, OpLtStr, OpGtStr} {
		if strings.HasPrefix(s, opStr) && len(s) > len(opStr) {
			op, err := ParseOperator(opStr)
			if err != nil {
				return OpEq, "", false
			}
			return op, s[len(opStr):], true
		}
	}
	return OpEq, "", false
}

// Satisfies reports whether the candidate version satisfies every clause
// of the constraint. An empty constraint is satisfied by every version.
func (c Constraint) Satisfies(candidate Version) bool {
	for _, clause := range c.Clauses {
		if !clause.Holds(candidate) {
			return false
		}
	}
	return true
}

// And returns a new Constraint whose clause list is the receiver's
// followed by other's. Neither input is mutated. The resolver uses this to
// accumulate constraints on a package from multiple dependents.
func (c Constraint) And(other Constraint) Constraint {
	if len(other.Clauses) == 0 {
		return c
	}
	merged := make([]Clause, 0, len(c.Clauses)+len(other.Clauses))
	merged = append(merged, c.Clauses...)
	merged = append(merged, other.Clauses...)
	return Constraint{Clauses: merged}
}

// String renders the constraint as its comma-separated clause list. An
// empty constraint renders as the empty string.
func (c Constraint) String() string {
	parts := make([]string, len(c.Clauses))
	for i, clause := range c.Clauses {
		parts[i] = clause.String()
	}
	return strings.Join(parts, ", ")
}

// Validate checks every clause of the constraint.
func (c Constraint) Validate() error {
	for i, clause := range c.Clauses {
		if err := clause.Validate(); err != nil {
			return &errors.ValidationError{
				Type:   "Constraint",
				Field:  "Clauses",
				Reason: "clause " + clause.String() + " is invalid",
				Value:  i,
			}
		}
	}
	return nil
}

// IsZero reports whether the constraint has no clauses. A zero Constraint
// is valid and matches every version.
func (c Constraint) IsZero() bool {
	return len(c.Clauses) == 0
}

// TypeName returns "Constraint", the name of the type for diagnostics.
func (c Constraint) TypeName() string {
	return "Constraint"
}

// Redacted returns the same representation as String. Constraints carry no
// sensitive information.
func (c Constraint) Redacted() string {
	return c.String()
}

// MarshalJSON implements json.Marshaler for Constraint, emitting the
// textual clause list. Validation failures abort the encode.
func (c Constraint) MarshalJSON() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler for Constraint. The JSON value
// must be a string in the clause-list grammar accepted by
// ParseConstraint.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &errors.UnmarshalError{Type: "Constraint", Data: data, Reason: err.Error()}
	}

	parsed, err := ParseConstraint(s)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for Constraint, emitting the
// textual clause list as a scalar.
func (c Constraint) MarshalYAML() (interface{}, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Constraint. The YAML value
// is expected to be a scalar string in the clause-list grammar.
func (c *Constraint) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return &errors.UnmarshalError{Type: "Constraint", Data: nil, Reason: err.Error()}
	}

	parsed, err := ParseConstraint(s)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}
