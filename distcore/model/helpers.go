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

package model

import (
	"encoding/json"
	"fmt"

	"dirpx.dev/rxmerr"
	"gopkg.in/yaml.v3"
)

// ValidateAll validates a slice of models and returns all validation
// errors encountered, rather than stopping at the first failure.
//
// Each model's Validate method is invoked in order. Failures are wrapped
// with the model's position in the slice (zero-indexed) and its type name,
// and aggregated with rxmerr.Collector so callers can identify exactly
// which models failed and why. The entire slice is always processed, even
// when early elements fail, ensuring complete error reporting.
//
// Empty slices are considered valid and return nil. luadist uses this when
// loading the installed-package database: a corrupted entry is reported
// alongside every other corrupted entry, not one at a time.
func ValidateAll[T Model](models []T) error {
	c := rxmerr.NewCollector()

	for i, m := range models {
		if err := m.Validate(); err != nil {
			c.Append(fmt.Errorf("model[%d] (%s): %w", i, m.TypeName(), err))
		}
	}

	return c.Err()
}

// FilterZero returns a new slice containing only non-zero models, as
// reported by each model's IsZero method.
//
// The returned slice is always a new allocation and never shares backing
// array storage with the input. If all models are zero, or the input is
// empty or nil, the function returns an empty non-nil slice. Callers
// SHOULD use FilterZero before serializing collections to avoid persisting
// empty placeholder values.
func FilterZero[T Model](models []T) []T {
	result := make([]T, 0, len(models))

	for _, m := range models {
		if !m.IsZero() {
			result = append(result, m)
		}
	}

	return result
}

// MustValidate validates a model and panics if validation fails.
//
// This is intended for test code and initialization sequences where an
// invalid model is a programming error rather than a recoverable runtime
// condition. Callers MUST NOT use MustValidate on externally supplied
// data; parse and validate explicitly instead.
func MustValidate[T Model](m T) T {
	if err := m.Validate(); err != nil {
		panic(fmt.Sprintf("model validation failed for %s: %v", m.TypeName(), err))
	}
	return m
}

// SafeString returns a string representation of a model that is safe for
// logging by default but can optionally include full details when
// explicitly requested.
//
// When unsafe is false, SafeString returns m.Redacted(); when unsafe is
// true it returns m.String(), which MAY include local filesystem paths.
// The parameter makes the safety decision explicit and auditable at every
// call site.
func SafeString[T Model](m T, unsafe bool) string {
	if unsafe {
		return m.String()
	}
	return m.Redacted()
}

// ToJSON converts a model to JSON bytes after validating it.
//
// If validation fails, no marshaling is attempted and the validation
// failure is returned wrapped with the model's type name. This enforces
// the contract that only valid models are serialized.
func ToJSON[T Model](m T) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("cannot marshal invalid %s: %w", m.TypeName(), err)
	}
	return json.Marshal(m)
}

// ToYAML converts a model to YAML bytes after validating it.
//
// If validation fails, no marshaling is attempted and the validation
// failure is returned wrapped with the model's type name, so an invalid
// model is never serialized.
func ToYAML[T Model](m T) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("cannot marshal invalid %s: %w", m.TypeName(), err)
	}
	return yaml.Marshal(m)
}

// FromJSON parses JSON bytes into a model and validates the result.
//
// Unmarshal failures are returned directly; when unmarshaling succeeds but
// the resulting model fails validation, an error is returned and the model
// variable's state is undefined and MUST NOT be used.
func FromJSON[T Model](data []byte, m *T) error {
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("cannot unmarshal JSON: %w", err)
	}
	if err := (*m).Validate(); err != nil {
		return fmt.Errorf("unmarshaled model is invalid: %w", err)
	}
	return nil
}

// FromYAML parses YAML bytes into a model and validates the result.
//
// Unmarshal failures are returned directly; when unmarshaling succeeds but
// the resulting model fails validation, an error is returned and the model
// variable's state is undefined and MUST NOT be used. This is the loading
// counterpart of ToYAML.
func FromYAML[T Model](data []byte, m *T) error {
	if err := yaml.Unmarshal(data, m); err != nil {
		return fmt.Errorf("cannot unmarshal YAML: %w", err)
	}
	if err := (*m).Validate(); err != nil {
		return fmt.Errorf("unmarshaled model is invalid: %w", err)
	}
	return nil
}

// Clone creates a deep copy of a model via a JSON round-trip.
//
// The round-trip guarantees a deep copy for nested structures, slices and
// maps, at the cost of encode/decode overhead. Types on hot paths SHOULD
// implement Cloneable with hand-written copy logic instead; the resolver's
// installed-set copies do exactly that.
func Clone[T Model](m T) (T, error) {
	var zero T

	data, err := json.Marshal(m)
	if err != nil {
		return zero, fmt.Errorf("clone marshal failed: %w", err)
	}

	var clone T
	if err := json.Unmarshal(data, &clone); err != nil {
		return zero, fmt.Errorf("clone unmarshal failed: %w", err)
	}

	return clone, nil
}

// Equal compares two models for equality by comparing their JSON
// representations byte-for-byte.
//
// If either model fails to marshal, Equal returns false, so a marshal
// error is reported the same way as inequality. Types that
// are compared frequently SHOULD implement Comparable with direct field
// comparison; Version does, because JSON equality would wrongly
// distinguish "1.0" from "1.0.0".
func Equal[T Model](a, b T) bool {
	dataA, errA := json.Marshal(a)
	dataB, errB := json.Marshal(b)

	if errA != nil || errB != nil {
		return false
	}

	return string(dataA) == string(dataB)
}
