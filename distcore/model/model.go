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

// Package model defines the core contracts that luadist domain types
// implement to ensure consistency, type safety, and proper behavior across
// the system.
//
// Every domain type representing package-management entities (such as
// Version, Constraint, Package, Rockspec, Manifest) SHOULD implement the
// Model interface or its constituent parts (Validatable, Serializable,
// Loggable, Identifiable, ZeroCheckable). These interfaces establish a
// common contract for validation, serialization, logging, and identity
// that enables generic operations and guarantees safety at compile time.
//
// Validation ensures that invalid states cannot be constructed or
// persisted: the installed-package database and every rockspec pass
// through Validate before they are written to disk or acted upon.
// Serialization provides round-trip guarantees for the YAML state files
// luadist owns. Loggable keeps local filesystem paths out of routine log
// output. Identifiable and ZeroCheckable support structured diagnostics
// and optional-field detection.
//
// Unless explicitly documented otherwise, implementations are not
// thread-safe for concurrent mutation. Most model types are immutable
// value types and therefore safe for concurrent reads; callers MUST
// synchronize any concurrent writes to mutable instances.
//
// Types implementing Model can be used with the generic helper functions
// in this package, such as ValidateAll, FilterZero, ToYAML, Clone, and
// Equal.
package model

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Model is the root interface combining all fundamental contracts required
// for luadist domain types. Any type implementing Model gains automatic
// support for validation, serialization to JSON and YAML, safe logging,
// type identification, and zero-value detection.
//
// Implementations MUST satisfy all embedded interfaces. Model instances
// are generally treated as immutable value types: methods defined on Model
// SHOULD NOT mutate the receiver unless explicitly documented.
//
// Example:
//
//	var _ Model = (*Version)(nil) // compile-time check
type Model interface {
	Validatable
	Serializable
	Loggable
	Identifiable
	ZeroCheckable
}

// Validatable defines the contract for types that validate their own
// state.
//
// The Validate method MUST check all required fields, verify cross-field
// consistency, recursively validate nested objects, and return nil if and
// only if the instance is fully valid. Error messages MUST describe what
// is invalid specifically; generic messages such as "validation failed"
// are discouraged.
//
// Validate MUST be fast (no I/O), deterministic, idempotent, and free of
// side effects. Callers SHOULD invoke it at boundaries: after unmarshaling
// external input, before persisting state, and before emitting values into
// user-facing output.
type Validatable interface {
	// Validate checks the instance's invariants and returns a descriptive
	// error when any of them is violated.
	Validate() error
}

// Serializable defines the contract for types that round-trip through both
// JSON and YAML.
//
// luadist persists its installed-package database and debug manifests as
// YAML and uses JSON for generic deep-copy and equality helpers, so every
// model type carries both codec pairs. Implementations MUST guarantee that
// marshal followed by unmarshal reproduces an equal value.
type Serializable interface {
	json.Marshaler
	json.Unmarshaler
	yaml.Marshaler
	yaml.Unmarshaler
}

// Loggable defines the contract for types that provide safe string
// representations for logging and debugging.
//
// Redacted returns a representation suitable for production logging. For
// luadist types the sensitive surface is small but real: absolute local
// filesystem paths (which can embed usernames) MUST NOT appear in
// Redacted output, while names, versions and constraint text can be shown
// in full. String returns the complete representation and MAY include
// local paths; it is intended for development and debug-level output only.
//
// Both methods MUST be cheap, side-effect free, and safe for concurrent
// use. When a type nests other Loggable values, Redacted SHOULD delegate
// to their Redacted methods so redaction is consistent throughout the
// graph.
type Loggable interface {
	// Redacted returns a safe string representation suitable for
	// production logging.
	Redacted() string

	// String returns the full human-readable representation. It MAY
	// include local filesystem paths and MUST NOT be used for routine
	// logging; prefer Redacted.
	String() string
}

// Identifiable defines the contract for types that can identify themselves
// by a canonical type name.
//
// The name returned by TypeName MUST be constant for a given type, unique
// within luadist, and rendered in CamelCase (for example, "Version",
// "Rockspec"). Error messages and structured logs include the type name to
// clarify what kind of object failed validation or processing.
type Identifiable interface {
	// TypeName returns the canonical name of this model type.
	TypeName() string
}

// ZeroCheckable defines the contract for types that can report whether
// they hold their zero value.
//
// An instance is considered zero if all of its fields are at their type's
// zero value and the instance carries no semantic content. For types where
// the zero value is meaningful (for example, a Constraint with no clauses
// accepts every version), IsZero still reports the structural emptiness;
// the semantic interpretation is up to the caller.
type ZeroCheckable interface {
	// IsZero reports whether the instance is empty or uninitialized.
	IsZero() bool
}

// Comparable defines the contract for types that can be compared for
// equality without the JSON round-trip performed by the generic Equal
// helper. This interface is optional but recommended for value types that
// are compared frequently, such as Version.
type Comparable[T any] interface {
	// Equal reports whether the receiver and other represent the same
	// value.
	Equal(other T) bool
}

// Cloneable defines the contract for types that can create deep copies of
// themselves without the JSON round-trip performed by the generic Clone
// helper. Mutable aggregate types such as the installed-package set SHOULD
// implement it: the resolver deep-copies the installed view before every
// attempt and must not share backing storage with the original.
type Cloneable[T any] interface {
	// Clone returns a deep copy that shares no mutable state with the
	// receiver.
	Clone() T
}
