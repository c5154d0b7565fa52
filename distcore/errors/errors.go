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

// Package errors provides reusable error types for the luadist model and
// pipeline packages.
//
// Two families of errors live here:
//
//   - Value errors (ParseError, MarshalError, UnmarshalError,
//     ValidationError) returned by the strongly typed model types when
//     parsing, marshaling, unmarshaling or validating fails. These are
//     intentionally simple value carriers with stable message formats,
//     easy to construct and easy to recognize via errors.As.
//
//   - Operation errors (ManifestError, ResolveError, FetchError,
//     InstallError, NoSourceError, PackError, BundleError) returned by the
//     pipeline stages. Each maps to a stable numeric code at the CLI
//     boundary; see Code and ExitCode.
//
// Operation errors propagate to the orchestrator unchanged: no layer
// retries, and no layer rewraps one kind into another. Where a child
// process was involved, the captured combined output is attached so that
// the user sees the failing tool's own diagnostics.
package errors

import "strconv"

// ParseError is returned when parsing a string into a strongly typed value
// fails.
//
// Type identifies the logical type being parsed (for example, "Version",
// "Operator", "Ref"), and Value contains the exact string that could not be
// interpreted. Callers MAY pattern-match on Type to provide type-specific
// guidance to users.
type ParseError struct {
	// Type is the logical name of the type being parsed (for example, "Version").
	Type string

	// Value is the invalid textual representation that was provided.
	Value string
}

// Error implements the error interface for ParseError.
//
// The error message format is:
//
//	"luadist: invalid {Type} value: {Value}"
//
// The format is intentionally stable so that callers can rely on it for
// diagnostics, while still preferring type assertions where possible.
func (e *ParseError) Error() string {
	return "luadist: invalid " + e.Type + " value: " + e.Value
}

// MarshalError is returned when marshaling a typed value fails due to it
// being outside the set of valid constants.
//
// Type identifies the logical type being marshaled (for example,
// "Operator"), and Value contains the underlying numeric value that was
// deemed invalid. In most cases a MarshalError indicates a programming
// error (for example, a zero value that was never validated).
type MarshalError struct {
	// Type is the logical name of the type being marshaled.
	Type string

	// Value is the underlying numeric representation that could not be
	// marshaled because it does not correspond to a known constant.
	Value int
}

// Error implements the error interface for MarshalError.
//
// The error message format is:
//
//	"luadist: cannot marshal invalid {Type} value: {Value}"
//
// where Value is rendered as a decimal integer.
func (e *MarshalError) Error() string {
	return "luadist: cannot marshal invalid " + e.Type + " value: " + strconv.Itoa(e.Value)
}

// UnmarshalError is returned when unmarshaling data into a typed value
// fails.
//
// Type identifies the logical type being populated, Data contains the
// original raw payload (typically a YAML or table-text fragment), and
// Reason provides a human-readable description of what went wrong. Callers
// MAY wrap UnmarshalError with additional context when propagating it
// further up the stack.
type UnmarshalError struct {
	// Type is the logical name of the type being unmarshaled into.
	Type string

	// Data is the raw input that failed to unmarshal.
	//
	// Callers MAY choose to log or redact this field depending on size
	// considerations.
	Data []byte

	// Reason is a short, human-readable explanation of the failure.
	//
	// Reason SHOULD describe what went wrong (for example, "empty data" or
	// "unknown value 'foo'") rather than repeating the type name; the type
	// name is already available in the Type field and reflected in Error().
	Reason string
}

// Error implements the error interface for UnmarshalError.
//
// The error message format is:
//
//	"luadist: cannot unmarshal {Type}: {Reason}"
//
// The Data field is intentionally not included in the formatted message to
// avoid excessively verbose logs; callers can log it separately when
// appropriate.
func (e *UnmarshalError) Error() string {
	return "luadist: cannot unmarshal " + e.Type + ": " + e.Reason
}

// ValidationError is returned when validation of a model type fails.
//
// Type identifies the logical name of the type being validated (for
// example, "Package", "Rockspec"), Field optionally identifies which field
// failed validation, Reason provides a human-readable explanation, and
// Value optionally contains the problematic value.
//
// This error is used by Validate() methods in model types to report
// constraint violations, missing required fields, or invalid field values.
type ValidationError struct {
	// Type is the logical name of the type being validated.
	Type string

	// Field is the name of the field that failed validation.
	// May be empty if the error applies to the entire type.
	Field string

	// Reason is a short, human-readable explanation of why validation failed.
	Reason string

	// Value optionally contains the invalid value.
	// May be nil if not applicable.
	Value any
}

// Error implements the error interface for ValidationError.
//
// The error message format is:
//
//	"luadist: invalid {Type}.{Field}: {Reason}" (when Field is specified)
//	"luadist: invalid {Type}: {Reason}" (when Field is empty)
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "luadist: invalid " + e.Type + "." + e.Field + ": " + e.Reason
	}
	return "luadist: invalid " + e.Type + ": " + e.Reason
}
