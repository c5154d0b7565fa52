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

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// CLI exit codes, one per operation error kind. Code 0 is success and is
// never carried by an error; codes are stable across releases because
// scripts key off them.
const (
	CodeOK                = 0
	CodeManifestRetrieval = 1
	CodeResolve           = 2
	CodeFetch             = 3
	CodeInstallTarget     = 4
	CodeInstallDep        = 5
	CodeNoSourceFound     = 6
	CodeBinaryExport      = 7
	CodeStaticBundle      = 8
)

// Coded is implemented by every operation error in this package. Code
// returns the numeric CLI exit code of the error kind.
type Coded interface {
	error
	Code() int
}

// ExitCode maps an arbitrary error to its CLI exit code.
//
// Operation errors report their own code via the Coded interface,
// including when wrapped with fmt.Errorf("...: %w", err). Any other
// non-nil error maps to 1 so that a failure is never mistaken for
// success. A nil error maps to CodeOK.
func ExitCode(err error) int {
	if err == nil {
		return CodeOK
	}
	var coded Coded
	if stderrors.As(err, &coded) {
		return coded.Code()
	}
	return 1
}

// ManifestError reports that the merged manifest could not be produced
// because one of the configured repository URLs failed to clone or load.
//
// URL names the failing source; Err carries the underlying cause. The
// whole download-and-merge operation aborts on the first per-URL failure,
// so a ManifestError always means "no merged manifest".
type ManifestError struct {
	// URL is the manifest source that failed.
	URL string

	// Err is the underlying failure.
	Err error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("luadist: cannot retrieve manifest from %q: %v", e.URL, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *ManifestError) Code() int { return CodeManifestRetrieval }

// ResolveError reports that no version assignment satisfies the requested
// targets together with the installed set, including after the interpreter
// fallback has been exhausted.
//
// Target names the package reference that could not be satisfied. Reason
// distinguishes the failure modes a user can act on: an unknown package, a
// version conflict against something already present, or an unsatisfiable
// constraint set.
type ResolveError struct {
	// Target is the textual form of the reference that failed.
	Target string

	// Reason is a short human-readable explanation.
	Reason string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("luadist: cannot resolve %q: %s", e.Target, e.Reason)
}

// Code implements Coded.
func (e *ResolveError) Code() int { return CodeResolve }

// FetchError reports that a package's source was unavailable at every
// candidate repository.
//
// Package names the package; Repos lists the repositories that were tried
// in order; Err carries the last underlying failure.
type FetchError struct {
	// Package is the "name version" identity of the package.
	Package string

	// Repos are the repository paths that were tried, in order.
	Repos []string

	// Err is the last underlying failure.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("luadist: cannot fetch %q from any of [%s]: %v",
		e.Package, strings.Join(e.Repos, ", "), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *FetchError) Code() int { return CodeFetch }

// InstallError reports that building or installing a package failed.
//
// Dep distinguishes a transitive dependency from a package the user named
// directly; the two carry different CLI exit codes because callers react
// differently (a failing dependency usually means a broken upstream, a
// failing target usually means a broken request). Output holds the
// captured combined stdout/stderr of the failing child process, when one
// was involved.
type InstallError struct {
	// Package is the "name version" identity of the failing package.
	Package string

	// Stage is the pipeline stage that failed (for example, "configure",
	// "build", "install", "rockspec").
	Stage string

	// Dep is true when the package is a transitive dependency rather than
	// a user-named target.
	Dep bool

	// Output is the captured combined stdout/stderr of the failing child
	// process. Empty when no child process was involved.
	Output string

	// Err is the underlying failure.
	Err error
}

func (e *InstallError) Error() string {
	msg := fmt.Sprintf("luadist: install of %q failed at %s: %v", e.Package, e.Stage, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *InstallError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *InstallError) Code() int {
	if e.Dep {
		return CodeInstallDep
	}
	return CodeInstallTarget
}

// NoSourceError reports that make was invoked in a directory containing no
// rockspec.
type NoSourceError struct {
	// Dir is the directory that was searched.
	Dir string
}

func (e *NoSourceError) Error() string {
	return fmt.Sprintf("luadist: no rockspec found in %q", e.Dir)
}

// Code implements Coded.
func (e *NoSourceError) Code() int { return CodeNoSourceFound }

// PackError reports that exporting an installed package failed, either
// because the package is not installed or because one of its recorded
// files is missing from the deploy root.
type PackError struct {
	// Package is the reference or identity that failed to export.
	Package string

	// Reason is a short human-readable explanation.
	Reason string
}

func (e *PackError) Error() string {
	return fmt.Sprintf("luadist: cannot pack %q: %s", e.Package, e.Reason)
}

// Code implements Coded.
func (e *PackError) Code() int { return CodeBinaryExport }

// Bundle sub-steps recorded in BundleError.Step. All three map to the same
// CLI exit code; the step is preserved in the message because the three
// failures require different fixes.
const (
	BundleStepGenerate = "cmakelists-generation"
	BundleStepMain     = "main-cmakelists-write"
	BundleStepConfig   = "config-template-write"
)

// BundleError reports that the static operation failed at one of its
// sub-steps.
type BundleError struct {
	// Step is one of the BundleStep constants.
	Step string

	// Package optionally names the package whose build file failed.
	Package string

	// Err is the underlying failure.
	Err error
}

func (e *BundleError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("luadist: static bundle failed at %s for %q: %v", e.Step, e.Package, e.Err)
	}
	return fmt.Sprintf("luadist: static bundle failed at %s: %v", e.Step, e.Err)
}

func (e *BundleError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *BundleError) Code() int { return CodeStaticBundle }
