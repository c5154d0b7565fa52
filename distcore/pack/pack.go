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

// Package pack re-exports installed packages as redistributable binary
// rocks.
//
// A packed rock is the installed payload copied out of the deploy root
// plus an exported rockspec whose version carries a dependency hash: a
// stable fingerprint of the exact versions of the package's runtime
// dependency closure on the active platform. Two hosts that pack the
// same package against the same dependency versions produce the same
// directory name, so binary rocks are content-addressed by their
// dependency environment.
package pack

import (
	"fmt"
	"sort"

	"github.com/mitchellh/hashstructure/v2"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/model/version"
)

// hashInput is the canonical dep-hash input. Field order matters only to
// humans; hashstructure folds the struct shape into the fingerprint.
type hashInput struct {
	Platform     []string
	Dependencies []string
}

// DepHash computes the dependency hash: a 16-digit hexadecimal
// fingerprint of the active platform tags and the sorted canonical
// "name version" strings of the runtime dependency closure.
//
// The hash is a pure function of its inputs — identical platform and
// dependency versions yield an identical string on every host and every
// run.
func DepHash(platform []string, deps []*rock.Package) (string, error) {
	canonical := make([]string, 0, len(deps))
	for _, dep := range deps {
		canonical = append(canonical, dep.Name+" "+dep.Version.Canonical())
	}
	sort.Strings(canonical)

	sum, err := hashstructure.Hash(hashInput{
		Platform:     append([]string(nil), platform...),
		Dependencies: canonical,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("cannot hash dependencies: %w", err)
	}
	return fmt.Sprintf("%016x", sum), nil
}

// RuntimeDeps resolves the package's runtime dependency closure against
// the installed set on the given platform.
//
// Direct dependencies come from the package's recorded bin-dependencies
// when present (they name exact versions) and otherwise from its
// rockspec's dependency list; the closure then follows each installed
// dependency the same way. Dependencies whose rockspec excludes the
// platform are skipped. A dependency that is not installed is an error —
// packing a rock whose environment is incomplete would fingerprint a lie.
func RuntimeDeps(pkg *rock.Package, installed *rock.InstalledSet, platform []string) ([]*rock.Package, error) {
	seen := map[string]bool{pkg.Name: true}
	var out []*rock.Package

	var walk func(p *rock.Package) error
	walk = func(p *rock.Package) error {
		for _, depStr := range dependencyStrings(p) {
			ref, err := rock.ParseRef(depStr)
			if err != nil {
				return &errors.PackError{Package: p.ID(), Reason: "malformed dependency " + depStr}
			}
			if seen[ref.Name] {
				continue
			}
			dep := installed.Find(ref.Name)
			if dep == nil {
				return &errors.PackError{Package: p.ID(), Reason: "runtime dependency " + ref.Name + " is not installed"}
			}
			if dep.Spec != nil && !dep.Spec.SupportedOn(platform) {
				continue
			}
			seen[ref.Name] = true
			out = append(out, dep)
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(pkg); err != nil {
		return nil, err
	}
	return out, nil
}

func dependencyStrings(p *rock.Package) []string {
	if len(p.BinDependencies) > 0 {
		return p.BinDependencies
	}
	if p.Spec != nil {
		return p.Spec.Dependencies
	}
	return nil
}

// ExportedVersion returns the packed rock's version: the installed
// version with the dependency hash appended as its hash tag.
func ExportedVersion(v version.Version, depHash string) version.Version {
	out := v.StripHash()
	out.Hash = depHash
	out.Raw = out.Raw + "_" + depHash
	return out
}

// ExportedDependencies rewrites the package's bin-dependencies as
// pessimistic references: "name ~> major.minor". The packed rock then
// installs against any compatible revision of the dependencies it was
// built with, rather than demanding the exact versions.
func ExportedDependencies(binDeps []string) ([]string, error) {
	out := make([]string, 0, len(binDeps))
	for _, dep := range binDeps {
		ref, err := rock.ParseRef(dep)
		if err != nil {
			return nil, &errors.PackError{Package: dep, Reason: "malformed bin dependency"}
		}
		if len(ref.Constraint.Clauses) != 1 {
			return nil, &errors.PackError{Package: dep, Reason: "bin dependency must name an exact version"}
		}
		v := ref.Constraint.Clauses[0].Version
		out = append(out, fmt.Sprintf("%s ~> %d.%d", ref.Name, v.Component(0), v.Component(1)))
	}
	return out, nil
}
