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

// Package resolver selects one version per package to satisfy a set of
// target references against the merged manifest, an installed set, and
// the active platform.
//
// The algorithm is a greedy depth-first closure, not a general constraint
// solver. Targets are processed in order against a working view seeded
// with the installed packages; each target's dependency tree is walked
// depth first, choosing for every package the greatest manifest version
// that satisfies the accumulated constraints and the platform filter.
// Chosen packages join the working view immediately, so later targets see
// them as installed. A package already present in the working view at an
// incompatible version is a conflict, not a trigger for re-selection —
// the single exception is the interpreter fallback axis implemented by
// InterpreterFallback.
//
// The interpreter itself is special: a DEPENDENCY on it is satisfied only
// by the working view, never by implicit selection from the manifest.
// This is what makes the fallback strategy meaningful — the choice of
// interpreter version shapes every native module built against it, so it
// is made once, at the top, not as a side effect of whichever rock's
// dependency list happens to resolve first.
//
// Output order is dependency-first: if P transitively depends on Q, Q
// precedes P. The installer, downloader and static bundler all consume
// this order unchanged.
package resolver

import (
	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/rock"
)

// Resolver resolves target references against a fixed manifest and
// platform tag set. A Resolver is immutable and safe to reuse across
// operations within one invocation.
type Resolver struct {
	manifest *rock.Manifest
	platform []string
}

// New returns a Resolver for the given merged manifest and active
// platform tags.
func New(manifest *rock.Manifest, platform []string) *Resolver {
	return &Resolver{manifest: manifest, platform: platform}
}

// Resolve produces the ordered list of packages that must be installed
// to satisfy every target, excluding packages already installed and
// excluding the provisional seed.
//
// The installed set is cloned before resolution; the caller's view is
// never mutated. provisional, when non-nil, is added to the working view
// so that constraints on its name resolve against it — it never appears
// in the output.
func (r *Resolver) Resolve(targets []rock.Ref, installed *rock.InstalledSet, provisional *rock.Package) ([]*rock.Package, error) {
	working := installed.Clone()
	if provisional != nil {
		seed := provisional.Clone()
		seed.Provisional = true
		working.Add(seed)
	}

	var out []*rock.Package
	for _, target := range targets {
		added, err := r.satisfy(target, working, map[string]bool{}, true)
		if err != nil {
			return nil, err
		}
		out = append(out, added...)
	}
	return out, nil
}

// satisfy resolves a single reference against the working view,
// returning the newly selected packages in dependency-first order. The
// working view is extended with every returned package.
//
// asTarget marks a user-named target as opposed to a transitive
// dependency. The distinction matters for exactly one package: the
// interpreter. A dependency on it resolves ONLY against the working view
// — the interpreter is provided by the installed set, by a provisional
// seed, or by the fallback strategy, never picked implicitly — while an
// explicit "install lua" target selects it like any other package.
//
// stack holds the names currently being resolved on this depth-first
// path; a dependency cycle resolves to "already in progress" rather than
// recursing forever.
func (r *Resolver) satisfy(ref rock.Ref, working *rock.InstalledSet, stack map[string]bool, asTarget bool) ([]*rock.Package, error) {
	if existing := working.Find(ref.Name); existing != nil {
		if ref.Matches(existing.Version) {
			return nil, nil
		}
		return nil, &errors.ResolveError{
			Target: ref.String(),
			Reason: "conflicts with present " + existing.ID(),
		}
	}
	if stack[ref.Name] {
		return nil, nil
	}

	if ref.Name == InterpreterName && !asTarget {
		return nil, &errors.ResolveError{Target: ref.String(), Reason: "interpreter is not installed"}
	}

	if !r.manifest.Has(ref.Name) {
		return nil, &errors.ResolveError{Target: ref.String(), Reason: "no such package in manifest"}
	}

	stack[ref.Name] = true
	defer delete(stack, ref.Name)

	var lastErr error
	for _, candidate := range r.manifest.Versions(ref.Name) {
		if !ref.Matches(candidate) {
			continue
		}
		info, ok := r.manifest.Lookup(ref.Name, candidate)
		if !ok {
			continue
		}
		if !rock.PlatformSupported(info.SupportedPlatforms, r.platform) {
			lastErr = &errors.ResolveError{
				Target: ref.String(),
				Reason: candidate.String() + " does not support this platform",
			}
			continue
		}

		added, err := r.tryCandidate(ref.Name, info, working, stack)
		if err != nil {
			lastErr = err
			continue
		}
		return added, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &errors.ResolveError{Target: ref.String(), Reason: "no version satisfies the constraints"}
}

// tryCandidate attempts one concrete version: its dependencies are
// resolved against a scratch copy of the working view, and only on full
// success is the working view advanced. A failed candidate therefore
// leaves no trace, and the caller moves on to the next version.
func (r *Resolver) tryCandidate(name string, info rock.Info, working *rock.InstalledSet, stack map[string]bool) ([]*rock.Package, error) {
	deps, err := rock.ParseRefs(info.Dependencies)
	if err != nil {
		return nil, &errors.ResolveError{Target: name + " " + info.Version.String(), Reason: "malformed dependency list"}
	}

	scratch := working.Clone()
	pkg := rock.New(name, info.Version)
	scratch.Add(pkg)

	var added []*rock.Package
	for _, dep := range deps {
		more, err := r.satisfy(dep, scratch, stack, false)
		if err != nil {
			return nil, err
		}
		added = append(added, more...)
	}
	added = append(added, pkg)

	// Commit: replay the scratch selections onto the real view.
	for _, p := range added {
		working.Add(p)
	}
	return added, nil
}
