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
	"sort"

	"dirpx.dev/luadist/distcore/model/version"
	"dirpx.dev/luadist/distcore/ordered"
)

// Info is a manifest entry for one (package, version): the dependency
// strings, the optional platform filter, and the optional local source
// directory for packages synthesized from a local repository.
type Info struct {
	// Version is the entry's parsed version, retaining the upstream
	// spelling for staging-directory names.
	Version version.Version

	// Dependencies are runtime dependency strings in the Ref grammar.
	Dependencies []string

	// SupportedPlatforms restricts the entry to the named platform tags.
	// Empty means every platform.
	SupportedPlatforms []string

	// LocalURL is the directory containing the package's source and
	// rockspec when the entry came from a local repository. The
	// downloader uses it directly instead of cloning.
	LocalURL string
}

// Manifest is the merged view of every configured repository: for each
// package name, the known versions and their Info.
//
// Version keys are canonical strings (version.Canonical), so "1.0" and
// "1.0.0" collapse into one entry; the first occurrence wins and its
// spelling is retained in Info.Version. Iteration order is insertion
// order, which the merge makes URL order — a property the resolver's
// determinism tests rely on.
//
// A Manifest is immutable once returned by the manifest store: callers
// MUST NOT mutate it.
type Manifest struct {
	// RepoPath lists the package-source repositories contributed by the
	// merged manifests, one entry per contributing source, in URL order.
	RepoPath []string

	packages *ordered.Map[string, *ordered.Map[string, Info]]
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{packages: ordered.New[string, *ordered.Map[string, Info]]()}
}

// Add records an entry for (name, info.Version) unless that package
// version is already present, implementing the first-occurrence-wins
// merge precedence. It reports whether the entry was added.
func (m *Manifest) Add(name string, info Info) bool {
	versions, ok := m.packages.Get(name)
	if !ok {
		versions = ordered.New[string, Info]()
		m.packages.Set(name, versions)
	}

	key := info.Version.Canonical()
	if versions.Has(key) {
		return false
	}
	versions.Set(key, info)
	return true
}

// Lookup returns the Info for an exact (name, version) pair.
func (m *Manifest) Lookup(name string, v version.Version) (Info, bool) {
	versions, ok := m.packages.Get(name)
	if !ok {
		return Info{}, false
	}
	return versions.Get(v.Canonical())
}

// Has reports whether any version of the named package is known.
func (m *Manifest) Has(name string) bool {
	return m.packages.Has(name)
}

// Versions returns every known version of the named package, sorted
// newest first. The resolver walks this list and takes the first version
// satisfying the accumulated constraints; the sort breaks component ties
// in favor of the greater revision.
func (m *Manifest) Versions(name string) []version.Version {
	versions, ok := m.packages.Get(name)
	if !ok {
		return nil
	}

	out := make([]version.Version, 0, versions.Len())
	for _, info := range versions.Values() {
		out = append(out, info.Version)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Greater(out[j])
	})
	return out
}

// Names returns every known package name in insertion (merge) order.
func (m *Manifest) Names() []string {
	return m.packages.Keys()
}

// Len returns the number of known package names.
func (m *Manifest) Len() int {
	return m.packages.Len()
}

// Dump renders the manifest as nested plain maps for debug output: name
// to canonical version string to Info. The result is a fresh structure
// the caller may mutate.
func (m *Manifest) Dump() map[string]map[string]Info {
	out := make(map[string]map[string]Info, m.packages.Len())
	m.packages.Range(func(name string, versions *ordered.Map[string, Info]) bool {
		entry := make(map[string]Info, versions.Len())
		versions.Range(func(key string, info Info) bool {
			entry[key] = info
			return true
		})
		out[name] = entry
		return true
	})
	return out
}
