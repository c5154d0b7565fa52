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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model"
)

// InstalledSet is the ordered collection of installed packages.
//
// Order is install order and is preserved across load/save round-trips:
// the on-disk file is a YAML sequence and the in-memory form keeps the
// same slice order. The set maintains the invariant of at most one
// package per name.
type InstalledSet struct {
	pkgs []*Package
}

// NewInstalledSet returns an empty set.
func NewInstalledSet() *InstalledSet {
	return &InstalledSet{}
}

// LoadInstalledSet reads the set from the YAML file at path. A missing
// file is an empty set, so a fresh deploy root needs no initialization
// step. A present but unreadable or invalid file is an error.
func LoadInstalledSet(path string) (*InstalledSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewInstalledSet(), nil
		}
		return nil, fmt.Errorf("cannot read installed set: %w", err)
	}

	var pkgs []*Package
	if err := yaml.Unmarshal(data, &pkgs); err != nil {
		return nil, &errors.UnmarshalError{Type: "InstalledSet", Data: data, Reason: err.Error()}
	}

	set := &InstalledSet{pkgs: pkgs}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Save writes the set to the YAML file at path, creating parent
// directories as needed. The set is validated first so an invalid record
// never reaches disk; in particular, provisional packages and absolute
// file paths are rejected here as a last line of defense.
func (s *InstalledSet) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(s.pkgs)
	if err != nil {
		return fmt.Errorf("cannot marshal installed set: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create state directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Add appends a package, replacing any package of the same name so the
// one-per-name invariant holds. The replaced package, if any, is
// returned.
func (s *InstalledSet) Add(p *Package) *Package {
	for i, existing := range s.pkgs {
		if existing.Name == p.Name {
			s.pkgs[i] = p
			return existing
		}
	}
	s.pkgs = append(s.pkgs, p)
	return nil
}

// Remove deletes the named package, preserving the order of the rest,
// and returns it. Removing an absent name returns nil.
func (s *InstalledSet) Remove(name string) *Package {
	for i, p := range s.pkgs {
		if p.Name == name {
			s.pkgs = append(s.pkgs[:i], s.pkgs[i+1:]...)
			return p
		}
	}
	return nil
}

// Find returns the installed package with the given name, or nil.
func (s *InstalledSet) Find(name string) *Package {
	for _, p := range s.pkgs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// FindRef returns the installed package matching the reference (name and
// constraint), or nil.
func (s *InstalledSet) FindRef(ref Ref) *Package {
	for _, p := range s.pkgs {
		if p.Matches(ref) {
			return p
		}
	}
	return nil
}

// Packages returns the packages in install order. The slice is a copy;
// the Package pointers are shared.
func (s *InstalledSet) Packages() []*Package {
	out := make([]*Package, len(s.pkgs))
	copy(out, s.pkgs)
	return out
}

// Len returns the number of installed packages.
func (s *InstalledSet) Len() int {
	return len(s.pkgs)
}

// Clone returns a deep copy. The resolver works on a clone so that a
// failed attempt cannot leak provisional or partially selected packages
// back into the caller's view.
func (s *InstalledSet) Clone() *InstalledSet {
	out := &InstalledSet{pkgs: make([]*Package, len(s.pkgs))}
	for i, p := range s.pkgs {
		out.pkgs[i] = p.Clone()
	}
	return out
}

// SharedFileOwners returns the names of installed packages other than
// owner that also list the given deploy-root-relative file. Remove uses
// this to refuse deleting a file out from under a sibling package.
func (s *InstalledSet) SharedFileOwners(owner, file string) []string {
	var out []string
	for _, p := range s.pkgs {
		if p.Name == owner {
			continue
		}
		for _, f := range p.Files {
			if f == file {
				out = append(out, p.Name)
				break
			}
		}
	}
	return out
}

// Validate checks the set's invariants: every package valid, at most one
// package per name, no provisional packages, and every bin-dependency
// record resolvable against the set. Per-package failures are aggregated
// so a hand-corrupted database reports everything wrong with it at once.
func (s *InstalledSet) Validate() error {
	if err := model.ValidateAll(s.pkgs); err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.pkgs))
	for _, p := range s.pkgs {
		if p.Provisional {
			return &errors.ValidationError{Type: "InstalledSet", Reason: "provisional package must not be persisted", Value: p.ID()}
		}
		if seen[p.Name] {
			return &errors.ValidationError{Type: "InstalledSet", Reason: "duplicate package name", Value: p.Name}
		}
		seen[p.Name] = true
	}

	for _, p := range s.pkgs {
		for _, dep := range p.BinDependencies {
			ref, err := ParseRef(dep)
			if err != nil {
				return &errors.ValidationError{Type: "InstalledSet", Reason: "malformed bin dependency", Value: dep}
			}
			if s.Find(ref.Name) == nil {
				return &errors.ValidationError{
					Type:   "InstalledSet",
					Reason: "bin dependency not installed",
					Value:  p.ID() + " -> " + dep,
				}
			}
		}
	}
	return nil
}

// IsZero reports whether the set is empty.
func (s *InstalledSet) IsZero() bool {
	return s == nil || len(s.pkgs) == 0
}

// TypeName returns "InstalledSet", the name of the type for diagnostics.
func (s *InstalledSet) TypeName() string {
	return "InstalledSet"
}
