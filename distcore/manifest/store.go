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

// Package manifest retrieves and merges repository manifests into the
// single coherent view the resolver works from.
//
// Each configured URL contributes either a remote manifest (a git
// repository cloned shallowly, holding a manifest file at its top level)
// or, when local repositories are enabled, a directory scanned for
// per-package rockspecs. Merging is first-occurrence-wins per (package,
// canonical version): a later URL never overwrites an entry an earlier
// URL contributed. Any per-URL failure aborts the whole retrieval.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"gopkg.in/yaml.v3"

	"dirpx.dev/luadist/distcore/config"
	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/luatable"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/model/version"
	"dirpx.dev/luadist/distcore/rockspec"
)

// Store produces the merged manifest, memoized per process invocation:
// the first successful load is cached and every later call returns the
// same immutable value.
type Store struct {
	cfg *config.Config

	mu     sync.Mutex
	cached *rock.Manifest
}

// NewStore returns a Store for the given configuration.
func NewStore(cfg *config.Config) *Store {
	return &Store{cfg: cfg}
}

// Manifest returns the merged manifest, downloading it on first use.
func (s *Store) Manifest(ctx context.Context) (*rock.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	m, err := s.download(ctx, s.cfg.ManifestRepos)
	if err != nil {
		return nil, err
	}

	if s.cfg.Debug {
		s.writeDebugCopy(m)
	}

	s.cached = m
	return m, nil
}

// Download retrieves and merges the manifests at the given URLs without
// touching the cache. Most callers want Manifest instead.
func (s *Store) Download(ctx context.Context, urls []string) (*rock.Manifest, error) {
	return s.download(ctx, urls)
}

func (s *Store) download(ctx context.Context, urls []string) (*rock.Manifest, error) {
	merged := rock.NewManifest()

	for i, url := range urls {
		var err error
		if isRemote(url) {
			err = s.loadRemote(ctx, url, i, merged)
		} else {
			err = s.loadLocal(url, merged)
		}
		if err != nil {
			return nil, &errors.ManifestError{URL: url, Err: err}
		}
	}

	return merged, nil
}

// isRemote reports whether the URL uses a git transport scheme rather
// than naming a local directory.
func isRemote(url string) bool {
	for _, scheme := range []string{"git://", "http://", "https://", "ssh://", "git+"} {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return strings.HasPrefix(url, "git@")
}

// loadRemote clones the repository shallowly at its default branch tip
// into a per-URL staging directory and loads the manifest file inside.
func (s *Store) loadRemote(ctx context.Context, url string, index int, merged *rock.Manifest) error {
	dir := filepath.Join(s.cfg.TempDir, fmt.Sprintf("manifest_%d", index))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cannot clear staging directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create staging directory: %w", err)
	}

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		return fmt.Errorf("clone failed: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, s.cfg.ManifestFilename))
	if err != nil {
		return fmt.Errorf("cannot read manifest file: %w", err)
	}

	if err := decode(data, url, merged); err != nil {
		return err
	}

	if !s.cfg.Debug {
		// The clone only carried the manifest file; no reason to keep it.
		_ = os.RemoveAll(dir)
	}
	return nil
}

// loadLocal synthesizes manifest entries from a local repository: each
// first-level subdirectory contributes the rockspecs found directly
// inside it, with LocalURL pointing at the containing directory.
func (s *Store) loadLocal(dir string, merged *rock.Manifest) error {
	if !s.cfg.IncludeLocalRepos {
		return fmt.Errorf("local repos disabled")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("cannot scan local repo: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		names, err := rockspec.FindInDir(sub)
		if err != nil {
			return fmt.Errorf("cannot scan %s: %w", entry.Name(), err)
		}
		for _, name := range names {
			spec, err := rockspec.Load(filepath.Join(sub, name))
			if err != nil {
				return fmt.Errorf("cannot load %s: %w", name, err)
			}
			merged.Add(spec.Package, rock.Info{
				Version:            spec.Version,
				Dependencies:       spec.Dependencies,
				SupportedPlatforms: spec.SupportedPlatforms,
				LocalURL:           sub,
			})
		}
	}

	merged.RepoPath = append(merged.RepoPath, dir)
	return nil
}

// decode parses a manifest document and merges its entries. The document
// shape is:
//
//	return {
//	  repo_path = { "<package repo url>", ... },
//	  packages = {
//	    <name> = {
//	      ["<version>"] = { dependencies = {...}, supported_platforms = {...} },
//	      ...
//	    },
//	  },
//	}
func decode(data []byte, url string, merged *rock.Manifest) error {
	root, err := luatable.Parse(data)
	if err != nil {
		return err
	}

	if repos := root.Strings("repo_path"); len(repos) > 0 {
		merged.RepoPath = append(merged.RepoPath, repos...)
	} else {
		merged.RepoPath = append(merged.RepoPath, url)
	}

	packages := root.Sub("packages")
	if packages == nil {
		return &errors.UnmarshalError{Type: "Manifest", Reason: "missing packages table"}
	}

	for _, name := range packages.Keys() {
		versions := packages.Sub(name)
		if versions == nil {
			return &errors.UnmarshalError{Type: "Manifest", Reason: "malformed entry for " + name}
		}
		for _, vstr := range versions.Keys() {
			v, err := version.Parse(vstr)
			if err != nil {
				return &errors.UnmarshalError{Type: "Manifest", Reason: "malformed version " + vstr + " for " + name}
			}
			entry := versions.Sub(vstr)
			if entry == nil {
				return &errors.UnmarshalError{Type: "Manifest", Reason: "malformed version entry " + name + " " + vstr}
			}
			merged.Add(name, rock.Info{
				Version:            v,
				Dependencies:       entry.Strings("dependencies"),
				SupportedPlatforms: entry.Strings("supported_platforms"),
			})
		}
	}
	return nil
}

// writeDebugCopy dumps the merged manifest as YAML next to the staging
// directories. Failures are ignored: the debug copy is a convenience, not
// part of the operation.
func (s *Store) writeDebugCopy(m *rock.Manifest) {
	data, err := yaml.Marshal(struct {
		RepoPath []string                        `yaml:"repo_path"`
		Packages map[string]map[string]rock.Info `yaml:"packages"`
	}{m.RepoPath, m.Dump()})
	if err != nil {
		return
	}
	_ = os.MkdirAll(s.cfg.TempDir, 0o755)
	_ = os.WriteFile(filepath.Join(s.cfg.TempDir, "manifest.debug.yaml"), data, 0o644)
}
