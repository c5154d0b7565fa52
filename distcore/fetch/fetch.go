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

// Package fetch acquires package sources into per-package staging
// directories.
//
// A package whose manifest entry carries a local source directory is used
// in place, without copying. Everything else is cloned from the
// configured package repositories, tried in order; the package is
// unavailable only when every repository fails. Fetching is idempotent: a
// staging directory that already exists and holds the expected rockspec
// is reused.
package fetch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/rock"
)

// Downloader fetches package sources. Auth is intentionally absent: the
// package repositories this tool deals with are public, and a private
// deployment configures credentials at the git transport level.
type Downloader struct {
	manifest *rock.Manifest
}

// NewDownloader returns a Downloader consulting the given manifest for
// local source directories.
func NewDownloader(manifest *rock.Manifest) *Downloader {
	return &Downloader{manifest: manifest}
}

// Fetch acquires the source directory for every package, in order, and
// returns the directory per package ID. destination receives one staging
// subdirectory per fetched package, named "<name> <version>"; repos are
// the candidate package repositories from the merged manifest.
func (d *Downloader) Fetch(ctx context.Context, packages []*rock.Package, destination string, repos []string) (map[string]string, error) {
	out := make(map[string]string, len(packages))
	for _, pkg := range packages {
		dir, err := d.fetchOne(ctx, pkg, destination, repos)
		if err != nil {
			return nil, err
		}
		out[pkg.ID()] = dir
	}
	return out, nil
}

// FetchOne acquires a single package's source directory.
func (d *Downloader) FetchOne(ctx context.Context, pkg *rock.Package, destination string, repos []string) (string, error) {
	return d.fetchOne(ctx, pkg, destination, repos)
}

func (d *Downloader) fetchOne(ctx context.Context, pkg *rock.Package, destination string, repos []string) (string, error) {
	if info, ok := d.manifest.Lookup(pkg.Name, pkg.Version); ok && info.LocalURL != "" {
		return info.LocalURL, nil
	}

	dir := filepath.Join(destination, pkg.ID())
	if d.valid(dir, pkg) {
		return dir, nil
	}

	var lastErr error
	for _, repo := range repos {
		if err := os.RemoveAll(dir); err != nil {
			return "", &errors.FetchError{Package: pkg.ID(), Repos: repos, Err: err}
		}
		if err := d.clone(ctx, repo, dir, pkg); err != nil {
			lastErr = err
			continue
		}
		return dir, nil
	}

	return "", &errors.FetchError{Package: pkg.ID(), Repos: repos, Err: lastErr}
}

// clone checks the package out of one repository. The repository layout
// follows the manifest convention: the package lives in a repository
// named after it under the repo root, tagged "<version>".
func (d *Downloader) clone(ctx context.Context, repo, dir string, pkg *rock.Package) error {
	url := repo
	if url != "" && url[len(url)-1] != '/' {
		url += "/"
	}
	url += pkg.Name + ".git"

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return err
	}

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           url,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.NewTagReferenceName(pkg.Version.String()),
	})
	if err == nil {
		return nil
	}

	// Some repositories tag with a leading "v"; clone that tag instead, a
	// different reference rather than a repeat of the failed clone, before
	// giving this repo up.
	_ = os.RemoveAll(dir)
	_, retryErr := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           url,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.NewTagReferenceName("v" + pkg.Version.String()),
	})
	if retryErr != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

// valid is the shallow reuse check: the staging directory qualifies when
// it contains the rockspec the installer is about to load.
func (d *Downloader) valid(dir string, pkg *rock.Package) bool {
	name := pkg.Name + "-" + pkg.Version.String() + ".rockspec"
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
