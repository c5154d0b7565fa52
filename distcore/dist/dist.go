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

// Package dist composes the pipeline stages into the top-level
// operations: install, make, remove, list, fetch, pack, static and
// rockspec retrieval.
//
// All state an operation needs — configuration, logger, manifest store —
// lives on the Context value threaded through every call; nothing reads
// process-wide mutable state. Operations are serialized by a context
// mutex because the manifest cache and the deploy root are shared between
// them; the pipeline itself is single-threaded and synchronous, and the
// installed-package database is persisted after every successful
// per-package install so a killed process loses at most the package in
// flight.
package dist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"dirpx.dev/luadist/distcore/config"
	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/fetch"
	"dirpx.dev/luadist/distcore/installer"
	"dirpx.dev/luadist/distcore/manifest"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/pack"
	"dirpx.dev/luadist/distcore/report"
	"dirpx.dev/luadist/distcore/resolver"
	"dirpx.dev/luadist/distcore/rockspec"
	"dirpx.dev/luadist/distcore/static"
)

// Context carries an invocation's configuration, logger and manifest
// store. Create one per deploy root with New and reuse it for any number
// of operations; they run one at a time.
type Context struct {
	cfg   *config.Config
	log   *log.Logger
	store *manifest.Store

	mu sync.Mutex
}

// New returns an operation context over the given configuration.
func New(cfg *config.Config, logger *log.Logger) *Context {
	return &Context{
		cfg:   cfg,
		log:   logger,
		store: manifest.NewStore(cfg),
	}
}

// Config exposes the context's configuration to the CLI layer.
func (c *Context) Config() *config.Config {
	return c.cfg
}

// Install resolves and installs the referenced packages plus everything
// they transitively require, honoring the already-installed set.
func (c *Context) Install(ctx context.Context, refStrings []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep := report.New(c.cfg.Report, "install")
	defer rep.Flush(c.cfg.RootDir)

	err := c.install(ctx, refStrings, rep)
	rep.Fail(err)
	return err
}

func (c *Context) install(ctx context.Context, refStrings []string, rep *report.Reporter) error {
	targets, err := rock.ParseRefs(refStrings)
	if err != nil {
		return err
	}

	installed, err := rock.LoadInstalledSet(c.cfg.ManifestPath())
	if err != nil {
		return err
	}

	m, err := c.store.Manifest(ctx)
	if err != nil {
		return err
	}

	r := resolver.New(m, c.cfg.Platform)
	plan, err := resolver.NewInterpreterFallback(r, m).Resolve(targets, installed)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		c.log.Info("nothing to install")
		return nil
	}
	for _, pkg := range plan {
		rep.Step("resolved %s", pkg.ID())
	}

	targetNames := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetNames[t.Name] = true
	}

	if err := c.installPlan(ctx, plan, installed, m, targetNames, rep); err != nil {
		return err
	}

	return c.recordBinDependencies(plan, installed)
}

// installPlan fetches and installs each planned package in resolver
// order, persisting the installed set after every success.
func (c *Context) installPlan(ctx context.Context, plan []*rock.Package, installed *rock.InstalledSet, m *rock.Manifest, targetNames map[string]bool, rep *report.Reporter) error {
	down := fetch.NewDownloader(m)
	inst := installer.New(c.cfg, c.log)

	for _, pkg := range plan {
		c.log.Info("installing", "package", pkg.ID())

		srcDir, err := down.FetchOne(ctx, pkg, c.cfg.TempDir, m.RepoPath)
		if err != nil {
			return err
		}
		rep.Step("fetched %s", pkg.ID())

		info, _ := m.Lookup(pkg.Name, pkg.Version)
		opts := installer.Options{
			Dep:          !targetNames[pkg.Name],
			RemoveSource: info.LocalURL == "",
			Installed:    installed,
			Variables:    c.cfg.Variables,
		}
		if err := inst.Install(ctx, pkg, srcDir, opts); err != nil {
			return err
		}

		installed.Add(pkg)
		if err := installed.Save(c.cfg.ManifestPath()); err != nil {
			return err
		}
		rep.Step("installed %s", pkg.ID())
	}
	return nil
}

// recordBinDependencies is the post-install pass: for every package just
// installed, record the exact versions of its direct runtime dependencies
// as found in the final installed set, then persist once more.
func (c *Context) recordBinDependencies(plan []*rock.Package, installed *rock.InstalledSet) error {
	changed := false
	for _, pkg := range plan {
		if pkg.Spec == nil {
			continue
		}
		deps, err := pkg.Spec.DependencyRefs()
		if err != nil {
			continue
		}
		var bins []string
		for _, dep := range deps {
			if found := installed.Find(dep.Name); found != nil {
				bins = append(bins, found.Name+" "+found.Version.String())
			}
		}
		if len(bins) > 0 {
			pkg.BinDependencies = bins
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return installed.Save(c.cfg.ManifestPath())
}

// Make installs the package described by the working directory's
// alphabetically first rockspec, using the directory itself as the source
// tree. Dependencies resolve and install from the manifest as usual. On
// success the working directory is removed unless debug is set.
func (c *Context) Make(ctx context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep := report.New(c.cfg.Report, "make")
	defer rep.Flush(c.cfg.RootDir)

	err := c.make(ctx, dir, rep)
	rep.Fail(err)
	return err
}

func (c *Context) make(ctx context.Context, dir string, rep *report.Reporter) error {
	names, err := rockspec.FindInDir(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return &errors.NoSourceError{Dir: dir}
	}
	if len(names) > 1 {
		c.log.Warn("multiple rockspecs in working directory; using the first",
			"using", names[0], "ignored", names[1:])
		rep.Warn("multiple rockspecs; using %s", names[0])
	}

	spec, err := rockspec.Load(filepath.Join(dir, names[0]))
	if err != nil {
		return err
	}

	installed, err := rock.LoadInstalledSet(c.cfg.ManifestPath())
	if err != nil {
		return err
	}

	m, err := c.store.Manifest(ctx)
	if err != nil {
		return err
	}

	// The dependencies of the local rock are the resolution targets; the
	// rock itself builds from the working directory, outside the plan.
	deps, err := spec.DependencyRefs()
	if err != nil {
		return err
	}

	r := resolver.New(m, c.cfg.Platform)
	plan, err := resolver.NewInterpreterFallback(r, m).Resolve(deps, installed)
	if err != nil {
		return err
	}

	if err := c.installPlan(ctx, plan, installed, m, map[string]bool{}, rep); err != nil {
		return err
	}

	pkg := rock.New(spec.Package, spec.Version)
	inst := installer.New(c.cfg, c.log)
	opts := installer.Options{
		RemoveSource: false,
		Installed:    installed,
		Variables:    c.cfg.Variables,
	}
	if err := inst.Install(ctx, pkg, dir, opts); err != nil {
		return err
	}

	installed.Add(pkg)
	if err := installed.Save(c.cfg.ManifestPath()); err != nil {
		return err
	}
	rep.Step("installed %s from working directory", pkg.ID())

	if err := c.recordBinDependencies(append(plan, pkg), installed); err != nil {
		return err
	}

	if !c.cfg.Debug {
		if err := os.RemoveAll(dir); err != nil {
			c.log.Warn("cannot clean working directory", "dir", dir, "err", err)
		}
	}
	return nil
}

// Remove uninstalls the named packages: their recorded files are deleted
// from the deploy root (except files another installed package also
// lists, which are kept and reported), emptied directories are pruned,
// and the installed set is re-persisted after each package.
func (c *Context) Remove(ctx context.Context, names []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep := report.New(c.cfg.Report, "remove")
	defer rep.Flush(c.cfg.RootDir)

	err := c.remove(names, rep)
	rep.Fail(err)
	return err
}

func (c *Context) remove(names []string, rep *report.Reporter) error {
	installed, err := rock.LoadInstalledSet(c.cfg.ManifestPath())
	if err != nil {
		return err
	}

	for _, name := range names {
		ref, err := rock.ParseRef(name)
		if err != nil {
			return err
		}

		pkg := installed.Find(ref.Name)
		if pkg == nil {
			c.log.Warn("not installed", "package", ref.Name)
			rep.Warn("%s is not installed", ref.Name)
			continue
		}

		for _, rel := range pkg.Files {
			if owners := installed.SharedFileOwners(pkg.Name, rel); len(owners) > 0 {
				c.log.Warn("keeping shared file", "file", rel, "owners", owners)
				rep.Warn("kept %s (shared with %v)", rel, owners)
				continue
			}
			abs := filepath.Join(c.cfg.RootDir, filepath.FromSlash(rel))
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("cannot remove %s: %w", rel, err)
			}
			pruneEmptyDirs(filepath.Dir(abs), c.cfg.RootDir)
		}

		installed.Remove(pkg.Name)
		if err := installed.Save(c.cfg.ManifestPath()); err != nil {
			return err
		}
		c.log.Info("removed", "package", pkg.ID())
		rep.Step("removed %s", pkg.ID())
	}
	return nil
}

// List returns the installed packages in install order.
func (c *Context) List() ([]*rock.Package, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	installed, err := rock.LoadInstalledSet(c.cfg.ManifestPath())
	if err != nil {
		return nil, err
	}
	return installed.Packages(), nil
}

// Fetch downloads the sources of the referenced packages into
// destination without resolving dependencies or installing anything.
func (c *Context) Fetch(ctx context.Context, refStrings []string, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	refs, err := rock.ParseRefs(refStrings)
	if err != nil {
		return err
	}

	m, err := c.store.Manifest(ctx)
	if err != nil {
		return err
	}

	down := fetch.NewDownloader(m)
	for _, ref := range refs {
		pkg, err := bestMatch(m, ref)
		if err != nil {
			return err
		}
		dir, err := down.FetchOne(ctx, pkg, destination, m.RepoPath)
		if err != nil {
			return err
		}
		c.log.Info("fetched", "package", pkg.ID(), "dir", dir)
	}
	return nil
}

// Pack exports the referenced installed packages into destination as
// redistributable binary rocks.
func (c *Context) Pack(refStrings []string, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep := report.New(c.cfg.Report, "pack")
	defer rep.Flush(c.cfg.RootDir)

	refs, err := rock.ParseRefs(refStrings)
	if err != nil {
		return err
	}

	installed, err := rock.LoadInstalledSet(c.cfg.ManifestPath())
	if err != nil {
		return err
	}

	dirs, err := pack.NewPacker(c.cfg.RootDir, c.cfg.Platform).Pack(refs, installed, destination)
	rep.Fail(err)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		c.log.Info("packed", "dir", dir)
		rep.Step("packed %s", dir)
	}
	return nil
}

// Static assembles a statically linked bundle of the referenced packages
// and their dependencies in destination. The closure is resolved from
// scratch — the deploy root's installed set does not shrink the bundle.
func (c *Context) Static(ctx context.Context, refStrings []string, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep := report.New(c.cfg.Report, "static")
	defer rep.Flush(c.cfg.RootDir)

	err := c.static(ctx, refStrings, destination)
	rep.Fail(err)
	return err
}

func (c *Context) static(ctx context.Context, refStrings []string, destination string) error {
	targets, err := rock.ParseRefs(refStrings)
	if err != nil {
		return err
	}

	m, err := c.store.Manifest(ctx)
	if err != nil {
		return err
	}

	r := resolver.New(m, c.cfg.Platform)
	plan, err := resolver.NewInterpreterFallback(r, m).Resolve(targets, rock.NewInstalledSet())
	if err != nil {
		return err
	}

	down := fetch.NewDownloader(m)
	dirs, err := down.Fetch(ctx, plan, c.cfg.TempDir, m.RepoPath)
	if err != nil {
		return err
	}

	return static.NewBundler().Bundle(plan, dirs, destination)
}

// GetRockspec fetches the best manifest match for the reference and
// returns its parsed rockspec.
func (c *Context) GetRockspec(ctx context.Context, refString string) (*rock.Rockspec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, err := rock.ParseRef(refString)
	if err != nil {
		return nil, err
	}

	m, err := c.store.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	pkg, err := bestMatch(m, ref)
	if err != nil {
		return nil, err
	}

	dir, err := fetch.NewDownloader(m).FetchOne(ctx, pkg, c.cfg.TempDir, m.RepoPath)
	if err != nil {
		return nil, err
	}
	return rockspec.Load(filepath.Join(dir, pkg.Name+"-"+pkg.Version.String()+".rockspec"))
}

// bestMatch selects the newest manifest version satisfying the
// reference.
func bestMatch(m *rock.Manifest, ref rock.Ref) (*rock.Package, error) {
	for _, v := range m.Versions(ref.Name) {
		if ref.Matches(v) {
			return rock.New(ref.Name, v), nil
		}
	}
	return nil, &errors.ResolveError{Target: ref.String(), Reason: "no version satisfies the constraints"}
}

// pruneEmptyDirs removes empty directories from dir upward, stopping at
// the deploy root.
func pruneEmptyDirs(dir, root string) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return
	}
	for {
		abs, err := filepath.Abs(dir)
		if err != nil || abs == rootAbs || !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(abs)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(abs); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
