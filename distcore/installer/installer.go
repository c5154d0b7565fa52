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

// Package installer turns a fetched package into installed files under
// the deploy root.
//
// Two paths exist. A binary rock (rockspec with a files list) is copied
// file by file — no build runs. A source rock is normalized to a CMake
// build: variables are accumulated, a cache script is written, and the
// configure and build-install steps run as child processes in a dedicated
// build directory. The files the build installs are read back from the
// install manifest it emits and recorded on the package relative to the
// deploy root.
//
// Every failure carries the captured child-process output; nothing is
// retried.
package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"dirpx.dev/luadist/distcore/cmake"
	"dirpx.dev/luadist/distcore/config"
	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/resolver"
	"dirpx.dev/luadist/distcore/rockspec"
)

// Options adjusts a single install.
type Options struct {
	// Dep marks the package as a transitive dependency; failures carry
	// the dependency exit code instead of the target one.
	Dep bool

	// RemoveSource deletes the source directory after a successful
	// install. The orchestrator sets it for fetched staging directories
	// and clears it for local-repository sources, which belong to the
	// user. Debug mode overrides it to false.
	RemoveSource bool

	// Installed is the current installed set, consulted for the
	// interpreter version that parameterizes module install paths.
	Installed *rock.InstalledSet

	// Variables are caller overrides, ranking between the config
	// defaults and the rockspec's own build variables.
	Variables map[string]string
}

// Installer drives per-package builds. It is stateless apart from
// configuration and can be reused across packages within an operation.
type Installer struct {
	cfg *config.Config
	log *log.Logger
}

// New returns an Installer for the given configuration.
func New(cfg *config.Config, logger *log.Logger) *Installer {
	return &Installer{cfg: cfg, log: logger}
}

// Install runs the pipeline for one package whose source lives in
// srcDir: rockspec load, then either the binary short-circuit or the
// configure/build/install sequence. On success the package's Spec, Files
// and BuiltOnPlatform are populated.
func (i *Installer) Install(ctx context.Context, pkg *rock.Package, srcDir string, opts Options) error {
	specPath := filepath.Join(srcDir, pkg.Name+"-"+pkg.Version.String()+".rockspec")
	spec, err := rockspec.Load(specPath)
	if err != nil {
		return &errors.InstallError{Package: pkg.ID(), Stage: "rockspec", Dep: opts.Dep, Err: err}
	}
	pkg.Spec = spec

	if spec.IsBinary() {
		if err := i.installBinary(pkg, srcDir, spec, opts); err != nil {
			return err
		}
	} else {
		if err := i.installSource(ctx, pkg, srcDir, spec, opts); err != nil {
			return err
		}
	}

	if opts.RemoveSource && !i.cfg.Debug {
		if err := os.RemoveAll(srcDir); err != nil {
			i.log.Warn("cannot remove source staging", "dir", srcDir, "err", err)
		}
	}
	return nil
}

// installBinary copies a prebuilt rock's files under the deploy root.
// The dependency-hash tag is stripped from the recorded version — the
// hash identifies the distribution artifact, not the installed package —
// and the build platform is taken from the rockspec metadata.
func (i *Installer) installBinary(pkg *rock.Package, srcDir string, spec *rock.Rockspec, opts Options) error {
	i.log.Debug("binary install", "package", pkg.ID())

	for _, rel := range spec.Files {
		src := filepath.Join(srcDir, filepath.FromSlash(rel))
		dst := filepath.Join(i.cfg.RootDir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			return &errors.InstallError{Package: pkg.ID(), Stage: "binary-copy", Dep: opts.Dep, Err: err}
		}
	}

	pkg.Files = append([]string(nil), spec.Files...)
	pkg.Version = pkg.Version.StripHash()
	pkg.BuiltOnPlatform = spec.Description.BuiltOn
	return nil
}

// installSource builds and installs a source rock.
func (i *Installer) installSource(ctx context.Context, pkg *rock.Package, srcDir string, spec *rock.Rockspec, opts Options) error {
	vars := i.buildVariables(opts)
	for k, v := range spec.Build.Variables {
		if _, set := vars[k]; !set {
			vars[k] = v
		}
	}

	ownCMakeLists := spec.Build.Type == rock.BuildCMake && fileExists(filepath.Join(srcDir, "CMakeLists.txt"))
	if !ownCMakeLists {
		if err := cmake.WriteCMakeLists(srcDir, spec, cmake.Options{}); err != nil {
			return &errors.InstallError{Package: pkg.ID(), Stage: "generate", Dep: opts.Dep, Err: err}
		}
	}

	buildDir := filepath.Join(i.cfg.TempDir, pkg.Name+"-build")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return &errors.InstallError{Package: pkg.ID(), Stage: "configure", Dep: opts.Dep, Err: err}
	}

	if err := cmake.WriteCacheScript(filepath.Join(buildDir, "cache.cmake"), vars); err != nil {
		return &errors.InstallError{Package: pkg.ID(), Stage: "configure", Dep: opts.Dep, Err: err}
	}

	configure := i.expandCommand(i.cfg.CacheCommand)
	if i.cfg.Debug && i.cfg.CacheDebugOptions != "" {
		configure += " " + i.cfg.CacheDebugOptions
	}
	configure += " " + srcDir

	if out, err := runCommand(ctx, buildDir, configure); err != nil {
		return &errors.InstallError{Package: pkg.ID(), Stage: "configure", Dep: opts.Dep, Output: out, Err: err}
	}

	build := i.expandCommand(i.cfg.BuildCommand)
	if i.cfg.Debug && i.cfg.BuildDebugOptions != "" {
		build += " " + i.cfg.BuildDebugOptions
	}

	if out, err := runCommand(ctx, buildDir, build); err != nil {
		return &errors.InstallError{Package: pkg.ID(), Stage: "build", Dep: opts.Dep, Output: out, Err: err}
	}

	files, err := i.readInstallManifest(buildDir)
	if err != nil {
		return &errors.InstallError{Package: pkg.ID(), Stage: "install-manifest", Dep: opts.Dep, Err: err}
	}
	pkg.Files = files
	pkg.BuiltOnPlatform = i.platformTag()

	if !i.cfg.Debug {
		if err := os.RemoveAll(buildDir); err != nil {
			i.log.Warn("cannot remove build directory", "dir", buildDir, "err", err)
		}
	}
	return nil
}

// buildVariables assembles the cache variables in precedence order:
// fixed deploy-root variables, then interpreter-dependent module
// directories, then config defaults, then caller overrides. Rockspec
// variables are merged later, lowest of all.
func (i *Installer) buildVariables(opts Options) map[string]string {
	root, err := filepath.Abs(i.cfg.RootDir)
	if err != nil {
		root = i.cfg.RootDir
	}

	vars := map[string]string{
		"CMAKE_INSTALL_PREFIX": root,
		"CMAKE_INCLUDE_PATH":   filepath.Join(root, "include"),
		"CMAKE_LIBRARY_PATH":   filepath.Join(root, "lib"),
		"CMAKE_PROGRAM_PATH":   filepath.Join(root, "bin"),
	}

	if opts.Installed != nil {
		if lua := opts.Installed.Find(resolver.InterpreterName); lua != nil {
			short := fmt.Sprintf("%d.%d", lua.Version.Component(0), lua.Version.Component(1))
			vars["LUA_VER"] = short
			vars["INSTALL_LMOD"] = "lib/lua/" + short
			vars["INSTALL_CMOD"] = "lib/lua/" + short
		}
	}

	for k, v := range i.cfg.Variables {
		vars[k] = v
	}
	for k, v := range opts.Variables {
		vars[k] = v
	}
	return vars
}

// readInstallManifest converts the build's emitted install manifest
// (absolute paths, one per line) into deploy-root-relative paths.
func (i *Installer) readInstallManifest(buildDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(buildDir, "install_manifest.txt"))
	if err != nil {
		return nil, fmt.Errorf("cannot read install manifest: %w", err)
	}

	root, err := filepath.Abs(i.cfg.RootDir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rel, err := filepath.Rel(root, line)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("installed file %q is outside the deploy root", line)
		}
		files = append(files, filepath.ToSlash(rel))
	}
	return files, nil
}

func (i *Installer) platformTag() string {
	if len(i.cfg.Platform) > 0 {
		return i.cfg.Platform[0]
	}
	return ""
}

// expandCommand substitutes the configured cmake executable for the
// literal "cmake" leading token, so a non-PATH cmake (or a wrapper) can
// drive the build without rewriting the command templates.
func (i *Installer) expandCommand(cmdline string) string {
	if i.cfg.CMake == "" {
		return cmdline
	}
	fields := strings.Fields(cmdline)
	if len(fields) == 0 || fields[0] != "cmake" {
		return cmdline
	}
	fields[0] = i.cfg.CMake
	return strings.Join(fields, " ")
}

// runCommand executes a whitespace-split command line in dir and returns
// its combined output. The output is returned for success and failure
// alike; install errors attach it for the user.
func runCommand(ctx context.Context, dir, cmdline string) (string, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
