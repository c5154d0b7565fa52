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

// Package static assembles a build tree that links every requested
// package and its dependencies into one statically linked executable.
//
// No build or install runs here: the output is a self-contained source
// tree. Each resolved package becomes a subdirectory with a build file
// that produces static libraries, a generated C shim registers every
// native module in the interpreter's preload table, and a top-level
// build description ties the subdirectories together and links the
// aggregate executable.
package static

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dirpx.dev/luadist/distcore/cmake"
	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/rockspec"
)

// BundleName is the target name of the aggregate executable.
const BundleName = "luadist-static"

// Bundler emits static bundles.
type Bundler struct{}

// NewBundler returns a Bundler.
func NewBundler() *Bundler {
	return &Bundler{}
}

// Bundle assembles the tree under destination. packages are the resolved
// set in dependency-first order; dirs maps each package ID to its fetched
// source directory. Subdirectories are emitted in the given order, so a
// package's static libraries exist before its dependents link them.
func (b *Bundler) Bundle(packages []*rock.Package, dirs map[string]string, destination string) error {
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return &errors.BundleError{Step: errors.BundleStepMain, Err: err}
	}

	var subdirs []string
	var modules []string
	var libs []string

	for _, pkg := range packages {
		srcDir, ok := dirs[pkg.ID()]
		if !ok {
			return &errors.BundleError{Step: errors.BundleStepGenerate, Package: pkg.ID(), Err: fmt.Errorf("no source directory")}
		}

		spec := pkg.Spec
		if spec == nil {
			loaded, err := rockspec.Load(filepath.Join(srcDir, pkg.Name+"-"+pkg.Version.String()+".rockspec"))
			if err != nil {
				return &errors.BundleError{Step: errors.BundleStepGenerate, Package: pkg.ID(), Err: err}
			}
			spec = loaded
		}

		pkgDir := filepath.Join(destination, pkg.Name)
		if err := copyTree(srcDir, pkgDir); err != nil {
			return &errors.BundleError{Step: errors.BundleStepGenerate, Package: pkg.ID(), Err: err}
		}

		ownCMakeLists := spec.Build.Type == rock.BuildCMake && fileExists(filepath.Join(srcDir, "CMakeLists.txt"))
		if !ownCMakeLists {
			if err := cmake.WriteCMakeLists(pkgDir, spec, cmake.Options{Static: true}); err != nil {
				return &errors.BundleError{Step: errors.BundleStepGenerate, Package: pkg.ID(), Err: err}
			}
		}

		subdirs = append(subdirs, pkg.Name)
		for _, name := range nativeModules(spec) {
			modules = append(modules, name)
			libs = append(libs, cmakeTarget(name))
		}
	}

	if err := b.writeMain(destination, subdirs, libs); err != nil {
		return err
	}
	if err := b.writePreloadShim(destination, modules); err != nil {
		return err
	}
	return nil
}

// writeMain emits the top-level CMakeLists.txt.
func (b *Bundler) writeMain(destination string, subdirs, libs []string) error {
	var s strings.Builder
	s.WriteString("cmake_minimum_required(VERSION 3.5)\n")
	fmt.Fprintf(&s, "project(%s C)\n\n", BundleName)

	for _, dir := range subdirs {
		fmt.Fprintf(&s, "add_subdirectory(%q)\n", dir)
	}

	s.WriteByte('\n')
	fmt.Fprintf(&s, "add_executable(%s preload.c)\n", BundleName)
	if len(libs) > 0 {
		fmt.Fprintf(&s, "target_link_libraries(%s %s)\n", BundleName, strings.Join(libs, " "))
	}

	path := filepath.Join(destination, "CMakeLists.txt")
	if err := os.WriteFile(path, []byte(s.String()), 0o644); err != nil {
		return &errors.BundleError{Step: errors.BundleStepMain, Err: err}
	}
	return nil
}

// writePreloadShim emits the C translation unit that registers every
// native module under its dotted name in the interpreter's preload
// table. The loader symbol replaces "." with "_" per the interpreter's
// loader convention.
func (b *Bundler) writePreloadShim(destination string, modules []string) error {
	sorted := append([]string(nil), modules...)
	sort.Strings(sorted)

	var s strings.Builder
	s.WriteString("#include \"lua.h\"\n#include \"lauxlib.h\"\n\n")
	for _, m := range sorted {
		fmt.Fprintf(&s, "int luaopen_%s(lua_State *L);\n", cmakeTarget(m))
	}
	s.WriteString("\nvoid luadist_preload(lua_State *L) {\n")
	s.WriteString("  lua_getglobal(L, \"package\");\n")
	s.WriteString("  lua_getfield(L, -1, \"preload\");\n")
	for _, m := range sorted {
		fmt.Fprintf(&s, "  lua_pushcfunction(L, luaopen_%s);\n", cmakeTarget(m))
		fmt.Fprintf(&s, "  lua_setfield(L, -2, %q);\n", m)
	}
	s.WriteString("  lua_pop(L, 2);\n}\n")

	path := filepath.Join(destination, "preload.c")
	if err := os.WriteFile(path, []byte(s.String()), 0o644); err != nil {
		return &errors.BundleError{Step: errors.BundleStepConfig, Err: err}
	}
	return nil
}

// nativeModules lists the rockspec's compiled modules, the ones that get
// a static library and a preload entry. Script modules are deployed by
// the normal install path and cannot be preloaded from C.
func nativeModules(spec *rock.Rockspec) []string {
	var out []string
	for name, sources := range spec.Build.Modules {
		if len(sources) == 1 && strings.HasSuffix(sources[0], ".lua") {
			continue
		}
		if len(sources) == 0 {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func cmakeTarget(module string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(module)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// copyTree copies a directory recursively. Git bookkeeping is skipped;
// the bundle only needs sources.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(dst, 0o755)
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(filepath.Join(dst, rel), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		defer out.Close()

		if _, err := io.Copy(out, in); err != nil {
			return err
		}
		return out.Close()
	})
}
