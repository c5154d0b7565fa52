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

// Package cmake translates rockspec build recipes into CMake build
// descriptions and writes the cache scripts that parameterize them.
//
// Generation is deterministic: modules and install rules are emitted in
// sorted order, so regenerating a build file for the same rockspec
// produces byte-identical output. The installer, the make operation and
// the static bundler all go through Generate; the bundler asks for
// static libraries instead of loadable modules.
package cmake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/rock"
)

// Options adjusts generation for the two consumers.
type Options struct {
	// Static emits STATIC libraries instead of MODULE libraries and
	// skips install rules; the static bundler links the results into one
	// executable.
	Static bool
}

// Destination variables the generated build files install into. The
// installer seeds interpreter-version-aware defaults for the module
// directories; a cache script can override any of them.
const (
	varLuaModuleDir = "INSTALL_LMOD"
	varBinModuleDir = "INSTALL_CMOD"
)

// Generate renders a CMakeLists.txt for the rockspec's build recipe.
//
// BuildBuiltin emits one target or install rule per build.modules entry:
// a single pure-source module installs as a script, anything else
// compiles. BuildNone is translated the same way (build.modules entries
// are still emitted, then the build.install rules), except that a recipe
// with nothing to emit is accepted. BuildCMake is
// not generated here — the rock's own CMakeLists.txt is used when
// present — but a BuildCMake rockspec WITHOUT its own file falls back to
// the builtin translation, and a recipe that then has nothing to emit is
// an error the installer treats as fatal.
func Generate(spec *rock.Rockspec, opts Options) (string, error) {
	if spec.IsBinary() {
		return "", &errors.ValidationError{Type: "Rockspec", Reason: "binary rocks have no build description"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cmake_minimum_required(VERSION 3.5)\n")
	fmt.Fprintf(&b, "project(%s C)\n\n", cmakeName(spec.Package))

	fmt.Fprintf(&b, "if(NOT %s)\n  set(%s lib/lua)\nendif()\n", varLuaModuleDir, varLuaModuleDir)
	fmt.Fprintf(&b, "if(NOT %s)\n  set(%s lib/lua)\nendif()\n\n", varBinModuleDir, varBinModuleDir)

	emitted := 0

	for _, name := range sortedModuleNames(spec.Build.Modules) {
		sources := spec.Build.Modules[name]
		if len(sources) == 0 {
			continue
		}
		if isScriptModule(sources) {
			if !opts.Static {
				emitScriptInstall(&b, name, sources[0])
				emitted++
			}
			continue
		}
		emitLibrary(&b, name, sources, opts.Static)
		emitted++
	}

	if !opts.Static {
		for _, subtree := range sortedInstallKeys(spec.Build.Install) {
			files := spec.Build.Install[subtree]
			if len(files) == 0 {
				continue
			}
			fmt.Fprintf(&b, "install(FILES %s DESTINATION %s)\n",
				strings.Join(files, " "), installDestination(subtree))
			emitted++
		}
	}

	if emitted == 0 && spec.Build.Type != rock.BuildNone {
		return "", &errors.ValidationError{Type: "Rockspec", Field: "Build", Reason: "recipe produces no targets or install rules"}
	}

	return b.String(), nil
}

// WriteCMakeLists generates the build description and writes it at
// dir/CMakeLists.txt.
func WriteCMakeLists(dir string, spec *rock.Rockspec, opts Options) error {
	content, err := Generate(spec, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte(content), 0o644)
}

// WriteCacheScript writes the variable cache consumed by the configure
// step: one forced SET per variable, sorted by key, values normalized to
// forward slashes so Windows paths survive CMake string processing.
func WriteCacheScript(path string, vars map[string]string) error {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		value := strings.ReplaceAll(vars[k], "\\", "/")
		fmt.Fprintf(&b, "SET(%s %q CACHE STRING \"\" FORCE)\n", k, value)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// emitScriptInstall installs a pure-source module under the script module
// directory, preserving the dotted module path as subdirectories:
// module "socket.http" installs as <lmod>/socket/http.lua.
func emitScriptInstall(b *strings.Builder, module, source string) {
	dest := "${" + varLuaModuleDir + "}"
	parts := strings.Split(module, ".")
	leaf := parts[len(parts)-1]
	if len(parts) > 1 {
		dest += "/" + strings.Join(parts[:len(parts)-1], "/")
	}
	fmt.Fprintf(b, "install(FILES %s DESTINATION %s RENAME %s.lua)\n", source, dest, leaf)
}

// emitLibrary compiles a native module. Loadable modules drop the "lib"
// prefix and keep the dotted path as an underscore name, matching the
// interpreter's loader convention; static libraries keep their name for
// the bundler to link.
func emitLibrary(b *strings.Builder, module string, sources []string, static bool) {
	target := cmakeName(module)
	kind := "MODULE"
	if static {
		kind = "STATIC"
	}
	fmt.Fprintf(b, "add_library(%s %s %s)\n", target, kind, strings.Join(sources, " "))
	fmt.Fprintf(b, "set_target_properties(%s PROPERTIES PREFIX \"\" OUTPUT_NAME %s)\n", target, target)
	if !static {
		fmt.Fprintf(b, "install(TARGETS %s DESTINATION ${%s})\n", target, varBinModuleDir)
	}
	b.WriteByte('\n')
}

func installDestination(subtree string) string {
	switch subtree {
	case "lua":
		return "${" + varLuaModuleDir + "}"
	case "bin":
		return "bin"
	case "conf":
		return "etc"
	case "lib":
		return "lib"
	default:
		return subtree
	}
}

// isScriptModule reports whether the module deploys as an interpreter
// script rather than compiling.
func isScriptModule(sources []string) bool {
	return len(sources) == 1 && strings.HasSuffix(sources[0], ".lua")
}

// cmakeName turns a dotted module path into a target identifier.
func cmakeName(module string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(module)
}

func sortedModuleNames(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedInstallKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
