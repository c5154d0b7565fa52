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

package cmake_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dirpx.dev/luadist/distcore/cmake"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/model/version"
)

func builtinSpec() *rock.Rockspec {
	return &rock.Rockspec{
		Package: "luasocket",
		Version: version.MustParse("3.0-1"),
		Build: rock.Build{
			Type: rock.BuildBuiltin,
			Modules: map[string][]string{
				"socket":      {"src/socket.c", "src/timeout.c"},
				"socket.http": {"src/http.lua"},
			},
			Install: map[string][]string{
				"conf": {"etc/socket.cfg"},
			},
		},
	}
}

func TestGenerate_Builtin(t *testing.T) {
	got, err := cmake.Generate(builtinSpec(), cmake.Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, want := range []string{
		"project(luasocket C)",
		"add_library(socket MODULE src/socket.c src/timeout.c)",
		"install(TARGETS socket DESTINATION ${INSTALL_CMOD})",
		"install(FILES src/http.lua DESTINATION ${INSTALL_LMOD}/socket RENAME http.lua)",
		"install(FILES etc/socket.cfg DESTINATION etc)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Generate() missing %q in:\n%s", want, got)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := cmake.Generate(builtinSpec(), cmake.Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := cmake.Generate(builtinSpec(), cmake.Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if a != b {
		t.Errorf("Generate() is not deterministic")
	}
}

func TestGenerate_Static(t *testing.T) {
	got, err := cmake.Generate(builtinSpec(), cmake.Options{Static: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !strings.Contains(got, "add_library(socket STATIC") {
		t.Errorf("static generation did not emit a STATIC library:\n%s", got)
	}
	if strings.Contains(got, "install(") {
		t.Errorf("static generation emitted install rules:\n%s", got)
	}
}

func TestGenerate_NoneTypeEmitsInstallOnly(t *testing.T) {
	spec := &rock.Rockspec{
		Package: "config-rock",
		Version: version.MustParse("1.0"),
		Build: rock.Build{
			Type:    rock.BuildNone,
			Install: map[string][]string{"lua": {"init.lua"}},
		},
	}

	got, err := cmake.Generate(spec, cmake.Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Contains(got, "add_library") {
		t.Errorf("none-type build emitted a compile target:\n%s", got)
	}
	if !strings.Contains(got, "install(FILES init.lua DESTINATION ${INSTALL_LMOD})") {
		t.Errorf("none-type build missing install rule:\n%s", got)
	}
}

func TestGenerate_EmptyRecipeFails(t *testing.T) {
	spec := &rock.Rockspec{
		Package: "empty",
		Version: version.MustParse("1.0"),
		Build:   rock.Build{Type: rock.BuildBuiltin},
	}
	if _, err := cmake.Generate(spec, cmake.Options{}); err == nil {
		t.Errorf("Generate() accepted a recipe with nothing to build")
	}
}

func TestWriteCacheScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.cmake")
	vars := map[string]string{
		"CMAKE_INSTALL_PREFIX": `C:\deploy\root`,
		"A_FIRST":              "value",
	}

	if err := cmake.WriteCacheScript(path, vars); err != nil {
		t.Fatalf("WriteCacheScript() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	wantLines := []string{
		`SET(A_FIRST "value" CACHE STRING "" FORCE)`,
		`SET(CMAKE_INSTALL_PREFIX "C:/deploy/root" CACHE STRING "" FORCE)`,
	}
	for _, want := range wantLines {
		if !strings.Contains(got, want) {
			t.Errorf("cache script missing %q in:\n%s", want, got)
		}
	}
	if strings.Index(got, "A_FIRST") > strings.Index(got, "CMAKE_INSTALL_PREFIX") {
		t.Errorf("cache script keys are not sorted:\n%s", got)
	}
}
