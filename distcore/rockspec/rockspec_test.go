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

package rockspec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/model/version"
	"dirpx.dev/luadist/distcore/rockspec"
)

const sampleSpec = `
return {
  package = "luasocket",
  version = "3.0-1",
  source = {
    url = "git://example.com/luasocket.git",
    tag = "v3.0",
  },
  description = {
    summary = "Network support",
    license = "MIT",
  },
  dependencies = {
    "lua >= 5.1",
  },
  build = {
    type = "builtin",
    modules = {
      socket = { "src/socket.c", "src/timeout.c" },
      ["socket.http"] = "src/http.lua",
    },
    install = {
      lua = { "etc/dispatch.lua" },
    },
  },
}
`

func TestDecode(t *testing.T) {
	spec, err := rockspec.Decode([]byte(sampleSpec))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if spec.Package != "luasocket" {
		t.Errorf("Package = %q, want %q", spec.Package, "luasocket")
	}
	if got := spec.Version.String(); got != "3.0-1" {
		t.Errorf("Version = %q, want %q", got, "3.0-1")
	}
	if spec.Build.Type != rock.BuildBuiltin {
		t.Errorf("Build.Type = %v, want builtin", spec.Build.Type)
	}
	if diff := cmp.Diff([]string{"src/socket.c", "src/timeout.c"}, spec.Build.Modules["socket"]); diff != "" {
		t.Errorf("table module mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"src/http.lua"}, spec.Build.Modules["socket.http"]); diff != "" {
		t.Errorf("string module mismatch (-want +got):\n%s", diff)
	}
	if spec.IsBinary() {
		t.Errorf("IsBinary() = true for a source rockspec")
	}
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "unknown_field", src: `return { package = "x", version = "1.0", mystery = 1 }`},
		{name: "missing_version", src: `return { package = "x" }`},
		{name: "bad_build_type", src: `return { package = "x", version = "1.0", build = { type = "make" } }`},
		{name: "bad_dependency", src: `return { package = "x", version = "1.0", dependencies = { "lua !! 5" } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := rockspec.Decode([]byte(tt.src)); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tt.src)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	orig, err := rockspec.Decode([]byte(sampleSpec))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	data, err := rockspec.Encode(orig)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	back, err := rockspec.Decode(data)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}
	if diff := cmp.Diff(orig, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_BinaryRock(t *testing.T) {
	spec := &rock.Rockspec{
		Package:      "xml",
		Version:      version.MustParse("1.8.0-1_ab12cd34"),
		Dependencies: []string{"lua ~> 5.3"},
		Files:        []string{"lib/lua/5.3/xml.lua"},
		Description:  rock.Description{BuiltOn: "linux"},
	}

	data, err := rockspec.Encode(spec)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	back, err := rockspec.Decode(data)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}
	if !back.IsBinary() {
		t.Fatalf("IsBinary() = false after round trip")
	}
	if got := back.Version.String(); got != "1.8.0-1_ab12cd34" {
		t.Errorf("Version = %q, want hash-tagged version", got)
	}
	if got := back.Version.Hash; got != "ab12cd34" {
		t.Errorf("Version.Hash = %q, want %q", got, "ab12cd34")
	}
}

func TestWriteAndFindInDir(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"foo", "bar"} {
		spec := &rock.Rockspec{Package: name, Version: version.MustParse("1.0")}
		if _, err := rockspec.Write(dir, spec); err != nil {
			t.Fatalf("Write(%s) error = %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := rockspec.FindInDir(dir)
	if err != nil {
		t.Fatalf("FindInDir() error = %v", err)
	}
	if diff := cmp.Diff([]string{"bar-1.0.rockspec", "foo-1.0.rockspec"}, got); diff != "" {
		t.Errorf("FindInDir() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luasocket-3.0-1.rockspec")
	if err := os.WriteFile(path, []byte(sampleSpec), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := rockspec.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if spec.Package != "luasocket" {
		t.Errorf("Package = %q, want %q", spec.Package, "luasocket")
	}
}
