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

package luatable_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dirpx.dev/luadist/distcore/luatable"
)

func TestParse_Rockspec(t *testing.T) {
	src := `
return {
  package = "xml",
  version = "1.8.0-1",
  source = {
    url = "git://example.com/xml.git",
    tag = "v1.8.0",
  },
  description = {
    summary = "An XML parser",
    license = "MIT",
  },
  dependencies = {
    "lua >= 5.1",
  },
  supported_platforms = { "unix", "windows" },
  build = {
    type = "builtin",
    variables = {
      ["CMAKE_BUILD_TYPE"] = "Release",
    },
  },
}
`
	root, err := luatable.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := root.Str("package"); got != "xml" {
		t.Errorf("package = %q, want %q", got, "xml")
	}
	if got := root.Str("version"); got != "1.8.0-1" {
		t.Errorf("version = %q, want %q", got, "1.8.0-1")
	}
	if got := root.Sub("source").Str("url"); got != "git://example.com/xml.git" {
		t.Errorf("source.url = %q, want git url", got)
	}
	if diff := cmp.Diff([]string{"lua >= 5.1"}, root.Strings("dependencies")); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"unix", "windows"}, root.Strings("supported_platforms")); diff != "" {
		t.Errorf("supported_platforms mismatch (-want +got):\n%s", diff)
	}
	if got := root.Sub("build").Sub("variables").Str("CMAKE_BUILD_TYPE"); got != "Release" {
		t.Errorf("bracketed key = %q, want %q", got, "Release")
	}
}

func TestParse_StripsShebang(t *testing.T) {
	src := "#!/usr/bin/env lua\nreturn { package = \"x\" }\n"
	root, err := luatable.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := root.Str("package"); got != "x" {
		t.Errorf("package = %q, want %q", got, "x")
	}
}

func TestParse_ScalarsAndComments(t *testing.T) {
	src := `
-- top comment
return {
  count = 3,          -- trailing comment
  ratio = 0.5,
  enabled = true,
  disabled = false,
  missing = nil,
  note = [[a long
string]],
}
`
	root, err := luatable.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if v, _ := root.Get("count"); v != int64(3) {
		t.Errorf("count = %v (%T), want int64(3)", v, v)
	}
	if v, _ := root.Get("ratio"); v != 0.5 {
		t.Errorf("ratio = %v, want 0.5", v)
	}
	if v, _ := root.Get("enabled"); v != true {
		t.Errorf("enabled = %v, want true", v)
	}
	if v, _ := root.Get("note"); v != "a long\nstring" {
		t.Errorf("note = %q, want long string content", v)
	}
}

func TestParse_RejectsExecutableContent(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "function_value", src: `return { f = function() return 1 end }`},
		{name: "call", src: `return { v = os.getenv("HOME") }`},
		{name: "variable_reference", src: `return { v = some_var }`},
		{name: "arithmetic", src: `return { v = 1 + 2 }`},
		{name: "bare_statement", src: `print("hi") return {}`},
		{name: "trailing_code", src: `return {} print("hi")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := luatable.Parse([]byte(tt.src)); err == nil {
				t.Errorf("Parse(%q) accepted executable content", tt.src)
			}
		})
	}
}

func TestParse_FieldOrderPreserved(t *testing.T) {
	src := `return { zebra = 1, alpha = 2, mid = 3 }`
	root, err := luatable.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff([]string{"zebra", "alpha", "mid"}, root.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	orig := luatable.NewTable()
	orig.Set("package", "xml")
	orig.Set("version", "1.8.0-1")
	deps := luatable.NewTable()
	deps.Append("lua >= 5.1")
	deps.Append("zlib ~> 1.2")
	orig.Set("dependencies", deps)
	build := luatable.NewTable()
	build.Set("type", "builtin")
	orig.Set("build", build)

	data, err := luatable.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "return {") {
		t.Errorf("Marshal() output does not start with return: %s", data)
	}

	back, err := luatable.Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v", err)
	}
	if got := back.Str("package"); got != "xml" {
		t.Errorf("package = %q, want %q", got, "xml")
	}
	if diff := cmp.Diff(orig.Keys(), back.Keys()); diff != "" {
		t.Errorf("field order not preserved (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lua >= 5.1", "zlib ~> 1.2"}, back.Strings("dependencies")); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_QuotesSpecials(t *testing.T) {
	orig := luatable.NewTable()
	orig.Set("summary", "line one\nwith \"quotes\" and \\slashes\\")

	data, err := luatable.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	back, err := luatable.Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v", err)
	}
	if got := back.Str("summary"); got != "line one\nwith \"quotes\" and \\slashes\\" {
		t.Errorf("summary = %q after round trip", got)
	}
}
