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

package dist_test

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"dirpx.dev/luadist/distcore/config"
	"dirpx.dev/luadist/distcore/dist"
	"dirpx.dev/luadist/distcore/errors"
)

// writeBinaryRock lays out a local-repo package directory holding a
// prebuilt rock: a binary rockspec plus its payload files.
func writeBinaryRock(t *testing.T, repo, name, ver string, deps, files []string) {
	t.Helper()
	dir := filepath.Join(repo, name+"-"+ver)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	b.WriteString("return {\n")
	b.WriteString("  package = \"" + name + "\",\n")
	b.WriteString("  version = \"" + ver + "\",\n")
	b.WriteString("  description = { built_on = \"linux\" },\n")
	if len(deps) > 0 {
		b.WriteString("  dependencies = {\n")
		for _, d := range deps {
			b.WriteString("    \"" + d + "\",\n")
		}
		b.WriteString("  },\n")
	}
	b.WriteString("  files = {\n")
	for _, f := range files {
		b.WriteString("    \"" + f + "\",\n")
	}
	b.WriteString("  },\n}\n")

	if err := os.WriteFile(filepath.Join(dir, name+"-"+ver+".rockspec"), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("-- "+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testContext(t *testing.T, repo string) *dist.Context {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		RootDir:           root,
		TempDir:           filepath.Join(root, "tmp"),
		ManifestRepos:     []string{repo},
		ManifestFilename:  "dist.manifest",
		Platform:          []string{"linux", "unix"},
		IncludeLocalRepos: true,
	}
	return dist.New(cfg, log.NewWithOptions(io.Discard, log.Options{}))
}

func installedIDs(t *testing.T, c *dist.Context) []string {
	t.Helper()
	pkgs, err := c.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.ID()
	}
	return out
}

func TestInstall_EndToEnd(t *testing.T) {
	repo := t.TempDir()
	writeBinaryRock(t, repo, "lua", "5.3.4", nil, []string{"bin/lua", "lib/liblua.a"})
	writeBinaryRock(t, repo, "xml", "1.8.0-1", []string{"lua >= 5.1"}, []string{"lib/lua/5.3/xml.lua"})

	c := testContext(t, repo)
	if err := c.Install(context.Background(), []string{"xml 1.8.0-1"}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	// The interpreter fallback materialized lua before xml.
	if diff := cmp.Diff([]string{"lua 5.3.4", "xml 1.8.0-1"}, installedIDs(t, c)); diff != "" {
		t.Errorf("installed set mismatch (-want +got):\n%s", diff)
	}

	// Payload landed under the deploy root.
	for _, rel := range []string{"bin/lua", "lib/lua/5.3/xml.lua"} {
		if _, err := os.Stat(filepath.Join(c.Config().RootDir, rel)); err != nil {
			t.Errorf("missing installed file %s: %v", rel, err)
		}
	}

	// The second pass recorded xml's exact runtime dependency.
	pkgs, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"lua 5.3.4"}, pkgs[1].BinDependencies); diff != "" {
		t.Errorf("bin dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestInstall_Idempotent(t *testing.T) {
	repo := t.TempDir()
	writeBinaryRock(t, repo, "lua", "5.3.4", nil, []string{"bin/lua"})
	writeBinaryRock(t, repo, "xml", "1.8.0-1", []string{"lua >= 5.1"}, []string{"lib/lua/5.3/xml.lua"})

	c := testContext(t, repo)
	if err := c.Install(context.Background(), []string{"xml"}); err != nil {
		t.Fatalf("first Install() error = %v", err)
	}
	first := installedIDs(t, c)

	if err := c.Install(context.Background(), []string{"xml"}); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}
	if diff := cmp.Diff(first, installedIDs(t, c)); diff != "" {
		t.Errorf("second install changed the installed set (-want +got):\n%s", diff)
	}
}

func TestInstall_NoFallbackWhenInterpreterPinned(t *testing.T) {
	repo := t.TempDir()
	writeBinaryRock(t, repo, "lua", "5.1.5", nil, []string{"bin/lua"})
	writeBinaryRock(t, repo, "lua", "5.3.4", nil, []string{"bin/lua"})
	writeBinaryRock(t, repo, "x", "1.0", []string{"lua >= 5.3"}, []string{"lib/lua/5.1/x.lua"})

	c := testContext(t, repo)
	if err := c.Install(context.Background(), []string{"lua 5.1.5"}); err != nil {
		t.Fatalf("Install(lua) error = %v", err)
	}

	err := c.Install(context.Background(), []string{"x"})
	var rErr *errors.ResolveError
	if !stderrors.As(err, &rErr) {
		t.Fatalf("Install(x) error = %v, want *ResolveError", err)
	}
}

func TestRemove_RoundTrip(t *testing.T) {
	repo := t.TempDir()
	writeBinaryRock(t, repo, "lua", "5.3.4", nil, []string{"bin/lua"})
	writeBinaryRock(t, repo, "xml", "1.8.0-1", []string{"lua >= 5.1"}, []string{"lib/lua/5.3/xml.lua"})

	c := testContext(t, repo)
	if err := c.Install(context.Background(), []string{"lua"}); err != nil {
		t.Fatalf("Install(lua) error = %v", err)
	}
	before := installedIDs(t, c)

	if err := c.Install(context.Background(), []string{"xml"}); err != nil {
		t.Fatalf("Install(xml) error = %v", err)
	}
	if err := c.Remove(context.Background(), []string{"xml"}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if diff := cmp.Diff(before, installedIDs(t, c)); diff != "" {
		t.Errorf("remove did not restore the installed set (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(c.Config().RootDir, "lib/lua/5.3/xml.lua")); !os.IsNotExist(err) {
		t.Errorf("removed package's file still present")
	}
	if _, err := os.Stat(filepath.Join(c.Config().RootDir, "bin/lua")); err != nil {
		t.Errorf("unrelated package's file was deleted: %v", err)
	}
}

func TestPack_InstalledPackage(t *testing.T) {
	repo := t.TempDir()
	writeBinaryRock(t, repo, "lua", "5.3.4", nil, []string{"bin/lua"})
	writeBinaryRock(t, repo, "xml", "1.8.0-1", []string{"lua >= 5.1"}, []string{"lib/lua/5.3/xml.lua"})

	c := testContext(t, repo)
	if err := c.Install(context.Background(), []string{"xml"}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	dest := t.TempDir()
	if err := c.Pack([]string{"xml"}, dest); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("pack produced %d entries, want 1", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "xml 1.8.0-1_") {
		t.Errorf("packed directory = %q, want xml 1.8.0-1_<hash>", entries[0].Name())
	}
}

func TestMake_AlphabeticalPick(t *testing.T) {
	repo := t.TempDir()
	c := testContext(t, repo)

	work := t.TempDir()
	// Two rockspecs: bar sorts before foo and must be the one installed.
	// Both are binary so no build tooling is needed.
	for _, name := range []string{"foo", "bar"} {
		spec := "return {\n  package = \"" + name + "\",\n  version = \"0.1\",\n  files = { \"lib/" + name + ".lua\" },\n}\n"
		if err := os.WriteFile(filepath.Join(work, name+"-0.1.rockspec"), []byte(spec), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.MkdirAll(filepath.Join(work, "lib"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(work, "lib", name+".lua"), []byte("return {}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Make(context.Background(), work); err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	if diff := cmp.Diff([]string{"bar 0.1"}, installedIDs(t, c)); diff != "" {
		t.Errorf("installed set mismatch (-want +got):\n%s", diff)
	}
	// The working directory is cleaned on success.
	if _, err := os.Stat(work); !os.IsNotExist(err) {
		t.Errorf("working directory still present after make")
	}
}

func TestMake_NoRockspec(t *testing.T) {
	c := testContext(t, t.TempDir())

	err := c.Make(context.Background(), t.TempDir())
	var nErr *errors.NoSourceError
	if !stderrors.As(err, &nErr) {
		t.Fatalf("Make() error = %v, want *NoSourceError", err)
	}
	if errors.ExitCode(err) != errors.CodeNoSourceFound {
		t.Errorf("ExitCode() = %d, want %d", errors.ExitCode(err), errors.CodeNoSourceFound)
	}
}
