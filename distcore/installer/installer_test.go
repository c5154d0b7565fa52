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

package installer_test

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"dirpx.dev/luadist/distcore/config"
	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/installer"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/model/version"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		RootDir:          root,
		TempDir:          filepath.Join(root, "tmp"),
		ManifestFilename: "dist.manifest",
		Platform:         []string{"linux", "unix"},
		CacheCommand:     "true",
		BuildCommand:     "true",
	}
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInstall_BinaryShortCircuit(t *testing.T) {
	cfg := testConfig(t)
	src := t.TempDir()

	writeFile(t, filepath.Join(src, "xml-1.8.0-1_ab12cd34.rockspec"), `
return {
  package = "xml",
  version = "1.8.0-1_ab12cd34",
  dependencies = { "lua ~> 5.3" },
  description = { built_on = "linux" },
  files = { "lib/lua/5.3/xml.lua" },
}
`)
	writeFile(t, filepath.Join(src, "lib/lua/5.3/xml.lua"), "return {}")

	inst := installer.New(cfg, quietLogger())
	pkg := rock.New("xml", version.MustParse("1.8.0-1_ab12cd34"))

	if err := inst.Install(context.Background(), pkg, src, installer.Options{}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	// The payload lands under the deploy root.
	if _, err := os.Stat(filepath.Join(cfg.RootDir, "lib/lua/5.3/xml.lua")); err != nil {
		t.Errorf("payload not copied: %v", err)
	}
	if diff := cmp.Diff([]string{"lib/lua/5.3/xml.lua"}, pkg.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	// The dep-hash tag is stripped from the recorded version.
	if got := pkg.Version.String(); got != "1.8.0-1" {
		t.Errorf("Version = %q, want hash stripped %q", got, "1.8.0-1")
	}
	if pkg.BuiltOnPlatform != "linux" {
		t.Errorf("BuiltOnPlatform = %q, want %q", pkg.BuiltOnPlatform, "linux")
	}
	if pkg.Spec == nil || !pkg.Spec.IsBinary() {
		t.Errorf("Spec not attached as binary")
	}
}

func TestInstall_MissingRockspec(t *testing.T) {
	cfg := testConfig(t)
	inst := installer.New(cfg, quietLogger())
	pkg := rock.New("ghost", version.MustParse("1.0"))

	err := inst.Install(context.Background(), pkg, t.TempDir(), installer.Options{Dep: true})
	var iErr *errors.InstallError
	if !stderrors.As(err, &iErr) {
		t.Fatalf("Install() error = %v, want *InstallError", err)
	}
	if iErr.Stage != "rockspec" {
		t.Errorf("Stage = %q, want %q", iErr.Stage, "rockspec")
	}
	if errors.ExitCode(err) != errors.CodeInstallDep {
		t.Errorf("ExitCode() = %d, want %d", errors.ExitCode(err), errors.CodeInstallDep)
	}
}

func TestInstall_SourceBuild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on the true(1) utility")
	}

	cfg := testConfig(t)
	src := t.TempDir()

	writeFile(t, filepath.Join(src, "hello-1.0.rockspec"), `
return {
  package = "hello",
  version = "1.0",
  build = {
    type = "builtin",
    modules = { hello = "hello.lua" },
  },
}
`)
	writeFile(t, filepath.Join(src, "hello.lua"), "return {}")

	// The build commands are stubbed with true(1); pre-seed the install
	// manifest the real build would have written.
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	buildDir := filepath.Join(cfg.TempDir, "hello-build")
	writeFile(t, filepath.Join(buildDir, "install_manifest.txt"),
		filepath.Join(root, "lib/lua/5.3/hello.lua")+"\n")

	installed := rock.NewInstalledSet()
	installed.Add(rock.New("lua", version.MustParse("5.3.4")))

	inst := installer.New(cfg, quietLogger())
	pkg := rock.New("hello", version.MustParse("1.0"))

	// Debug keeps the staging directories so the generated artifacts can
	// be inspected below.
	cfg.Debug = true
	if err := inst.Install(context.Background(), pkg, src, installer.Options{Installed: installed}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if diff := cmp.Diff([]string{"lib/lua/5.3/hello.lua"}, pkg.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if pkg.BuiltOnPlatform != "linux" {
		t.Errorf("BuiltOnPlatform = %q, want %q", pkg.BuiltOnPlatform, "linux")
	}

	// Generation wrote the build description next to the sources, and
	// the cache script carries the interpreter-derived module directory.
	if _, err := os.Stat(filepath.Join(src, "CMakeLists.txt")); err != nil {
		t.Errorf("CMakeLists.txt not generated: %v", err)
	}
	cache, err := os.ReadFile(filepath.Join(buildDir, "cache.cmake"))
	if err != nil {
		t.Fatalf("cache.cmake not written: %v", err)
	}
	for _, want := range []string{"CMAKE_INSTALL_PREFIX", `SET(INSTALL_LMOD "lib/lua/5.3"`} {
		if !strings.Contains(string(cache), want) {
			t.Errorf("cache.cmake missing %q:\n%s", want, cache)
		}
	}
}
