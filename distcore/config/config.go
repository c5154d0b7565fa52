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

// Package config loads and validates the luadist configuration.
//
// Configuration is resolved by viper from three layers, lowest precedence
// first: built-in defaults, an optional "luadist.yaml" file (searched in
// the working directory and the deploy root), and LUADIST_* environment
// variables. CLI flags override individual fields after loading.
package config

import (
	stderrors "errors"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"dirpx.dev/luadist/distcore/errors"
)

// Config carries every knob the pipeline reads. It is threaded through
// the orchestrator as part of the operation context; nothing reads
// configuration from process-wide state.
type Config struct {
	// RootDir is the deploy root: installed payload, the installed-
	// package database and the transient tmp tree all live under it.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir"`

	// TempDir is the staging area for clones and builds. Defaults to
	// "<root_dir>/tmp".
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`

	// ManifestRepos are the manifest source URLs, in precedence order:
	// entries from earlier URLs win merge conflicts.
	ManifestRepos []string `mapstructure:"manifest_repos" yaml:"manifest_repos"`

	// ManifestFilename names both the manifest file inside a repository
	// clone and the installed-package database under the deploy root.
	ManifestFilename string `mapstructure:"manifest_filename" yaml:"manifest_filename"`

	// Platform is the active platform tag list, most specific first.
	Platform []string `mapstructure:"platform" yaml:"platform"`

	// CacheCommand is the configure step, run in the build directory
	// after the cache script is written.
	CacheCommand string `mapstructure:"cache_command" yaml:"cache_command"`

	// CacheDebugOptions is appended to CacheCommand when Debug is set.
	CacheDebugOptions string `mapstructure:"cache_debug_options" yaml:"cache_debug_options"`

	// BuildCommand is the build-and-install step, run in the build
	// directory after a successful configure.
	BuildCommand string `mapstructure:"build_command" yaml:"build_command"`

	// BuildDebugOptions is appended to BuildCommand when Debug is set.
	BuildDebugOptions string `mapstructure:"build_debug_options" yaml:"build_debug_options"`

	// CMake is the cmake executable name or path.
	CMake string `mapstructure:"cmake" yaml:"cmake"`

	// IncludeLocalRepos permits directory entries in ManifestRepos. When
	// false, a local path in the repo list is a manifest-retrieval
	// failure.
	IncludeLocalRepos bool `mapstructure:"include_local_repos" yaml:"include_local_repos"`

	// Debug retains staging directories, writes a debug copy of the
	// merged manifest, and appends the *DebugOptions to the build
	// commands.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// Report emits a markdown activity report per operation.
	Report bool `mapstructure:"report" yaml:"report"`

	// Variables are caller-supplied CMake cache variables. They override
	// the built-in defaults and rank above rockspec variables.
	Variables map[string]string `mapstructure:"variables" yaml:"variables"`
}

// Load resolves the configuration for the given deploy root. An empty
// root selects the default "_install" directory relative to the working
// directory, mirroring the upstream layout.
func Load(rootDir string) (*Config, error) {
	v := viper.New()

	if rootDir == "" {
		rootDir = "_install"
	}

	v.SetDefault("root_dir", rootDir)
	v.SetDefault("temp_dir", "")
	v.SetDefault("manifest_repos", []string{"https://github.com/LuaDist2/manifest.git"})
	v.SetDefault("manifest_filename", "dist.manifest")
	v.SetDefault("platform", defaultPlatform())
	v.SetDefault("cache_command", "cmake -C cache.cmake")
	v.SetDefault("cache_debug_options", "-DCMAKE_VERBOSE_MAKEFILE=true -DCMAKE_BUILD_TYPE=Debug")
	v.SetDefault("build_command", "cmake --build . --target install --clean-first")
	v.SetDefault("build_debug_options", "")
	v.SetDefault("cmake", "cmake")
	v.SetDefault("include_local_repos", true)
	v.SetDefault("debug", false)
	v.SetDefault("report", false)
	v.SetDefault("variables", map[string]string{})

	v.SetConfigName("luadist")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(rootDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, err
		}
	}

	v.SetEnvPrefix("LUADIST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(cfg.RootDir, "tmp")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the pipeline cannot tolerate being empty.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		return &errors.ValidationError{Type: "Config", Field: "RootDir", Reason: "must not be empty"}
	}
	if c.ManifestFilename == "" {
		return &errors.ValidationError{Type: "Config", Field: "ManifestFilename", Reason: "must not be empty"}
	}
	if len(c.Platform) == 0 {
		return &errors.ValidationError{Type: "Config", Field: "Platform", Reason: "must name at least one platform tag"}
	}
	if strings.ContainsAny(c.ManifestFilename, "/\\") {
		return &errors.ValidationError{Type: "Config", Field: "ManifestFilename", Reason: "must be a bare file name", Value: c.ManifestFilename}
	}
	return nil
}

// ManifestPath returns the installed-package database path under the
// deploy root.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.RootDir, c.ManifestFilename)
}

// defaultPlatform derives the active platform tag list from the host OS,
// most specific tag first.
func defaultPlatform() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"win32", "windows"}
	case "darwin":
		return []string{"macosx", "unix"}
	default:
		return []string{runtime.GOOS, "unix"}
	}
}
