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

// Package rockspec loads and writes rockspec files, bridging between the
// on-disk restricted table format and the rock.Rockspec model.
//
// The field vocabulary is a closed enumeration: a document with an
// unrecognized top-level field is rejected rather than silently accepted,
// so a typo in a hand-written rockspec surfaces at load time instead of
// as a missing dependency three stages later.
package rockspec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/luatable"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/model/version"
)

// Load reads and parses the rockspec file at path.
func Load(path string) (*rock.Rockspec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read rockspec: %w", err)
	}

	spec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return spec, nil
}

// Decode parses rockspec document bytes into the model.
func Decode(data []byte) (*rock.Rockspec, error) {
	root, err := luatable.Parse(data)
	if err != nil {
		return nil, err
	}
	return fromTable(root)
}

func fromTable(root *luatable.Table) (*rock.Rockspec, error) {
	for _, key := range root.Keys() {
		switch key {
		case "package", "version", "source", "description", "dependencies",
			"supported_platforms", "build", "files":
		default:
			return nil, &errors.UnmarshalError{Type: "Rockspec", Reason: "unknown field " + key}
		}
	}

	spec := &rock.Rockspec{
		Package:            root.Str("package"),
		Dependencies:       root.Strings("dependencies"),
		SupportedPlatforms: root.Strings("supported_platforms"),
		Files:              root.Strings("files"),
	}

	v, err := version.Parse(root.Str("version"))
	if err != nil {
		return nil, &errors.UnmarshalError{Type: "Rockspec", Reason: "malformed version " + root.Str("version")}
	}
	spec.Version = v

	if src := root.Sub("source"); src != nil {
		spec.Source = rock.Source{
			URL:    src.Str("url"),
			Tag:    src.Str("tag"),
			Branch: src.Str("branch"),
		}
	}
	if desc := root.Sub("description"); desc != nil {
		spec.Description = rock.Description{
			Summary:  desc.Str("summary"),
			Homepage: desc.Str("homepage"),
			License:  desc.Str("license"),
			BuiltOn:  desc.Str("built_on"),
		}
	}
	if build := root.Sub("build"); build != nil {
		if err := decodeBuild(build, &spec.Build); err != nil {
			return nil, err
		}
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func decodeBuild(t *luatable.Table, out *rock.Build) error {
	bt, err := rock.ParseBuildType(t.Str("type"))
	if err != nil {
		return &errors.UnmarshalError{Type: "Rockspec", Reason: "unknown build type " + t.Str("type")}
	}
	out.Type = bt

	if vars := t.Sub("variables"); vars != nil {
		out.Variables = map[string]string{}
		for _, k := range vars.Keys() {
			out.Variables[k] = vars.Str(k)
		}
	}

	if modules := t.Sub("modules"); modules != nil {
		out.Modules = map[string][]string{}
		for _, name := range modules.Keys() {
			v, _ := modules.Get(name)
			switch entry := v.(type) {
			case string:
				out.Modules[name] = []string{entry}
			case *luatable.Table:
				var files []string
				for _, item := range entry.List() {
					if s, ok := item.(string); ok {
						files = append(files, s)
					}
				}
				out.Modules[name] = files
			default:
				return &errors.UnmarshalError{Type: "Rockspec", Reason: "malformed module entry " + name}
			}
		}
	}

	if install := t.Sub("install"); install != nil {
		out.Install = map[string][]string{}
		for _, subtree := range install.Keys() {
			out.Install[subtree] = install.Strings(subtree)
		}
	}
	return nil
}

// Encode renders a rockspec in the on-disk table format. Field order
// mirrors the hand-written convention: identity first, then source,
// description, dependencies, platform filter, build, files.
func Encode(spec *rock.Rockspec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	root := luatable.NewTable()
	root.Set("package", spec.Package)
	root.Set("version", spec.Version.String())

	if !spec.Source.IsZero() {
		src := luatable.NewTable()
		setIf(src, "url", spec.Source.URL)
		setIf(src, "tag", spec.Source.Tag)
		setIf(src, "branch", spec.Source.Branch)
		root.Set("source", src)
	}

	if spec.Description != (rock.Description{}) {
		desc := luatable.NewTable()
		setIf(desc, "summary", spec.Description.Summary)
		setIf(desc, "homepage", spec.Description.Homepage)
		setIf(desc, "license", spec.Description.License)
		setIf(desc, "built_on", spec.Description.BuiltOn)
		root.Set("description", desc)
	}

	if len(spec.Dependencies) > 0 {
		root.Set("dependencies", spec.Dependencies)
	}
	if len(spec.SupportedPlatforms) > 0 {
		root.Set("supported_platforms", spec.SupportedPlatforms)
	}

	if !spec.IsBinary() {
		build := luatable.NewTable()
		build.Set("type", spec.Build.Type.String())
		if len(spec.Build.Variables) > 0 {
			vars := luatable.NewTable()
			for _, k := range sortedKeys(spec.Build.Variables) {
				vars.Set(k, spec.Build.Variables[k])
			}
			build.Set("variables", vars)
		}
		if len(spec.Build.Modules) > 0 {
			modules := luatable.NewTable()
			for _, name := range sortedListKeys(spec.Build.Modules) {
				files := spec.Build.Modules[name]
				if len(files) == 1 {
					modules.Set(name, files[0])
				} else {
					modules.Set(name, files)
				}
			}
			build.Set("modules", modules)
		}
		if len(spec.Build.Install) > 0 {
			install := luatable.NewTable()
			for _, subtree := range sortedListKeys(spec.Build.Install) {
				install.Set(subtree, spec.Build.Install[subtree])
			}
			build.Set("install", install)
		}
		root.Set("build", build)
	}

	if len(spec.Files) > 0 {
		root.Set("files", spec.Files)
	}

	return luatable.Marshal(root)
}

// Write encodes the rockspec and writes it under dir using the canonical
// "<package>-<version>.rockspec" file name. The full path is returned.
func Write(dir string, spec *rock.Rockspec) (string, error) {
	data, err := Encode(spec)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, spec.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot write rockspec: %w", err)
	}
	return path, nil
}

// FindInDir returns the rockspec file names directly inside dir, sorted
// alphabetically. make relies on the sort to pick its source rockspec
// deterministically.
func FindInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".rockspec") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func setIf(t *luatable.Table, key, value string) {
	if value != "" {
		t.Set(key, value)
	}
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedListKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
