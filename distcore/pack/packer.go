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

package pack

import (
	"io"
	"os"
	"path/filepath"

	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/model/rock"
	"dirpx.dev/luadist/distcore/rockspec"
)

// Packer exports installed packages out of a deploy root.
type Packer struct {
	rootDir  string
	platform []string
}

// NewPacker returns a Packer for the deploy root and active platform.
func NewPacker(rootDir string, platform []string) *Packer {
	return &Packer{rootDir: rootDir, platform: platform}
}

// Pack exports every referenced package into destination. Each export is
// a directory "<name> <version>_<dephash>" holding the package's files in
// their deploy-relative layout plus the exported rockspec.
//
// The directory names of successful exports are returned in input order.
// The first failing reference aborts the operation; earlier exports
// remain on disk.
func (p *Packer) Pack(refs []rock.Ref, installed *rock.InstalledSet, destination string) ([]string, error) {
	var out []string
	for _, ref := range refs {
		dir, err := p.packOne(ref, installed, destination)
		if err != nil {
			return nil, err
		}
		out = append(out, dir)
	}
	return out, nil
}

func (p *Packer) packOne(ref rock.Ref, installed *rock.InstalledSet, destination string) (string, error) {
	pkg := installed.FindRef(ref)
	if pkg == nil {
		return "", &errors.PackError{Package: ref.String(), Reason: "no matching installed package"}
	}

	deps, err := RuntimeDeps(pkg, installed, p.platform)
	if err != nil {
		return "", err
	}
	depHash, err := DepHash(p.platform, deps)
	if err != nil {
		return "", &errors.PackError{Package: pkg.ID(), Reason: err.Error()}
	}

	exported := ExportedVersion(pkg.Version, depHash)
	dirName := pkg.Name + " " + exported.String()
	dir := filepath.Join(destination, dirName)

	for _, rel := range pkg.Files {
		src := filepath.Join(p.rootDir, filepath.FromSlash(rel))
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			return "", &errors.PackError{Package: pkg.ID(), Reason: "missing installed file " + rel}
		}
	}

	spec := exportedSpec(pkg)
	spec.Version = exported
	spec.Files = append([]string(nil), pkg.Files...)
	spec.Description.BuiltOn = pkg.BuiltOnPlatform
	deps2, err := ExportedDependencies(pkg.BinDependencies)
	if err != nil {
		return "", err
	}
	spec.Dependencies = deps2

	if _, err := rockspec.Write(dir, spec); err != nil {
		return "", &errors.PackError{Package: pkg.ID(), Reason: err.Error()}
	}
	return dirName, nil
}

// exportedSpec starts the exported rockspec from the installed spec when
// one is attached, or from the bare package identity otherwise.
func exportedSpec(pkg *rock.Package) *rock.Rockspec {
	if pkg.Spec != nil {
		return pkg.Spec.Clone()
	}
	return &rock.Rockspec{Package: pkg.Name, Version: pkg.Version}
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
