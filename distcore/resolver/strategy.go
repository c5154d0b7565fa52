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

package resolver

import (
	"dirpx.dev/luadist/distcore/model/rock"
)

// InterpreterName is the package name of the host interpreter the
// fallback strategy pivots on.
const InterpreterName = "lua"

// InterpreterFallback retries a failed resolution across interpreter
// versions.
//
// Conceptually the resolver has exactly one fallback axis: when the
// greedy pass fails and no interpreter is installed, the failure is often
// an interpreter-version conflict between targets (one rock wanting
// "lua == 5.2.*" while the newest lua is 5.3). Rather than solving
// constraints globally, the strategy re-asks the same greedy question
// under each interpreter version present in the manifest, newest first,
// seeded as a provisional package:
//
//  1. resolve(targets, installed) — on success, done.
//  2. If installed already contains the interpreter: return the original
//     error. The user pinned it; silently proposing a different one would
//     fight their choice.
//  3. For each manifest version v of the interpreter, newest to oldest:
//     resolve(targets, installed, provisional lua v). The first success
//     materializes lua v as a real (non-provisional) package PREPENDED to
//     the result, so it installs before everything that needs it.
//  4. On exhaustion, return the ORIGINAL error — the per-version errors
//     describe the wrong question.
//
// Each retry is a different query, not a retry of the same one; no other
// layer of luadist retries anything.
type InterpreterFallback struct {
	resolver *Resolver
	manifest *rock.Manifest
}

// NewInterpreterFallback returns the fallback strategy over the given
// resolver and the manifest its candidates come from.
func NewInterpreterFallback(r *Resolver, manifest *rock.Manifest) *InterpreterFallback {
	return &InterpreterFallback{resolver: r, manifest: manifest}
}

// Resolve runs the strategy described on the type.
func (f *InterpreterFallback) Resolve(targets []rock.Ref, installed *rock.InstalledSet) ([]*rock.Package, error) {
	out, origErr := f.resolver.Resolve(targets, installed, nil)
	if origErr == nil {
		return out, nil
	}

	if installed.Find(InterpreterName) != nil {
		return nil, origErr
	}

	for _, v := range f.manifest.Versions(InterpreterName) {
		provisional := rock.New(InterpreterName, v)
		provisional.Provisional = true

		result, err := f.resolver.Resolve(targets, installed, provisional)
		if err != nil {
			continue
		}

		materialized := rock.New(InterpreterName, v)
		return append([]*rock.Package{materialized}, result...), nil
	}

	return nil, origErr
}
