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

// Package report accumulates a per-operation activity log and renders it
// as a markdown document.
//
// Reporting is best-effort and opt-in: when disabled every method is a
// cheap no-op, and a failure to write the rendered report never fails the
// operation it describes.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Reporter collects the steps of one operation.
type Reporter struct {
	enabled bool
	op      string
	lines   []string
}

// New returns a Reporter for the named operation. When enabled is false
// the reporter records nothing.
func New(enabled bool, op string) *Reporter {
	return &Reporter{enabled: enabled, op: op}
}

// Step records a pipeline step.
func (r *Reporter) Step(format string, args ...any) {
	if !r.enabled {
		return
	}
	r.lines = append(r.lines, "- "+fmt.Sprintf(format, args...))
}

// Warn records a warning, rendered distinctly from ordinary steps.
func (r *Reporter) Warn(format string, args ...any) {
	if !r.enabled {
		return
	}
	r.lines = append(r.lines, "- **warning:** "+fmt.Sprintf(format, args...))
}

// Fail records the terminal failure of the operation.
func (r *Reporter) Fail(err error) {
	if !r.enabled || err == nil {
		return
	}
	r.lines = append(r.lines, "- **failed:** "+err.Error())
}

// Flush renders the report into dir as "report.md". Disabled or empty
// reporters write nothing. Write failures are swallowed; the report is an
// artifact of the operation, not a participant in it.
func (r *Reporter) Flush(dir string) {
	if !r.enabled || len(r.lines) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# luadist %s\n\n", r.op)
	for _, line := range r.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "report.md"), []byte(b.String()), 0o644)
}
