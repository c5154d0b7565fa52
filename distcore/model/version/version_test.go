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

package version_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"dirpx.dev/luadist/distcore/model/version"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    version.Version
		wantErr bool
	}{
		{
			name:  "major_only",
			input: "5",
			want:  version.Version{Components: []int{5}, Raw: "5"},
		},
		{
			name:  "two_components",
			input: "5.3",
			want:  version.Version{Components: []int{5, 3}, Raw: "5.3"},
		},
		{
			name:  "three_components_with_revision",
			input: "1.8.0-1",
			want:  version.Version{Components: []int{1, 8, 0}, Revision: 1, Raw: "1.8.0-1"},
		},
		{
			name:  "four_components",
			input: "2.0.0.1",
			want:  version.Version{Components: []int{2, 0, 0, 1}, Raw: "2.0.0.1"},
		},
		{
			name:  "with_hash_tag",
			input: "1.8.0-1_ab12cd",
			want:  version.Version{Components: []int{1, 8, 0}, Revision: 1, Hash: "ab12cd", Raw: "1.8.0-1_ab12cd"},
		},
		{
			name:  "hash_without_revision",
			input: "2.1_deadbeef",
			want:  version.Version{Components: []int{2, 1}, Hash: "deadbeef", Raw: "2.1_deadbeef"},
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "non_numeric_component",
			input:   "1.x",
			wantErr: true,
		},
		{
			name:    "non_numeric_revision",
			input:   "1.0-rc1",
			wantErr: true,
		},
		{
			name:    "empty_hash",
			input:   "1.0_",
			wantErr: true,
		},
		{
			name:    "non_hex_hash",
			input:   "1.0_xyz",
			wantErr: true,
		},
		{
			name:    "trailing_dot",
			input:   "1.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := version.Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "equal_simple", a: "1.0", b: "1.0", want: 0},
		{name: "missing_tail_is_zero", a: "1.0", b: "1.0.0", want: 0},
		{name: "major_decides", a: "2.0", b: "1.9.9", want: 1},
		{name: "minor_decides", a: "5.2", b: "5.3", want: -1},
		{name: "revision_raises", a: "1.0-2", b: "1.0-1", want: 1},
		{name: "absent_revision_is_zero", a: "1.0", b: "1.0-1", want: -1},
		{name: "hash_ignored", a: "1.0-1_ab12", b: "1.0-1", want: 0},
		{name: "deep_components", a: "1.2.3.4", b: "1.2.3", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := version.MustParse(tt.a)
			b := version.MustParse(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := b.Compare(a); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

// TestVersion_TotalOrder checks the trichotomy and transitivity properties
// over a fixed ladder of versions.
func TestVersion_TotalOrder(t *testing.T) {
	ladder := []string{"0.9", "1.0", "1.0-1", "1.0.1", "1.2", "1.10", "2", "2.0.0.1", "10.0"}

	parsed := make([]version.Version, len(ladder))
	for i, s := range ladder {
		parsed[i] = version.MustParse(s)
	}

	for i := range parsed {
		for j := range parsed {
			got := parsed[i].Compare(parsed[j])
			var want int
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			if got != want {
				t.Errorf("Compare(%q, %q) = %d, want %d", ladder[i], ladder[j], got, want)
			}
		}
	}
}

func TestVersion_Canonical(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "strips_trailing_zero", input: "1.0", want: "1"},
		{name: "strips_multiple_trailing_zeros", input: "1.0.0.0", want: "1"},
		{name: "keeps_inner_zero", input: "1.0.1", want: "1.0.1"},
		{name: "keeps_revision", input: "1.8.0-1", want: "1.8-1"},
		{name: "drops_hash", input: "1.8.0-1_ab12", want: "1.8-1"},
		{name: "single_zero", input: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := version.MustParse(tt.input).Canonical()
			if got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVersion_PessimisticBound(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "two_components", input: "5.3", want: "5.4"},
		{name: "trailing_zero", input: "1.8.0", want: "1.9"},
		{name: "single_component", input: "2", want: "3"},
		{name: "all_zero", input: "0.0", want: "1"},
		{name: "revision_dropped", input: "1.2-3", want: "1.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := version.MustParse(tt.input).PessimisticBound()
			want := version.MustParse(tt.want)
			if !got.Equal(want) {
				t.Errorf("PessimisticBound(%q) = %q, want %q", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestVersion_String_RetainsRaw(t *testing.T) {
	for _, s := range []string{"1.0", "1.0.0", "1.8.0-1", "1.8.0-1_ab12cd"} {
		if got := version.MustParse(s).String(); got != s {
			t.Errorf("String() = %q, want original %q", got, s)
		}
	}
}

func TestVersion_JSONRoundTrip(t *testing.T) {
	orig := version.MustParse("1.8.0-1_ab12cd")

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"1.8.0-1_ab12cd"` {
		t.Errorf("Marshal() = %s, want %q", data, `"1.8.0-1_ab12cd"`)
	}

	var back version.Version
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(orig, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestVersion_YAMLRoundTrip(t *testing.T) {
	orig := version.MustParse("5.3.4")

	data, err := yaml.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back version.Version
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !orig.Equal(back) || orig.Raw != back.Raw {
		t.Errorf("round trip = %+v, want %+v", back, orig)
	}
}
