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

package ordered_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"dirpx.dev/luadist/distcore/ordered"
)

func TestMap_InsertionOrder(t *testing.T) {
	m := ordered.New[string, int]()
	m.Set("c", 3)
	m.Set("a", 1)
	m.Set("b", 2)

	if diff := cmp.Diff([]string{"c", "a", "b"}, m.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 1, 2}, m.Values()); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestMap_OverwriteKeepsPosition(t *testing.T) {
	m := ordered.New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 10)

	if diff := cmp.Diff([]string{"a", "b"}, m.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if v, _ := m.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d, want 10", v)
	}
}

func TestMap_Delete(t *testing.T) {
	m := ordered.New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)
	m.Delete("b")
	m.Delete("missing")

	if diff := cmp.Diff([]string{"a", "c"}, m.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if m.Has("b") {
		t.Errorf("Has(b) = true after Delete")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestMap_RangeEarlyStop(t *testing.T) {
	m := ordered.New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	var visited []string
	m.Range(func(k string, _ int) bool {
		visited = append(visited, k)
		return k != "b"
	})

	if diff := cmp.Diff([]string{"a", "b"}, visited); diff != "" {
		t.Errorf("Range() visited mismatch (-want +got):\n%s", diff)
	}
}

func TestMap_CloneIsIndependent(t *testing.T) {
	m := ordered.New[string, int]()
	m.Set("a", 1)

	c := m.Clone()
	c.Set("b", 2)
	c.Delete("a")

	if !m.Has("a") || m.Has("b") {
		t.Errorf("Clone() shares state with original")
	}
}
