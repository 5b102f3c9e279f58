// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestImmediateDominators(t *testing.T) {
	tests := []struct {
		name  string
		graph intGraph
		n     int
		want  []int
	}{
		{
			name:  "diamond",
			graph: intGraph{0: {1, 2}, 1: {3}, 2: {3}, 3: {}},
			n:     4,
			want:  []int{-1, 0, 0, 0},
		},
		{
			name:  "loop with self edge",
			graph: intGraph{0: {1}, 1: {1, 2}, 2: {1, 3}, 3: {}},
			n:     4,
			want:  []int{-1, 0, 1, 2},
		},
		{
			name:  "unreachable node",
			graph: intGraph{0: {1}, 1: {}, 2: {1}},
			n:     3,
			want:  []int{-1, 0, -1},
		},
		{
			name:  "chain",
			graph: intGraph{0: {1}, 1: {2}, 2: {3}, 3: {}},
			n:     4,
			want:  []int{-1, 0, 1, 2},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := ImmediateDominators(test.n, 0, succFunc(test.graph))
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected dominators (-want +got):\n%s", diff)
			}
		})
	}
}
