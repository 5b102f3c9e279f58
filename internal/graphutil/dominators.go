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
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"
)

// ImmediateDominators computes the immediate dominator of every node of a flow graph with nodes 0..n-1 and the
// given entry. idom[v] is the immediate dominator of v, or -1 when v is the entry or is unreachable from it.
func ImmediateDominators(n int, entry int, successors func(int) []int) (idom []int) {
	g := simple.NewDirectedGraph()
	for v := 0; v < n; v++ {
		g.AddNode(simple.Node(v))
	}
	for v := 0; v < n; v++ {
		for _, w := range successors(v) {
			// self loops never change dominance, and the simple graph rejects them
			if w != v && !g.HasEdgeFromTo(int64(v), int64(w)) {
				g.SetEdge(simple.Edge{F: simple.Node(v), T: simple.Node(w)})
			}
		}
	}
	tree := flow.Dominators(simple.Node(entry), g)
	idom = make([]int, n)
	for v := 0; v < n; v++ {
		idom[v] = -1
		if v == entry {
			continue
		}
		if d := tree.DominatorOf(int64(v)); d != nil {
			idom[v] = int(d.ID())
		}
	}
	return idom
}
