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
	"github.com/yourbasic/graph"
)

// StronglyConnectedComponents computes the strongly connected components (SCC) of the graph of generic nodes T
// reachable from nodes.
// Successors returns a slice containing the targets of directed edges out from the given node.
// sccs is a slice of slices containing the nodes in each SCC. The order within the SCC is arbitrary.
// The order of SCCs is toposorted so that successors appear first; i.e. if the graph is a tree then
// in order from leaves towards the root. For bottom-up algorithms over a call graph, the result is in
// the desired order to minimize recomputation.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) (sccs [][]T) {
	index := map[T]int{}
	var labels []T
	var edges [][2]int
	var number func(v T) int
	number = func(v T) int {
		if i, ok := index[v]; ok {
			return i
		}
		i := len(labels)
		index[v] = i
		labels = append(labels, v)
		for _, w := range successors(v) {
			j := number(w)
			edges = append(edges, [2]int{i, j})
		}
		return i
	}
	for _, v := range nodes {
		number(v)
	}

	g := graph.New(len(labels))
	for _, e := range edges {
		g.Add(e[0], e[1])
	}
	components := graph.StrongComponents(g)

	// order the components with a topological sort of the condensed graph, callers first
	componentOf := make([]int, len(labels))
	for c, component := range components {
		for _, v := range component {
			componentOf[v] = c
		}
	}
	condensed := graph.New(len(components))
	for _, e := range edges {
		if cf, ct := componentOf[e[0]], componentOf[e[1]]; cf != ct {
			condensed.Add(cf, ct)
		}
	}
	order, ok := graph.TopSort(condensed)
	if !ok {
		panic("condensed graph of strongly connected components has a cycle")
	}

	sccs = make([][]T, 0, len(components))
	for k := len(order) - 1; k >= 0; k-- {
		component := components[order[k]]
		scc := make([]T, len(component))
		for i, v := range component {
			scc[i] = labels[v]
		}
		sccs = append(sccs, scc)
	}
	return sccs
}
