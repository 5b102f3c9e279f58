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

package crd

import (
	"sort"

	"github.com/awslabs/ar-go-crd/analysis/ir"
	"golang.org/x/exp/maps"
)

// A ValueSet is a set of IR values. The sets of the analysis only grow.
type ValueSet map[ir.Value]bool

// Add adds v to the set and returns true if it was not already present.
func (s ValueSet) Add(v ir.Value) bool {
	if s[v] {
		return false
	}
	s[v] = true
	return true
}

// Has returns true if v is in the set.
func (s ValueSet) Has(v ir.Value) bool { return s[v] }

// Clone returns a copy of the set.
func (s ValueSet) Clone() ValueSet { return maps.Clone(s) }

// Ordered returns the values of the set in module order. Values that do not appear in the numbering (constants)
// come last, ordered by their textual form.
func (s ValueSet) Ordered(index map[ir.Value]int) []ir.Value {
	values := maps.Keys(s)
	sort.Slice(values, func(i, j int) bool {
		ki, iok := index[values[i]]
		kj, jok := index[values[j]]
		switch {
		case iok && jok:
			return ki < kj
		case iok != jok:
			return iok
		default:
			return values[i].String() < values[j].String()
		}
	})
	return values
}

// flowBoth adds b if a is in the set and a if b is in the set. Returns true if the set changed.
func (s ValueSet) flowBoth(a, b ir.Value) bool {
	switch {
	case s[a]:
		return s.Add(b)
	case s[b]:
		return s.Add(a)
	}
	return false
}

// flowTo adds to if from is in the set. Returns true if the set changed.
func (s ValueSet) flowTo(from, to ir.Value) bool {
	if s[from] {
		return s.Add(to)
	}
	return false
}
