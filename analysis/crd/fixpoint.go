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
	"github.com/awslabs/ar-go-crd/analysis/ir"
	"github.com/awslabs/ar-go-crd/internal/graphutil"
)

// Propagate sweeps over all the defined functions until a sweep does not change the tainted set.
// The functions are visited callees first, following the strongly connected components of the call graph; the
// order only changes the number of sweeps, not the result.
func (s *AnalyzerState) Propagate() {
	s.propagateInOrder(s.sweepOrder())
}

func (s *AnalyzerState) propagateInOrder(order []*ir.Function) {
	for {
		changed := false
		for _, f := range order {
			if s.propagateInFunction(f) {
				changed = true
			}
		}
		s.Sweeps = append(s.Sweeps, len(s.Tainted))
		s.Logger.Debugf("sweep %d: %d tainted values\n", len(s.Sweeps), len(s.Tainted))
		if !changed {
			return
		}
	}
}

// sweepOrder returns the defined, non-intrinsic functions of the module, callees first.
func (s *AnalyzerState) sweepOrder() []*ir.Function {
	var defined []*ir.Function
	for _, f := range s.Module.Functions() {
		if !f.IsDeclaration() && !f.IsIntrinsic() {
			defined = append(defined, f)
		}
	}
	successors := func(f *ir.Function) []*ir.Function {
		var result []*ir.Function
		for _, g := range s.CallGraph.Successors(f) {
			if !g.IsDeclaration() && !g.IsIntrinsic() {
				result = append(result, g)
			}
		}
		return result
	}
	sccs := graphutil.StronglyConnectedComponents(defined, successors)
	s.Logger.Debugf("%d functions in %d strongly connected components\n", len(defined), len(sccs))
	order := make([]*ir.Function, 0, len(defined))
	for _, scc := range sccs {
		order = append(order, scc...)
	}
	return order
}
