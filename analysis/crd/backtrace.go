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

// Backtrace computes the control-related set: the tainted values, and the values they depend on.
//
// The dependencies of a tainted instruction other than a call are its operands and, for a phi, the condition of the
// branch or switch terminating the immediate dominator of its block. The dependencies are closed backwards through
// operands; the closure includes allocations, calls and loads but does not expand them. Arguments found in the
// closure are resolved to the actual arguments at the call sites of their function, which are closed in turn,
// until no new argument is found.
func (s *AnalyzerState) Backtrace() {
	result := s.Tainted.Clone()
	work := ValueSet{}
	idoms := map[*ir.Function]map[*ir.BasicBlock]*ir.BasicBlock{}

	for _, v := range s.Tainted.Ordered(s.Index()) {
		instr, ok := v.(ir.Instruction)
		if !ok {
			continue
		}
		if _, isCall := instr.(ir.CallInstruction); isCall {
			continue
		}
		if phi, isPhi := instr.(*ir.Phi); isPhi {
			f := phi.Parent()
			if _, ok := idoms[f]; !ok {
				idoms[f] = immediateDominators(f)
			}
			if dom := idoms[f][phi.Block()]; dom != nil {
				addConditions(dom.Terminator(), work)
			}
		}
		for _, op := range instr.Operands() {
			if !result.Has(op) && isTraceable(op) {
				work.Add(op)
			}
		}
	}

	resolved := map[*ir.Argument]bool{}
	for rounds := 1; len(work) > 0; rounds++ {
		closure := backwardClosure(work)
		next := ValueSet{}
		for _, v := range closure.Ordered(s.Index()) {
			result.Add(v)
			arg, ok := v.(*ir.Argument)
			if !ok || resolved[arg] {
				continue
			}
			resolved[arg] = true
			for _, site := range s.CallGraph.Callers(arg.Parent()) {
				if actuals := site.Args(); arg.Index() < len(actuals) && isTraceable(actuals[arg.Index()]) {
					next.Add(actuals[arg.Index()])
				}
			}
		}
		s.Logger.Debugf("backtrace round %d: %d values, %d actual arguments to trace\n", rounds, len(closure),
			len(next))
		work = next
	}
	s.ControlRelated = result
}

// addConditions adds to work the values deciding the successor of the terminator: the condition of a conditional
// branch and the first operand of that condition, or the condition of a switch.
func addConditions(term ir.Instruction, work ValueSet) {
	switch t := term.(type) {
	case *ir.CondBr:
		if isTraceable(t.Cond()) {
			work.Add(t.Cond())
		}
		if cond, ok := t.Cond().(ir.Instruction); ok && len(cond.Operands()) > 0 && isTraceable(cond.Operands()[0]) {
			work.Add(cond.Operands()[0])
		}
	case *ir.Switch:
		if isTraceable(t.Cond()) {
			work.Add(t.Cond())
		}
	}
}

// backwardClosure returns the values of work and the values they depend on through operands, stopping at
// allocations, calls and loads.
func backwardClosure(work ValueSet) ValueSet {
	closure := work.Clone()
	queue := make([]ir.Value, 0, len(work))
	for v := range work {
		queue = append(queue, v)
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		instr, ok := v.(ir.Instruction)
		if !ok {
			continue
		}
		switch instr.(type) {
		case *ir.Alloca, *ir.Call, *ir.Invoke, *ir.Load:
			continue
		}
		for _, op := range instr.Operands() {
			if !closure.Has(op) && isTraceable(op) {
				closure.Add(op)
				queue = append(queue, op)
			}
		}
	}
	return closure
}

// isTraceable returns false for the values that carry no dependency: literal constants and functions.
func isTraceable(v ir.Value) bool {
	if _, isFunc := v.(*ir.Function); isFunc {
		return false
	}
	return !ir.IsLiteralConstant(v)
}

// immediateDominators returns the immediate dominator of each reachable block of f, except the entry block.
func immediateDominators(f *ir.Function) map[*ir.BasicBlock]*ir.BasicBlock {
	blocks := f.Blocks()
	index := make(map[*ir.BasicBlock]int, len(blocks))
	for i, b := range blocks {
		index[b] = i
	}
	idom := graphutil.ImmediateDominators(len(blocks), 0, func(i int) []int {
		var succs []int
		for _, b := range blocks[i].Succs() {
			succs = append(succs, index[b])
		}
		return succs
	})
	result := map[*ir.BasicBlock]*ir.BasicBlock{}
	for i, d := range idom {
		if d >= 0 {
			result[blocks[i]] = blocks[d]
		}
	}
	return result
}
