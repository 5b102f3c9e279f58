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
	"golang.org/x/tools/container/intsets"
)

// A FunctionArena numbers a list of functions, so that sets of functions are sets of integers.
type FunctionArena struct {
	functions []*ir.Function
	index     map[*ir.Function]int
}

// NewFunctionArena returns an arena containing the functions, in order.
func NewFunctionArena(functions []*ir.Function) *FunctionArena {
	a := &FunctionArena{index: map[*ir.Function]int{}}
	for _, f := range functions {
		a.add(f)
	}
	return a
}

func (a *FunctionArena) add(f *ir.Function) int {
	if i, ok := a.index[f]; ok {
		return i
	}
	i := len(a.functions)
	a.functions = append(a.functions, f)
	a.index[f] = i
	return i
}

// Len returns the number of functions in the arena.
func (a *FunctionArena) Len() int { return len(a.functions) }

// Functions returns the functions of the arena.
func (a *FunctionArena) Functions() []*ir.Function { return a.functions }

// A CandidateSet is a set of functions of an arena, which can be the target of an indirect call.
type CandidateSet struct {
	arena   *FunctionArena
	indices intsets.Sparse
}

func newCandidateSet(arena *FunctionArena) *CandidateSet {
	return &CandidateSet{arena: arena}
}

func (s *CandidateSet) insert(i int) {
	s.indices.Insert(i)
}

// Contains returns true if f is a candidate.
func (s *CandidateSet) Contains(f *ir.Function) bool {
	i, ok := s.arena.index[f]
	return ok && s.indices.Has(i)
}

// Len returns the number of candidates.
func (s *CandidateSet) Len() int { return s.indices.Len() }

// Functions returns the candidates in arena order.
func (s *CandidateSet) Functions() []*ir.Function {
	var result []*ir.Function
	for _, i := range s.indices.AppendTo(nil) {
		result = append(result, s.arena.functions[i])
	}
	return result
}

// CallGraph holds the targets of the call sites of a module. Indirect call targets are an over-approximation
// computed from the types of the call sites.
type CallGraph struct {
	// AddressTaken contains the functions that may be called indirectly.
	AddressTaken *FunctionArena

	// DirectCalls maps the call sites whose callee is a function to that function.
	DirectCalls map[ir.CallInstruction]*ir.Function

	// Indirect maps the callee operand of indirect call sites to the candidate targets.
	Indirect map[ir.Value]*CandidateSet

	// IndirectSites lists the indirect call sites, in module order.
	IndirectSites []ir.CallInstruction

	// Enumerations counts the number of times the address-taken functions were enumerated to resolve a callee.
	Enumerations int

	callers map[*ir.Function][]ir.CallInstruction
}

// BuildCallGraph resolves the call sites of every defined, non-intrinsic function of m.
func BuildCallGraph(m *ir.Module, te *TypeEquivalence) *CallGraph {
	var taken []*ir.Function
	for _, f := range m.Functions() {
		if f.HasAddressTaken() {
			taken = append(taken, f)
		}
	}
	cg := &CallGraph{
		AddressTaken: NewFunctionArena(taken),
		DirectCalls:  map[ir.CallInstruction]*ir.Function{},
		Indirect:     map[ir.Value]*CandidateSet{},
		callers:      map[*ir.Function][]ir.CallInstruction{},
	}
	for _, f := range m.Functions() {
		if f.IsDeclaration() || f.IsIntrinsic() {
			continue
		}
		for _, b := range f.Blocks() {
			for _, i := range b.Instructions() {
				if site, ok := i.(ir.CallInstruction); ok {
					cg.resolve(site, te)
				}
			}
		}
	}
	return cg
}

func (cg *CallGraph) resolve(site ir.CallInstruction, te *TypeEquivalence) {
	if f := site.CalledFunction(); f != nil {
		cg.DirectCalls[site] = f
		cg.callers[f] = append(cg.callers[f], site)
		return
	}
	cg.IndirectSites = append(cg.IndirectSites, site)
	callee := site.Callee()
	candidates, ok := cg.Indirect[callee]
	if !ok {
		candidates = newCandidateSet(cg.AddressTaken)
		if f := castedFunction(callee); f != nil {
			candidates.insert(cg.AddressTaken.add(f))
		} else {
			cg.Enumerations++
			for i, f := range cg.AddressTaken.functions {
				if IsTypeMatch(te, site, f) {
					candidates.insert(i)
				}
			}
		}
		cg.Indirect[callee] = candidates
	}
	for _, f := range candidates.Functions() {
		cg.callers[f] = append(cg.callers[f], site)
	}
}

// castedFunction returns the function if v is a bitcast of a function.
func castedFunction(v ir.Value) *ir.Function {
	switch v := v.(type) {
	case *ir.Cast:
		if v.Op == ir.BitCast {
			f, _ := v.Source().(*ir.Function)
			return f
		}
	case *ir.ConstExpr:
		if v.Op == ir.ExprBitCast {
			f, _ := v.Base().(*ir.Function)
			return f
		}
	}
	return nil
}

// IsTypeMatch returns true if f can be the target of the call site: the return type of f is equal to the type of the
// call, and the types of the formal parameters of f are pairwise equal to the types of the actual arguments.
func IsTypeMatch(te *TypeEquivalence, site ir.CallInstruction, f *ir.Function) bool {
	if !te.IsEqual(f.ReturnType(), site.Type()) {
		return false
	}
	params, args := f.Params(), site.Args()
	if len(params) != len(args) {
		return false
	}
	for i, p := range params {
		if !te.IsEqual(p.Type(), args[i].Type()) {
			return false
		}
	}
	return true
}

// Callees returns the functions that can be called at site.
func (cg *CallGraph) Callees(site ir.CallInstruction) []*ir.Function {
	if f, ok := cg.DirectCalls[site]; ok {
		return []*ir.Function{f}
	}
	if c, ok := cg.Indirect[site.Callee()]; ok {
		return c.Functions()
	}
	return nil
}

// Callers returns the call sites that can call f, direct ones and indirect ones.
func (cg *CallGraph) Callers(f *ir.Function) []ir.CallInstruction { return cg.callers[f] }

// Successors returns the functions called in f, without duplicates.
func (cg *CallGraph) Successors(f *ir.Function) []*ir.Function {
	var result []*ir.Function
	seen := map[*ir.Function]bool{}
	for _, b := range f.Blocks() {
		for _, i := range b.Instructions() {
			site, ok := i.(ir.CallInstruction)
			if !ok {
				continue
			}
			for _, g := range cg.Callees(site) {
				if !seen[g] {
					seen[g] = true
					result = append(result, g)
				}
			}
		}
	}
	return result
}
