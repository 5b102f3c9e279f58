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
)

// propagateInFunction runs one sweep of the propagation rules over the instructions of f, in order.
// Returns true if the tainted set changed.
func (s *AnalyzerState) propagateInFunction(f *ir.Function) bool {
	changed := false
	for _, b := range f.Blocks() {
		for _, i := range b.Instructions() {
			if s.propagateInInstruction(f, i) {
				changed = true
			}
		}
	}
	return changed
}

func (s *AnalyzerState) propagateInInstruction(f *ir.Function, instr ir.Instruction) bool {
	t := s.Tainted
	switch i := instr.(type) {
	case *ir.Cast:
		if i.Op.IsReinterpretation() {
			return t.flowBoth(i, i.Source())
		}
	case *ir.Load:
		return t.flowTo(i.Pointer(), i)
	case *ir.Store:
		changed := t.flowBoth(i.StoredValue(), i.Pointer())
		if t.Has(i.StoredValue()) || t.Has(i.Pointer()) {
			changed = t.Add(i) || changed
		}
		return changed
	case *ir.GetElementPtr:
		changed := t.flowTo(i.Base(), i)
		if s.isVaListAccess(f, i) {
			changed = t.Add(i) || changed
		}
		return changed
	case ir.CallInstruction:
		changed := false
		for _, callee := range s.CallGraph.Callees(i) {
			if s.HandleCallSite(i, callee) {
				changed = true
			}
			if s.returnsTaint(callee) && t.Add(i) {
				changed = true
			}
		}
		return changed
	case *ir.Ret:
		v := i.ReturnValue()
		if v == nil || !t.Has(v) {
			return false
		}
		changed := false
		if !s.taintReturning[f] {
			s.taintReturning[f] = true
			s.Logger.Tracef("%s returns tainted values\n", f.Name())
			changed = true
		}
		for _, r := range s.returns[f] {
			changed = t.Add(r) || changed
		}
		return t.Add(i) || changed
	case *ir.Phi:
		changed := false
		for k := 0; k < i.NumIncoming(); k++ {
			changed = t.flowTo(i.IncomingValue(k), i) || changed
		}
		for k := 0; k < i.NumIncoming(); k++ {
			changed = t.flowTo(i, i.IncomingValue(k)) || changed
		}
		return changed
	case *ir.Select:
		changed := t.flowTo(i, i.TrueValue())
		return t.flowTo(i, i.FalseValue()) || changed
	case *ir.ExtractElement:
		return t.flowTo(i.Container(), i)
	case *ir.ExtractValue:
		return t.flowTo(i.Container(), i)
	case *ir.InsertElement:
		changed := t.flowTo(i.Element(), i.Container())
		return t.flowTo(i.Element(), i) || changed
	case *ir.InsertValue:
		changed := t.flowTo(i.Element(), i.Container())
		return t.flowTo(i.Element(), i) || changed
	}
	return false
}

// returnsTaint returns true if the result of a call to callee is tainted: callee returns tainted values, and its
// return type is a pointer or is sensitive.
func (s *AnalyzerState) returnsTaint(callee *ir.Function) bool {
	if !s.taintReturning[callee] {
		return false
	}
	ret := callee.ReturnType()
	return ir.IsPointer(ret) || s.Classifier.IsSensitive(ret, "")
}

// isVaListAccess returns true if gep computes a byte address inside a variadic argument list of f, and f receives
// tainted variadic arguments.
func (s *AnalyzerState) isVaListAccess(f *ir.Function, gep *ir.GetElementPtr) bool {
	if !s.taintedVarArgs[f] || !ir.IsBytePointer(gep.Type()) {
		return false
	}
	st, ok := gep.SourceElem.(*ir.StructType)
	return ok && !st.IsLiteral() && s.Config.IsVaListType(st.Name())
}
