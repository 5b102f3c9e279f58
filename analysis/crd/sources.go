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

// SeedSources adds the initial taint sources to the tainted set:
//   - the globals of sensitive type that are used;
//   - the instructions of sensitive type that are used;
//   - the operands of sensitive type, classified with the type tag of their instruction, and the stores that have
//     such an operand;
//   - the value and the destination of a store through a bitcast of a pointer to a sensitive pointer.
//
// It also records the values returned by every function.
func (s *AnalyzerState) SeedSources() {
	for _, g := range s.Module.Globals() {
		if len(g.Uses()) > 0 && s.Classifier.IsSensitive(g.Type(), "") {
			s.addSource(g, "global")
		}
	}
	s.Module.ForEachInstruction(s.seedInstruction)
	s.Sources = s.Tainted.Clone()
}

func (s *AnalyzerState) seedInstruction(i ir.Instruction) {
	if ret, ok := i.(*ir.Ret); ok {
		if v := ret.ReturnValue(); v != nil {
			s.returns[ret.Parent()] = append(s.returns[ret.Parent()], v)
		}
	}

	if len(i.Uses()) > 0 && s.Classifier.IsSensitive(i.Type(), "") {
		s.addSource(i, "instruction")
	}

	_, isStore := i.(*ir.Store)
	for _, op := range i.Operands() {
		if s.Classifier.IsSensitive(op.Type(), i.TypeTag()) {
			s.addSource(op, "operand")
			if isStore {
				s.addSource(i, "store")
			}
		}
	}

	if store, ok := i.(*ir.Store); ok {
		s.seedHiddenPointerStore(store)
	}
}

// seedHiddenPointerStore seeds the stores writing a pointer through a cast of a pointer to a sensitive pointer.
func (s *AnalyzerState) seedHiddenPointerStore(store *ir.Store) {
	cast, ok := store.Pointer().(*ir.Cast)
	if !ok || cast.Op != ir.BitCast || !ir.IsPointer(store.StoredValue().Type()) {
		return
	}
	pointee := ir.ElemType(cast.SrcType())
	if ir.IsPointer(pointee) && s.Classifier.IsSensitive(pointee, "") {
		s.addSource(store.StoredValue(), "stored value")
		s.addSource(cast, "store destination")
	}
}

func (s *AnalyzerState) addSource(v ir.Value, kind string) {
	if s.Tainted.Add(v) && s.Logger.LogsTrace() {
		s.Logger.Tracef("source (%s): %s\n", kind, v)
	}
}
