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

package pointsto

import (
	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/crd"
	"github.com/awslabs/ar-go-crd/analysis/ir"
)

var _ crd.PointsToOracle = (*StoreOracle)(nil)

// StoreOracle is a field-insensitive, flow-insensitive inclusion-based points-to analysis on the IR.
//
// The abstract objects are the allocations, the globals and the functions of the module. Each object has a single
// content set: a store through a pointer to the object adds to it, a load through that pointer reads all of it.
// Calls through function pointers are resolved with the points-to sets of their callee operand. Calls to
// declarations return what their arguments point to, and the data movement functions of the configuration copy
// the contents of their second argument to their first.
type StoreOracle struct {
	config   *config.Config
	logger   *config.LogGroup
	index    map[ir.Value]int
	pts      map[ir.Value]crd.ValueSet
	contents map[ir.Value]crd.ValueSet
	// Rounds is the number of passes over the module until the fixpoint.
	Rounds int
}

// NewStoreOracle returns an oracle using the data movement functions of c. A nil configuration or logger is replaced
// by the default ones.
func NewStoreOracle(c *config.Config, logger *config.LogGroup) *StoreOracle {
	if c == nil {
		c = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	return &StoreOracle{config: c, logger: logger}
}

// Initialize computes the points-to sets of every value of m.
func (o *StoreOracle) Initialize(m *ir.Module) error {
	o.index = m.Enumerate()
	o.pts = map[ir.Value]crd.ValueSet{}
	o.contents = map[ir.Value]crd.ValueSet{}
	o.Rounds = 0
	for changed := true; changed; {
		o.Rounds++
		changed = false
		for _, g := range m.Globals() {
			if init := g.Initializer(); init != nil {
				changed = o.union(o.content(g), o.ptsOf(init)) || changed
			}
		}
		m.ForEachInstruction(func(i ir.Instruction) {
			changed = o.visit(i) || changed
		})
	}
	o.logger.Debugf("Store points-to analysis done after %d rounds\n", o.Rounds)
	return nil
}

// PointsTo returns the objects v may point to, in module order.
func (o *StoreOracle) PointsTo(v ir.Value) []ir.Value {
	if o.pts == nil {
		return nil
	}
	return o.ptsOf(v).Ordered(o.index)
}

// Contents returns the objects the pointers stored in obj may point to, in module order.
func (o *StoreOracle) Contents(obj ir.Value) []ir.Value {
	return o.contents[obj].Ordered(o.index)
}

func (o *StoreOracle) visit(instr ir.Instruction) bool {
	switch i := instr.(type) {
	case *ir.Cast:
		return o.flow(i.Source(), i)
	case *ir.GetElementPtr:
		return o.flow(i.Base(), i)
	case *ir.Phi:
		changed := false
		for k := 0; k < i.NumIncoming(); k++ {
			changed = o.flow(i.IncomingValue(k), i) || changed
		}
		return changed
	case *ir.Select:
		changed := o.flow(i.TrueValue(), i)
		return o.flow(i.FalseValue(), i) || changed
	case *ir.ExtractValue:
		return o.flow(i.Container(), i)
	case *ir.ExtractElement:
		return o.flow(i.Container(), i)
	case *ir.InsertValue:
		changed := o.flow(i.Container(), i)
		return o.flow(i.Element(), i) || changed
	case *ir.InsertElement:
		changed := o.flow(i.Container(), i)
		return o.flow(i.Element(), i) || changed
	case *ir.Load:
		changed := false
		for obj := range o.ptsOf(i.Pointer()) {
			changed = o.union(o.set(i), o.contents[obj]) || changed
		}
		return changed
	case *ir.Store:
		changed := false
		stored := o.ptsOf(i.StoredValue())
		for obj := range o.ptsOf(i.Pointer()) {
			changed = o.union(o.content(obj), stored) || changed
		}
		return changed
	case ir.CallInstruction:
		return o.call(i)
	}
	return false
}

func (o *StoreOracle) call(site ir.CallInstruction) bool {
	changed := false
	for _, callee := range o.callees(site) {
		if callee.IsDeclaration() {
			changed = o.external(site, callee) || changed
			continue
		}
		for k, param := range callee.Params() {
			if k < len(site.Args()) {
				changed = o.flow(site.Args()[k], param) || changed
			}
		}
		for _, b := range callee.Blocks() {
			if ret, ok := b.Terminator().(*ir.Ret); ok && ret.ReturnValue() != nil {
				changed = o.flow(ret.ReturnValue(), site) || changed
			}
		}
	}
	return changed
}

func (o *StoreOracle) external(site ir.CallInstruction, callee *ir.Function) bool {
	args := site.Args()
	if o.config.IsDataMovementFunction(callee.Name()) && len(args) >= 2 {
		changed := false
		for src := range o.ptsOf(args[1]) {
			for dst := range o.ptsOf(args[0]) {
				changed = o.union(o.content(dst), o.contents[src]) || changed
			}
		}
		return changed
	}
	if _, void := callee.ReturnType().(*ir.VoidType); void {
		return false
	}
	changed := false
	for _, arg := range args {
		changed = o.flow(arg, site) || changed
	}
	return changed
}

// callees returns the functions a call site may call: its direct callee, or the functions its callee operand
// points to.
func (o *StoreOracle) callees(site ir.CallInstruction) []*ir.Function {
	if f := site.CalledFunction(); f != nil {
		return []*ir.Function{f}
	}
	var fns []*ir.Function
	for _, v := range o.ptsOf(site.Callee()).Ordered(o.index) {
		if f, ok := v.(*ir.Function); ok {
			fns = append(fns, f)
		}
	}
	return fns
}

// ptsOf returns the points-to set of v. Objects point to themselves, constants point to what their operands point
// to.
func (o *StoreOracle) ptsOf(v ir.Value) crd.ValueSet {
	switch v := v.(type) {
	case *ir.Global, *ir.Function, *ir.Alloca:
		return crd.ValueSet{v: true}
	case *ir.ConstExpr:
		return o.ptsOf(v.Base())
	case *ir.ConstAggregate:
		res := crd.ValueSet{}
		for _, elem := range v.Operands() {
			o.union(res, o.ptsOf(elem))
		}
		return res
	}
	return o.pts[v]
}

func (o *StoreOracle) flow(from, to ir.Value) bool {
	return o.union(o.set(to), o.ptsOf(from))
}

func (o *StoreOracle) set(v ir.Value) crd.ValueSet {
	s, ok := o.pts[v]
	if !ok {
		s = crd.ValueSet{}
		o.pts[v] = s
	}
	return s
}

func (o *StoreOracle) content(obj ir.Value) crd.ValueSet {
	s, ok := o.contents[obj]
	if !ok {
		s = crd.ValueSet{}
		o.contents[obj] = s
	}
	return s
}

func (o *StoreOracle) union(dst, src crd.ValueSet) bool {
	changed := false
	for v := range src {
		changed = dst.Add(v) || changed
	}
	return changed
}
