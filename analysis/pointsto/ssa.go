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

// Package pointsto implements the points-to oracles the memory object mapping of the crd package queries.
//
// Two oracles are provided. The SSAOracle runs the inclusion-based pointer analysis of golang.org/x/tools on the
// Go program a module was lowered from, and maps the answers back to the IR. The StoreOracle runs a
// field-insensitive inclusion-based analysis directly on the IR, and therefore works on any module.
package pointsto

import (
	"fmt"

	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/crd"
	"github.com/awslabs/ar-go-crd/analysis/golower"
	"github.com/awslabs/ar-go-crd/analysis/ir"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var _ crd.PointsToOracle = (*SSAOracle)(nil)

// SSAOracle answers points-to queries on a lowered module with the pointer analysis of the SSA program the module
// was lowered from.
type SSAOracle struct {
	lowering *golower.Lowering
	logger   *config.LogGroup
	index    map[ir.Value]int
	queries  map[ir.Value]ssa.Value
	result   *pointer.Result
}

// NewSSAOracle returns an oracle for the module of l. The logger may be nil.
func NewSSAOracle(l *golower.Lowering, logger *config.LogGroup) *SSAOracle {
	if logger == nil {
		logger = config.NewLogGroup(config.NewDefault())
	}
	return &SSAOracle{lowering: l, logger: logger}
}

// Initialize runs the pointer analysis on the main packages of the program. Only the instructions and globals of m
// that were lowered from a value of a pointer-like type are queried. Instructions materialized from constant
// expressions are answered without the analysis.
func (o *SSAOracle) Initialize(m *ir.Module) (err error) {
	if m != o.lowering.Module {
		return fmt.Errorf("module %s was not lowered by this oracle's lowering", m.Name)
	}
	mains := ssautil.MainPackages(o.lowering.Program.AllPackages())
	if len(mains) == 0 {
		return fmt.Errorf("no main package in the program")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pointer analysis panicked: %v", r)
		}
	}()

	o.index = m.Enumerate()
	o.queries = map[ir.Value]ssa.Value{}
	cfg := &pointer.Config{Mains: mains}
	for v := range o.index {
		switch v := v.(type) {
		case ir.Instruction:
			if v.MaterializedFrom() != nil {
				continue
			}
		case *ir.Global:
		default:
			continue
		}
		sv := o.lowering.SSAValue(v)
		if sv == nil || !pointer.CanPoint(sv.Type()) {
			continue
		}
		cfg.AddQuery(sv)
		o.queries[v] = sv
	}
	o.logger.Debugf("Running the pointer analysis with %d queries\n", len(o.queries))
	o.result, err = pointer.Analyze(cfg)
	if err != nil {
		return fmt.Errorf("pointer analysis failed: %w", err)
	}
	for _, warning := range o.result.Warnings {
		o.logger.Debugf("pointer analysis: %s\n", warning.Message)
	}
	return nil
}

// PointsTo returns the allocations and globals of the module that v may point to, in module order.
func (o *SSAOracle) PointsTo(v ir.Value) []ir.Value {
	if o.result == nil {
		return nil
	}
	if i, ok := v.(ir.Instruction); ok && i.MaterializedFrom() != nil {
		return o.constantObjects(i.MaterializedFrom())
	}
	ptr, ok := o.result.Queries[o.queries[v]]
	if !ok {
		return nil
	}
	objects := crd.ValueSet{}
	for _, label := range ptr.PointsTo().Labels() {
		if obj := o.object(label.Value()); obj != nil {
			objects.Add(obj)
		}
	}
	return objects.Ordered(o.index)
}

// constantObjects returns the globals and functions a constant expression is computed from. Those are not always
// values of the Go program: method tables and string bytes are globals of the lowering.
func (o *SSAOracle) constantObjects(e *ir.ConstExpr) []ir.Value {
	var base ir.Value = e
	for {
		inner, ok := base.(*ir.ConstExpr)
		if !ok {
			break
		}
		base = inner.Base()
	}
	switch base.(type) {
	case *ir.Global, *ir.Function:
		if _, ok := o.index[base]; ok {
			return []ir.Value{base}
		}
	}
	return nil
}

// object returns the IR value allocating the object of an SSA label value, or nil when it was not lowered.
func (o *SSAOracle) object(v ssa.Value) ir.Value {
	switch v := v.(type) {
	case nil:
		return nil
	case *ssa.Global:
		if g, ok := o.lowering.Globals[v]; ok {
			return g
		}
		return nil
	case *ssa.Function:
		if f, ok := o.lowering.Functions[v]; ok {
			return f
		}
		return nil
	}
	obj, ok := o.lowering.Values[v]
	if !ok {
		return nil
	}
	if _, isInstr := obj.(ir.Instruction); !isInstr {
		return nil
	}
	return obj
}
