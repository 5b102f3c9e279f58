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

package ir

// MaterializeConstantExprs replaces every pointer-typed bitcast or getelementptr constant expression used as an
// operand of an instruction by an equivalent instruction, so that the analyses only have to reason about
// instructions. Landing pads are left untouched.
//
// For a phi, the new instruction is placed in the incoming block of the entry; for any other instruction, at the
// first insertion point of the instruction's block. Expressions nested in a materialized expression are
// materialized as well.
//
// Returns the number of instructions created. Running it a second time creates nothing.
func MaterializeConstantExprs(m *Module) int {
	n := 0
	for _, f := range m.functions {
		for _, b := range f.blocks {
			// the block grows while we iterate; new instructions are handled by the recursion
			instrs := append([]Instruction(nil), b.instrs...)
			for _, i := range instrs {
				if _, ok := i.(*LandingPad); ok {
					continue
				}
				n += materializeOperands(i)
			}
		}
	}
	return n
}

func materializable(v Value) (*ConstExpr, bool) {
	e, ok := v.(*ConstExpr)
	if !ok || !IsPointer(e.Type()) {
		return nil, false
	}
	return e, e.Op == ExprBitCast || e.Op == ExprGEP
}

func materializeOperands(i Instruction) int {
	n := 0
	for k := 0; k < len(i.Operands()); k++ {
		e, ok := materializable(i.Operands()[k])
		if !ok {
			continue
		}
		if phi, isPhi := i.(*Phi); isPhi {
			n += materializeInPhi(phi, e)
		} else {
			ni := newInstrFromExpr(e, i.Block())
			ReplaceUsesOfWith(i, e, ni)
			n += 1 + materializeOperands(ni)
		}
	}
	return n
}

func materializeInPhi(phi *Phi, e *ConstExpr) int {
	n := 0
	for k := 0; k < phi.NumIncoming(); k++ {
		if phi.IncomingValue(k) != Value(e) {
			continue
		}
		pred := phi.IncomingBlock(k)
		ni := newInstrFromExpr(e, pred)
		phi.SetIncomingValue(k, ni)
		// a phi may list the same predecessor several times; all entries must agree
		for j := k + 1; j < phi.NumIncoming(); j++ {
			if phi.IncomingBlock(j) == pred && phi.IncomingValue(j) == Value(e) {
				phi.SetIncomingValue(j, ni)
			}
		}
		n += 1 + materializeOperands(ni)
	}
	return n
}

// newInstrFromExpr creates the instruction equivalent to e at the first insertion point of block.
func newInstrFromExpr(e *ConstExpr, block *BasicBlock) Instruction {
	var (
		instr Instruction
		base  *instrBase
	)
	switch e.Op {
	case ExprGEP:
		g := &GetElementPtr{SourceElem: e.SourceElem}
		instr, base = g, &g.instrBase
	default:
		c := &Cast{Op: BitCast}
		instr, base = c, &c.instrBase
	}
	base.typ = e.typ
	base.from = e
	pos := block.FirstInsertionPt()
	setOperands(instr, &base.operands, e.list)
	base.name = block.parent.nextName()
	if pos != nil {
		base.loc = pos.Loc()
	}
	block.insert(instr, pos)
	return instr
}
