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

import (
	"fmt"
)

// A Builder creates instructions at an insertion point: the end of a block, or just before an instruction.
// Instructions created without a name are numbered in their function. The debug location and type tag set on
// the builder are attached to every instruction it creates.
type Builder struct {
	ctx    *Context
	block  *BasicBlock
	before Instruction
	loc    *DebugLoc
	tag    string
}

// NewBuilder returns a builder for the module m, without insertion point.
func NewBuilder(m *Module) *Builder { return &Builder{ctx: m.ctx} }

// Context returns the type context of the builder.
func (b *Builder) Context() *Context { return b.ctx }

// SetInsertPoint makes the builder append at the end of block.
func (b *Builder) SetInsertPoint(block *BasicBlock) {
	b.block = block
	b.before = nil
}

// SetInsertBefore makes the builder insert just before instr.
func (b *Builder) SetInsertBefore(instr Instruction) {
	b.block = instr.Block()
	b.before = instr
}

// Block returns the block of the insertion point.
func (b *Builder) Block() *BasicBlock { return b.block }

// SetLoc sets the debug location of the next instructions.
func (b *Builder) SetLoc(loc *DebugLoc) { b.loc = loc }

// SetTypeTag sets the type tag of the next instructions.
func (b *Builder) SetTypeTag(tag string) { b.tag = tag }

func (b *Builder) insert(instr Instruction, base *instrBase, name string, values ...Value) {
	if b.block == nil {
		panic("builder has no insertion point")
	}
	setOperands(instr, &base.operands, values)
	base.loc = b.loc
	base.tag = b.tag
	if _, void := base.typ.(*VoidType); !void {
		if name == "" {
			name = b.block.parent.nextName()
		}
		base.name = name
	}
	b.block.insert(instr, b.before)
}

// Alloca allocates a value of type t.
func (b *Builder) Alloca(t Type, name string) *Alloca {
	i := &Alloca{Allocated: t}
	i.typ = b.ctx.Pointer(t)
	b.insert(i, &i.instrBase, name)
	return i
}

// HeapAlloca allocates a value of type t that outlives its function.
func (b *Builder) HeapAlloca(t Type, name string) *Alloca {
	i := b.Alloca(t, name)
	i.Heap = true
	return i
}

// Load reads from ptr.
func (b *Builder) Load(ptr Value, name string) *Load {
	elem := ElemType(ptr.Type())
	if elem == nil {
		panic(fmt.Sprintf("load from non-pointer %s", typed(ptr)))
	}
	i := &Load{}
	i.typ = elem
	b.insert(i, &i.instrBase, name, ptr)
	return i
}

// Store writes v at ptr.
func (b *Builder) Store(v Value, ptr Value) *Store {
	if ElemType(ptr.Type()) != v.Type() {
		panic(fmt.Sprintf("store of %s to %s", typed(v), typed(ptr)))
	}
	i := &Store{}
	i.typ = b.ctx.Void()
	b.insert(i, &i.instrBase, "", v, ptr)
	return i
}

// GEP computes the address of an element of base.
func (b *Builder) GEP(base Value, indices []Value, name string) *GetElementPtr {
	i := &GetElementPtr{}
	i.typ = GEPResultType(base.Type(), indices)
	if elem := ElemType(base.Type()); elem != nil {
		i.SourceElem = elem
	} else {
		i.SourceElem = ElemType(base.Type().(*VectorType).Elem)
	}
	b.insert(i, &i.instrBase, name, append([]Value{base}, indices...)...)
	return i
}

// StructGEP computes the address of field k of the structure pointed to by base.
func (b *Builder) StructGEP(base Value, k int, name string) *GetElementPtr {
	return b.GEP(base, []Value{NewConstInt(b.ctx.I64(), 0), NewConstInt(b.ctx.I32(), int64(k))}, name)
}

// Cast converts v to type t.
func (b *Builder) Cast(op CastOp, v Value, t Type, name string) *Cast {
	i := &Cast{Op: op}
	i.typ = t
	b.insert(i, &i.instrBase, name, v)
	return i
}

// BitCast reinterprets v as type t.
func (b *Builder) BitCast(v Value, t Type, name string) *Cast { return b.Cast(BitCast, v, t, name) }

// BinOp computes x op y.
func (b *Builder) BinOp(op string, x, y Value, name string) *BinOp {
	i := &BinOp{Op: op}
	i.typ = x.Type()
	b.insert(i, &i.instrBase, name, x, y)
	return i
}

// Cmp compares x and y with the predicate pred.
func (b *Builder) Cmp(pred string, x, y Value, name string) *Cmp {
	i := &Cmp{Pred: pred}
	i.typ = b.ctx.I1()
	b.insert(i, &i.instrBase, name, x, y)
	return i
}

func calleeSignature(callee Value) *FuncType {
	if ft, ok := ElemType(callee.Type()).(*FuncType); ok {
		return ft
	}
	panic(fmt.Sprintf("call of non-function %s", typed(callee)))
}

// Call calls callee, which must have a pointer to function type, with args.
func (b *Builder) Call(callee Value, args []Value, name string) *Call {
	i := &Call{}
	i.typ = calleeSignature(callee).Ret
	b.insert(i, &i.instrBase, name, append([]Value{callee}, args...)...)
	return i
}

// Invoke calls callee and continues at normal, or at unwind if the callee unwinds.
func (b *Builder) Invoke(callee Value, args []Value, normal, unwind *BasicBlock, name string) *Invoke {
	i := &Invoke{Normal: normal, Unwind: unwind}
	i.typ = calleeSignature(callee).Ret
	b.insert(i, &i.instrBase, name, append([]Value{callee}, args...)...)
	return i
}

// Ret returns v, or nothing when v is nil.
func (b *Builder) Ret(v Value) *Ret {
	i := &Ret{}
	i.typ = b.ctx.Void()
	if v == nil {
		b.insert(i, &i.instrBase, "")
	} else {
		b.insert(i, &i.instrBase, "", v)
	}
	return i
}

// Br jumps to target.
func (b *Builder) Br(target *BasicBlock) *Br {
	i := &Br{Target: target}
	i.typ = b.ctx.Void()
	b.insert(i, &i.instrBase, "")
	return i
}

// CondBr jumps to t if cond holds, to f otherwise.
func (b *Builder) CondBr(cond Value, t, f *BasicBlock) *CondBr {
	i := &CondBr{True: t, False: f}
	i.typ = b.ctx.Void()
	b.insert(i, &i.instrBase, "", cond)
	return i
}

// Switch jumps to the target of the case equal to cond, or to def.
func (b *Builder) Switch(cond Value, def *BasicBlock, cases ...SwitchCase) *Switch {
	i := &Switch{Default: def, Cases: cases}
	i.typ = b.ctx.Void()
	values := []Value{cond}
	for _, c := range cases {
		values = append(values, c.Value)
	}
	b.insert(i, &i.instrBase, "", values...)
	return i
}

// Phi creates an empty phi of type t; entries are added with AddIncoming.
func (b *Builder) Phi(t Type, name string) *Phi {
	i := &Phi{}
	i.typ = t
	b.insert(i, &i.instrBase, name)
	return i
}

// Select chooses x if cond holds, y otherwise.
func (b *Builder) Select(cond, x, y Value, name string) *Select {
	i := &Select{}
	i.typ = x.Type()
	b.insert(i, &i.instrBase, name, cond, x, y)
	return i
}

// ExtractElement reads element idx of vec.
func (b *Builder) ExtractElement(vec, idx Value, name string) *ExtractElement {
	i := &ExtractElement{}
	i.typ = AggregateElem(vec.Type(), 0)
	b.insert(i, &i.instrBase, name, vec, idx)
	return i
}

// InsertElement writes elt at index idx of vec.
func (b *Builder) InsertElement(vec, elt, idx Value, name string) *InsertElement {
	i := &InsertElement{}
	i.typ = vec.Type()
	b.insert(i, &i.instrBase, name, vec, elt, idx)
	return i
}

// ExtractValue reads the member of agg at indices.
func (b *Builder) ExtractValue(agg Value, indices []int, name string) *ExtractValue {
	i := &ExtractValue{Indices: indices}
	i.typ = ExtractedType(agg.Type(), indices)
	b.insert(i, &i.instrBase, name, agg)
	return i
}

// InsertValue writes v as the member of agg at indices.
func (b *Builder) InsertValue(agg, v Value, indices []int, name string) *InsertValue {
	if t := ExtractedType(agg.Type(), indices); t != v.Type() {
		panic(fmt.Sprintf("insertvalue of %s at a member of type %s", typed(v), t))
	}
	i := &InsertValue{Indices: indices}
	i.typ = agg.Type()
	b.insert(i, &i.instrBase, name, agg, v)
	return i
}

// LandingPad creates a landing pad of type t.
func (b *Builder) LandingPad(t Type, name string) *LandingPad {
	i := &LandingPad{}
	i.typ = t
	b.insert(i, &i.instrBase, name)
	return i
}

// Unreachable terminates the block.
func (b *Builder) Unreachable() *Unreachable {
	i := &Unreachable{}
	i.typ = b.ctx.Void()
	b.insert(i, &i.instrBase, "")
	return i
}
