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
	"path/filepath"
	"strconv"
	"strings"
)

// DebugLoc is the source location of an instruction.
type DebugLoc struct {
	Dir  string
	File string
	Line int
}

// Path returns the path of the source file.
func (d *DebugLoc) Path() string { return filepath.Join(d.Dir, d.File) }

func (d *DebugLoc) String() string { return fmt.Sprintf("%s:%d", d.Path(), d.Line) }

// An Instruction is a value computed inside a basic block.
type Instruction interface {
	User
	// Block returns the basic block containing the instruction.
	Block() *BasicBlock
	// Parent returns the function containing the instruction.
	Parent() *Function
	// Opcode returns the mnemonic of the instruction.
	Opcode() string
	// Loc returns the source location of the instruction, or nil.
	Loc() *DebugLoc
	SetLoc(loc *DebugLoc)
	// TypeTag returns the type-based alias annotation of the instruction (e.g. "function pointer"), or "".
	TypeTag() string
	SetTypeTag(tag string)
	// MaterializedFrom returns the constant expression this instruction was created from by the normalizer.
	MaterializedFrom() *ConstExpr

	setBlock(b *BasicBlock)
	setName(name string)
}

type instrBase struct {
	valueBase
	operands
	block *BasicBlock
	loc   *DebugLoc
	tag   string
	from  *ConstExpr
}

func (i *instrBase) Ident() string                { return "%" + i.name }
func (i *instrBase) Block() *BasicBlock           { return i.block }
func (i *instrBase) Loc() *DebugLoc               { return i.loc }
func (i *instrBase) SetLoc(loc *DebugLoc)         { i.loc = loc }
func (i *instrBase) TypeTag() string              { return i.tag }
func (i *instrBase) SetTypeTag(tag string)        { i.tag = tag }
func (i *instrBase) MaterializedFrom() *ConstExpr { return i.from }
func (i *instrBase) setBlock(b *BasicBlock)       { i.block = b }
func (i *instrBase) setName(name string)          { i.name = name }

func (i *instrBase) Parent() *Function {
	if i.block == nil {
		return nil
	}
	return i.block.parent
}

func (i *instrBase) assign(body string) string {
	if _, void := i.typ.(*VoidType); void || i.name == "" {
		return body
	}
	return "%" + i.name + " = " + body
}

func joinTyped(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = typed(v)
	}
	return strings.Join(parts, ", ")
}

// Alloca allocates memory for a value of type Allocated. Go heap allocations are allocas marked Heap.
type Alloca struct {
	instrBase
	Allocated Type
	Heap      bool
}

func (i *Alloca) Opcode() string { return "alloca" }
func (i *Alloca) String() string {
	body := "alloca " + i.Allocated.String()
	if len(i.list) > 0 {
		body += ", " + typed(i.list[0])
	}
	if i.Heap {
		body += " ; heap"
	}
	return i.assign(body)
}

// Load reads the value pointed to by its only operand.
type Load struct{ instrBase }

func (i *Load) Opcode() string { return "load" }

// Pointer returns the address loaded from.
func (i *Load) Pointer() Value { return i.list[0] }
func (i *Load) String() string { return i.assign(fmt.Sprintf("load %s, %s", i.typ, typed(i.list[0]))) }

// Store writes its first operand at the address given by its second operand.
type Store struct{ instrBase }

func (i *Store) Opcode() string { return "store" }

// StoredValue returns the value written.
func (i *Store) StoredValue() Value { return i.list[0] }

// Pointer returns the address written to.
func (i *Store) Pointer() Value { return i.list[1] }
func (i *Store) String() string { return "store " + joinTyped(i.list) }

// GetElementPtr computes an address from a base pointer and indices.
type GetElementPtr struct {
	instrBase
	SourceElem Type
}

func (i *GetElementPtr) Opcode() string { return "getelementptr" }

// Base returns the base pointer.
func (i *GetElementPtr) Base() Value { return i.list[0] }

// Indices returns the indices.
func (i *GetElementPtr) Indices() []Value { return i.list[1:] }
func (i *GetElementPtr) String() string {
	return i.assign(fmt.Sprintf("getelementptr %s, %s", i.SourceElem, joinTyped(i.list)))
}

// CastOp is the kind of conversion done by a Cast.
type CastOp int

const (
	BitCast CastOp = iota
	IntToPtr
	PtrToInt
	Trunc
	ZExt
	SExt
	FPConv
	IToFP
	FPToI
)

var castNames = [...]string{"bitcast", "inttoptr", "ptrtoint", "trunc", "zext", "sext", "fpconv", "itofp", "fptoi"}

func (op CastOp) String() string { return castNames[op] }

// IsReinterpretation returns true for the conversions that keep the bits of the value: bitcast, inttoptr and
// ptrtoint.
func (op CastOp) IsReinterpretation() bool {
	return op == BitCast || op == IntToPtr || op == PtrToInt
}

// Cast converts its operand to the type of the instruction.
type Cast struct {
	instrBase
	Op CastOp
}

func (i *Cast) Opcode() string { return i.Op.String() }

// Source returns the converted value.
func (i *Cast) Source() Value { return i.list[0] }

// SrcType returns the type of the converted value.
func (i *Cast) SrcType() Type { return i.list[0].Type() }
func (i *Cast) String() string {
	return i.assign(fmt.Sprintf("%s %s to %s", i.Op, typed(i.list[0]), i.typ))
}

// BinOp is an arithmetic or logical operation.
type BinOp struct {
	instrBase
	Op string
}

func (i *BinOp) Opcode() string { return i.Op }
func (i *BinOp) String() string {
	return i.assign(fmt.Sprintf("%s %s, %s", i.Op, typed(i.list[0]), i.list[1].Ident()))
}

// Cmp compares its operands and produces an i1.
type Cmp struct {
	instrBase
	Pred string
}

func (i *Cmp) Opcode() string { return "cmp" }
func (i *Cmp) String() string {
	return i.assign(fmt.Sprintf("cmp %s %s, %s", i.Pred, typed(i.list[0]), i.list[1].Ident()))
}

// A CallInstruction is a Call or an Invoke.
type CallInstruction interface {
	Instruction
	// Callee returns the called value.
	Callee() Value
	// Args returns the actual arguments.
	Args() []Value
	// CalledFunction returns the callee if it is a function, nil otherwise.
	CalledFunction() *Function
}

type callBase struct{ instrBase }

func (i *callBase) Callee() Value { return i.list[0] }
func (i *callBase) Args() []Value { return i.list[1:] }
func (i *callBase) CalledFunction() *Function {
	f, _ := i.list[0].(*Function)
	return f
}

func (i *callBase) callText(op string) string {
	args := joinTyped(i.list[1:])
	return fmt.Sprintf("%s %s %s(%s)", op, i.typ, i.list[0].Ident(), args)
}

// Call calls its first operand with the remaining ones as arguments.
type Call struct{ callBase }

func (i *Call) Opcode() string { return "call" }
func (i *Call) String() string { return i.assign(i.callText("call")) }

// Invoke is a call that can unwind.
type Invoke struct {
	callBase
	Normal *BasicBlock
	Unwind *BasicBlock
}

func (i *Invoke) Opcode() string { return "invoke" }
func (i *Invoke) String() string {
	return i.assign(fmt.Sprintf("%s to label %s unwind label %s", i.callText("invoke"), i.Normal.Ident(),
		i.Unwind.Ident()))
}

// Ret returns from the function, with an optional value.
type Ret struct{ instrBase }

func (i *Ret) Opcode() string { return "ret" }

// ReturnValue returns the returned value, or nil.
func (i *Ret) ReturnValue() Value {
	if len(i.list) == 0 {
		return nil
	}
	return i.list[0]
}
func (i *Ret) String() string {
	if len(i.list) == 0 {
		return "ret void"
	}
	return "ret " + typed(i.list[0])
}

// Br is an unconditional branch.
type Br struct {
	instrBase
	Target *BasicBlock
}

func (i *Br) Opcode() string { return "br" }
func (i *Br) String() string { return "br " + i.Target.String() }

// CondBr branches on its i1 operand.
type CondBr struct {
	instrBase
	True  *BasicBlock
	False *BasicBlock
}

func (i *CondBr) Opcode() string { return "br" }

// Cond returns the branch condition.
func (i *CondBr) Cond() Value { return i.list[0] }
func (i *CondBr) String() string {
	return fmt.Sprintf("br %s, %s, %s", typed(i.list[0]), i.True, i.False)
}

// SwitchCase is a case of a Switch.
type SwitchCase struct {
	Value  *ConstInt
	Target *BasicBlock
}

// Switch jumps to the case matching its condition, or to Default.
type Switch struct {
	instrBase
	Default *BasicBlock
	Cases   []SwitchCase
}

func (i *Switch) Opcode() string { return "switch" }

// Cond returns the switch condition.
func (i *Switch) Cond() Value { return i.list[0] }
func (i *Switch) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "switch %s, %s [", typed(i.list[0]), i.Default)
	for _, c := range i.Cases {
		fmt.Fprintf(&sb, " %s, %s", typed(c.Value), c.Target)
	}
	sb.WriteString(" ]")
	return sb.String()
}

// Phi selects a value depending on the predecessor the control came from. Operand k comes from Blocks()[k].
type Phi struct {
	instrBase
	blocks []*BasicBlock
}

func (i *Phi) Opcode() string { return "phi" }

// NumIncoming returns the number of incoming entries.
func (i *Phi) NumIncoming() int { return len(i.list) }

// IncomingValue returns the value of the k-th entry.
func (i *Phi) IncomingValue(k int) Value { return i.list[k] }

// IncomingBlock returns the predecessor of the k-th entry.
func (i *Phi) IncomingBlock(k int) *BasicBlock { return i.blocks[k] }

// SetIncomingValue replaces the value of the k-th entry.
func (i *Phi) SetIncomingValue(k int, v Value) { SetOperand(i, k, v) }

// AddIncoming adds an entry.
func (i *Phi) AddIncoming(v Value, b *BasicBlock) {
	if v.Type() != i.typ {
		panic(fmt.Sprintf("phi incoming value of type %s in phi of type %s", v.Type(), i.typ))
	}
	i.list = append(i.list, v)
	i.blocks = append(i.blocks, b)
	v.addUse(i)
}

func (i *Phi) String() string {
	parts := make([]string, len(i.list))
	for k, v := range i.list {
		parts[k] = fmt.Sprintf("[ %s, %s ]", v.Ident(), i.blocks[k].Ident())
	}
	return i.assign(fmt.Sprintf("phi %s %s", i.typ, strings.Join(parts, ", ")))
}

// Select chooses between its second and third operands depending on its first.
type Select struct{ instrBase }

func (i *Select) Opcode() string { return "select" }

// Cond returns the condition.
func (i *Select) Cond() Value { return i.list[0] }

// TrueValue returns the value selected when the condition holds.
func (i *Select) TrueValue() Value { return i.list[1] }

// FalseValue returns the value selected otherwise.
func (i *Select) FalseValue() Value { return i.list[2] }
func (i *Select) String() string    { return i.assign("select " + joinTyped(i.list)) }

// ExtractElement reads an element of a vector or array at a dynamic index.
type ExtractElement struct{ instrBase }

func (i *ExtractElement) Opcode() string { return "extractelement" }

// Container returns the vector.
func (i *ExtractElement) Container() Value { return i.list[0] }
func (i *ExtractElement) String() string {
	return i.assign("extractelement " + joinTyped(i.list))
}

// ExtractValue reads a member of an aggregate at constant indices.
type ExtractValue struct {
	instrBase
	Indices []int
}

func (i *ExtractValue) Opcode() string { return "extractvalue" }

// Container returns the aggregate.
func (i *ExtractValue) Container() Value { return i.list[0] }
func (i *ExtractValue) String() string {
	return i.assign(fmt.Sprintf("extractvalue %s, %s", typed(i.list[0]), joinInts(i.Indices)))
}

// InsertElement writes an element of a vector at a dynamic index and produces the new vector.
type InsertElement struct{ instrBase }

func (i *InsertElement) Opcode() string { return "insertelement" }

// Container returns the original vector.
func (i *InsertElement) Container() Value { return i.list[0] }

// Element returns the inserted element.
func (i *InsertElement) Element() Value { return i.list[1] }
func (i *InsertElement) String() string {
	return i.assign("insertelement " + joinTyped(i.list))
}

// InsertValue writes a member of an aggregate at constant indices and produces the new aggregate.
type InsertValue struct {
	instrBase
	Indices []int
}

func (i *InsertValue) Opcode() string { return "insertvalue" }

// Container returns the original aggregate.
func (i *InsertValue) Container() Value { return i.list[0] }

// Element returns the inserted member.
func (i *InsertValue) Element() Value { return i.list[1] }
func (i *InsertValue) String() string {
	return i.assign(fmt.Sprintf("insertvalue %s, %s", joinTyped(i.list), joinInts(i.Indices)))
}

// LandingPad is the first instruction of an unwind destination.
type LandingPad struct{ instrBase }

func (i *LandingPad) Opcode() string { return "landingpad" }
func (i *LandingPad) String() string { return i.assign("landingpad " + i.typ.String()) }

// Unreachable marks a point the control never reaches.
type Unreachable struct{ instrBase }

func (i *Unreachable) Opcode() string { return "unreachable" }
func (i *Unreachable) String() string { return "unreachable" }

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for k, x := range xs {
		parts[k] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

// IsTerminator returns true for the instructions that end a basic block.
func IsTerminator(i Instruction) bool {
	switch i.(type) {
	case *Ret, *Br, *CondBr, *Switch, *Invoke, *Unreachable:
		return true
	}
	return false
}

// Successors returns the blocks a terminator can jump to.
func Successors(i Instruction) []*BasicBlock {
	switch i := i.(type) {
	case *Br:
		return []*BasicBlock{i.Target}
	case *CondBr:
		return []*BasicBlock{i.True, i.False}
	case *Switch:
		succs := []*BasicBlock{i.Default}
		for _, c := range i.Cases {
			succs = append(succs, c.Target)
		}
		return succs
	case *Invoke:
		return []*BasicBlock{i.Normal, i.Unwind}
	}
	return nil
}

// ExtractedType returns the type of the member of aggregate type t at the given indices.
func ExtractedType(t Type, indices []int) Type {
	for _, idx := range indices {
		t = AggregateElem(t, idx)
	}
	return t
}
