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
	"strconv"
	"strings"
)

// Module is a whole program: globals, functions and the types they use.
type Module struct {
	Name      string
	ctx       *Context
	globals   []*Global
	functions []*Function
	symbols   map[string]Value
}

// NewModule returns an empty module with a fresh type context.
func NewModule(name string) *Module {
	return &Module{Name: name, ctx: NewContext(), symbols: map[string]Value{}}
}

// Context returns the type context of the module.
func (m *Module) Context() *Context { return m.ctx }

// Globals returns the globals in declaration order.
func (m *Module) Globals() []*Global { return m.globals }

// Functions returns the functions in declaration order.
func (m *Module) Functions() []*Function { return m.functions }

// StructTypes returns the named structure types in declaration order.
func (m *Module) StructTypes() []*StructType { return m.ctx.Structs() }

// Global returns the global with the given name, or nil.
func (m *Module) Global(name string) *Global {
	g, _ := m.symbols[name].(*Global)
	return g
}

// Function returns the function with the given name, or nil.
func (m *Module) Function(name string) *Function {
	f, _ := m.symbols[name].(*Function)
	return f
}

func (m *Module) uniqueSymbol(name string) string {
	if name == "" {
		name = "anon"
	}
	unique := name
	for i := 1; m.symbols[unique] != nil; i++ {
		unique = name + "." + strconv.Itoa(i)
	}
	return unique
}

// NewGlobal adds a global of the given value type. The name is made unique in the module.
func (m *Module) NewGlobal(name string, valueType Type) *Global {
	g := &Global{module: m, ValueType: valueType}
	g.name = m.uniqueSymbol(name)
	g.typ = m.ctx.Pointer(valueType)
	m.symbols[g.name] = g
	m.globals = append(m.globals, g)
	return g
}

// NewFunction adds a function declaration with the given signature. Parameters are named after paramNames when
// provided, otherwise numbered. The name is made unique in the module.
func (m *Module) NewFunction(name string, sig *FuncType, paramNames ...string) *Function {
	f := &Function{module: m, sig: sig}
	f.name = m.uniqueSymbol(name)
	f.typ = m.ctx.Pointer(sig)
	f.Intrinsic = strings.HasPrefix(f.name, "llvm.")
	for i, t := range sig.Params {
		a := &Argument{parent: f, index: i}
		a.typ = t
		if i < len(paramNames) && paramNames[i] != "" {
			a.name = paramNames[i]
		} else {
			a.name = "arg" + strconv.Itoa(i)
		}
		f.params = append(f.params, a)
	}
	m.symbols[f.name] = f
	m.functions = append(m.functions, f)
	return f
}

// ForEachInstruction calls fn on every instruction of every function, in module order.
func (m *Module) ForEachInstruction(fn func(Instruction)) {
	for _, f := range m.functions {
		for _, b := range f.blocks {
			for _, i := range b.instrs {
				fn(i)
			}
		}
	}
}

// Enumerate numbers the values of the module in module order: globals, then for each function the function itself,
// its arguments and its instructions.
func (m *Module) Enumerate() map[Value]int {
	index := map[Value]int{}
	n := 0
	add := func(v Value) {
		if _, ok := index[v]; !ok {
			index[v] = n
			n++
		}
	}
	for _, g := range m.globals {
		add(g)
	}
	for _, f := range m.functions {
		add(f)
		for _, a := range f.params {
			add(a)
		}
		for _, b := range f.blocks {
			for _, i := range b.instrs {
				add(i)
			}
		}
	}
	return index
}

// Function is a function definition (with blocks) or declaration (without).
type Function struct {
	valueBase
	module *Module
	sig    *FuncType
	params []*Argument
	blocks []*BasicBlock
	nextID int
	// Intrinsic marks functions that the compiler understands natively; set for names starting with "llvm.".
	Intrinsic bool
}

func (f *Function) Ident() string { return "@" + f.name }
func (f *Function) isConstant()   {}

func (f *Function) String() string {
	kind := "define"
	if f.IsDeclaration() {
		kind = "declare"
	}
	params := make([]string, len(f.params))
	for i, a := range f.params {
		params[i] = typed(a)
	}
	if f.sig.Variadic {
		params = append(params, "...")
	}
	return fmt.Sprintf("%s %s @%s(%s)", kind, f.sig.Ret, f.name, strings.Join(params, ", "))
}

// Module returns the module of the function.
func (f *Function) Module() *Module { return f.module }

// Signature returns the function type of f.
func (f *Function) Signature() *FuncType { return f.sig }

// ReturnType returns the result type of f.
func (f *Function) ReturnType() Type { return f.sig.Ret }

// Params returns the formal parameters of f.
func (f *Function) Params() []*Argument { return f.params }

// Blocks returns the basic blocks of f; the first one is the entry.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

// Entry returns the entry block, or nil for a declaration.
func (f *Function) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// IsDeclaration returns true if f has no body.
func (f *Function) IsDeclaration() bool { return len(f.blocks) == 0 }

// IsIntrinsic returns true if f is a compiler intrinsic.
func (f *Function) IsIntrinsic() bool { return f.Intrinsic }

// HasAddressTaken returns true if f has at least one use that is not the callee operand of a call or invoke.
// Uses in constant expressions and global initializers count.
func (f *Function) HasAddressTaken() bool {
	for _, u := range f.uses {
		switch u := u.(type) {
		case *Call:
			if u.Callee() != Value(f) || countOperand(u, f) > 1 {
				return true
			}
		case *Invoke:
			if u.Callee() != Value(f) || countOperand(u, f) > 1 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

func countOperand(u User, v Value) int {
	n := 0
	for _, op := range u.Operands() {
		if op == v {
			n++
		}
	}
	return n
}

// DeleteBody turns f into a declaration. The removed instructions stop using their operands.
func (f *Function) DeleteBody() {
	for _, b := range f.blocks {
		for _, i := range b.instrs {
			for _, op := range i.Operands() {
				op.removeUse(i)
			}
		}
	}
	f.blocks = nil
	f.nextID = 0
}

// NewBlock appends a new basic block to f.
func (f *Function) NewBlock(name string) *BasicBlock {
	if name == "" {
		name = f.nextName()
	}
	b := &BasicBlock{name: name, parent: f}
	f.blocks = append(f.blocks, b)
	return b
}

func (f *Function) nextName() string {
	n := strconv.Itoa(f.nextID)
	f.nextID++
	return n
}

// BasicBlock is a sequence of instructions ending with a terminator.
type BasicBlock struct {
	name   string
	parent *Function
	instrs []Instruction
}

// Name returns the label of the block.
func (b *BasicBlock) Name() string { return b.name }

// Ident returns the block as a label operand.
func (b *BasicBlock) Ident() string { return "%" + b.name }

func (b *BasicBlock) String() string { return "label " + b.Ident() }

// Parent returns the function of the block.
func (b *BasicBlock) Parent() *Function { return b.parent }

// Instructions returns the instructions of the block. The returned slice must not be modified.
func (b *BasicBlock) Instructions() []Instruction { return b.instrs }

// Index returns the position of the block in its function.
func (b *BasicBlock) Index() int {
	for i, x := range b.parent.blocks {
		if x == b {
			return i
		}
	}
	return -1
}

// Terminator returns the last instruction of the block if it is a terminator, or nil.
func (b *BasicBlock) Terminator() Instruction {
	if len(b.instrs) == 0 {
		return nil
	}
	last := b.instrs[len(b.instrs)-1]
	if IsTerminator(last) {
		return last
	}
	return nil
}

// Succs returns the successors of the block, as given by its terminator.
func (b *BasicBlock) Succs() []*BasicBlock {
	if t := b.Terminator(); t != nil {
		return Successors(t)
	}
	return nil
}

// Preds returns the predecessors of the block, in block order, without duplicates.
func (b *BasicBlock) Preds() []*BasicBlock {
	var preds []*BasicBlock
	for _, p := range b.parent.blocks {
		for _, s := range p.Succs() {
			if s == b {
				preds = append(preds, p)
				break
			}
		}
	}
	return preds
}

// FirstInsertionPt returns the first instruction of the block that is neither a phi nor a landing pad, or nil if
// there is none.
func (b *BasicBlock) FirstInsertionPt() Instruction {
	for _, i := range b.instrs {
		switch i.(type) {
		case *Phi, *LandingPad:
			continue
		}
		return i
	}
	return nil
}

func (b *BasicBlock) indexOf(instr Instruction) int {
	for i, x := range b.instrs {
		if x == instr {
			return i
		}
	}
	return -1
}

// insert places instr before pos, or at the end of the block when pos is nil.
func (b *BasicBlock) insert(instr Instruction, pos Instruction) {
	instr.setBlock(b)
	if pos == nil {
		b.instrs = append(b.instrs, instr)
		return
	}
	k := b.indexOf(pos)
	if k < 0 {
		panic(fmt.Sprintf("insertion point %s is not in block %s", pos, b.name))
	}
	b.instrs = append(b.instrs, nil)
	copy(b.instrs[k+1:], b.instrs[k:])
	b.instrs[k] = instr
}
