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
	"strings"
	"testing"
)

func TestTypesAreUniqued(t *testing.T) {
	c := NewContext()
	if c.Int(32) != c.I32() {
		t.Errorf("i32 not uniqued")
	}
	if c.Pointer(c.I8()) != c.I8Ptr() {
		t.Errorf("i8* not uniqued")
	}
	f1 := c.Func(c.Void(), []Type{c.I8Ptr(), c.I64()}, false)
	f2 := c.Func(c.Void(), []Type{c.I8Ptr(), c.I64()}, false)
	if f1 != f2 {
		t.Errorf("function types not uniqued")
	}
	if c.Func(c.Void(), []Type{c.I8Ptr(), c.I64()}, true) == f1 {
		t.Errorf("variadic and non-variadic function types should differ")
	}
	if c.Struct(c.I32(), c.I8Ptr()) != c.Struct(c.I32(), c.I8Ptr()) {
		t.Errorf("literal structures not uniqued")
	}
	if c.NamedStruct("struct.a") != c.NamedStruct("struct.a") {
		t.Errorf("named structures not unique per name")
	}
	if c.Array(c.I8(), 4) == c.Array(c.I8(), 5) {
		t.Errorf("arrays of different lengths are identical")
	}
}

func TestTypeStrings(t *testing.T) {
	c := NewContext()
	node := c.NamedStruct("struct.node")
	node.SetBody(c.I32(), c.Pointer(node))
	tests := []struct {
		typ  Type
		want string
	}{
		{c.I1(), "i1"},
		{c.Float(64), "double"},
		{c.Pointer(c.Pointer(c.I8())), "i8**"},
		{c.Func(c.I32(), []Type{c.I8Ptr()}, true), "i32 (i8*, ...)"},
		{c.Array(c.I64(), 3), "[3 x i64]"},
		{c.Vector(c.I8Ptr(), 2), "<2 x i8*>"},
		{c.Struct(c.I32(), node), "{ i32, %struct.node }"},
		{node, "%struct.node"},
	}
	for _, test := range tests {
		if got := test.typ.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
	if got := node.Body(); got != "{ i32, %struct.node* }" {
		t.Errorf("Body() = %q", got)
	}
}

func TestCreateNamedStructSuffix(t *testing.T) {
	c := NewContext()
	a := c.CreateNamedStruct("struct.conn", c.I32())
	b := c.CreateNamedStruct("struct.conn", c.I32())
	if a.Name() != "struct.conn" || b.Name() != "struct.conn.1" {
		t.Errorf("got names %q and %q", a.Name(), b.Name())
	}
	if len(c.Structs()) != 2 {
		t.Errorf("expected 2 named structures, got %d", len(c.Structs()))
	}
	if !c.NamedStruct("struct.opaque").IsOpaque() {
		t.Errorf("forward declared structure should be opaque")
	}
}

func TestBuilderAndPrinting(t *testing.T) {
	m := NewModule("test")
	c := m.Context()
	fnType := c.Func(c.Void(), nil, false)
	g := m.NewGlobal("handler", c.Pointer(fnType))
	f := m.NewFunction("main", c.Func(c.I32(), []Type{c.I32()}, false), "x")
	entry := f.NewBlock("entry")
	b := NewBuilder(m)
	b.SetInsertPoint(entry)
	b.SetLoc(&DebugLoc{Dir: "/src", File: "main.c", Line: 3})
	p := b.Load(g, "")
	b.Call(p, nil, "")
	b.Ret(f.Params()[0])

	text := m.String()
	for _, want := range []string{
		"@handler = external global void ()*",
		"define i32 @main(i32 %x) {",
		"%0 = load void ()*, void ()** @handler ; /src/main.c:3",
		"call void %0()",
		"ret i32 %x",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("module text does not contain %q:\n%s", want, text)
		}
	}
	if len(p.Uses()) != 1 {
		t.Errorf("load should have one use, has %d", len(p.Uses()))
	}
	if len(g.Uses()) != 1 {
		t.Errorf("global should have one use, has %d", len(g.Uses()))
	}
}

func TestAddressTaken(t *testing.T) {
	m := NewModule("test")
	c := m.Context()
	sig := c.Func(c.Void(), nil, false)
	called := m.NewFunction("called", sig)
	stored := m.NewFunction("stored", sig)
	casted := m.NewFunction("casted", sig)
	inTable := m.NewFunction("inTable", sig)
	main := m.NewFunction("main", sig)

	table := m.NewGlobal("table", c.Array(c.Pointer(sig), 1))
	table.SetInitializer(NewConstAggregate(table.ValueType, inTable))

	b := NewBuilder(m)
	b.SetInsertPoint(main.NewBlock("entry"))
	slot := b.Alloca(c.Pointer(sig), "slot")
	b.Call(called, nil, "")
	b.Store(stored, slot)
	other := c.Pointer(c.Func(c.Void(), []Type{c.I32()}, false))
	b.Call(NewBitCastExpr(casted, other), []Value{NewConstInt(c.I32(), 1)}, "")
	b.Ret(nil)

	tests := map[*Function]bool{called: false, stored: true, casted: true, inTable: true, main: false}
	for f, want := range tests {
		if got := f.HasAddressTaken(); got != want {
			t.Errorf("%s: HasAddressTaken() = %v, want %v", f.Name(), got, want)
		}
	}
}

// buildPhiModule builds a function where a phi receives the same bitcast expression from two entries coming
// from the same predecessor, and from another predecessor.
func buildPhiModule() (*Module, *Phi, *BasicBlock, *BasicBlock) {
	m := NewModule("phi")
	c := m.Context()
	g := m.NewGlobal("g", c.I32())
	f := m.NewFunction("f", c.Func(c.I8Ptr(), []Type{c.I1()}, false), "c")
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	join := f.NewBlock("join")
	b := NewBuilder(m)
	b.SetInsertPoint(entry)
	b.CondBr(f.Params()[0], left, right)
	b.SetInsertPoint(left)
	b.Br(join)
	b.SetInsertPoint(right)
	b.Br(join)
	b.SetInsertPoint(join)
	phi := b.Phi(c.I8Ptr(), "p")
	e := NewBitCastExpr(g, c.I8Ptr())
	phi.AddIncoming(e, left)
	phi.AddIncoming(e, left)
	phi.AddIncoming(e, right)
	b.Ret(phi)
	return m, phi, left, right
}

func TestMaterializePhi(t *testing.T) {
	m, phi, left, right := buildPhiModule()
	n := MaterializeConstantExprs(m)
	if n != 2 {
		t.Fatalf("expected 2 materialized instructions, got %d", n)
	}
	if phi.IncomingValue(0) != phi.IncomingValue(1) {
		t.Errorf("entries from the same predecessor should share the materialized instruction")
	}
	if phi.IncomingValue(0) == phi.IncomingValue(2) {
		t.Errorf("entries from different predecessors should not share an instruction")
	}
	for k, block := range []*BasicBlock{left, left, right} {
		i, ok := phi.IncomingValue(k).(*Cast)
		if !ok {
			t.Fatalf("entry %d is %T, want *Cast", k, phi.IncomingValue(k))
		}
		if i.Block() != block {
			t.Errorf("entry %d materialized in %s, want %s", k, i.Block().Name(), block.Name())
		}
		if i.MaterializedFrom() == nil {
			t.Errorf("entry %d has no originating expression", k)
		}
	}
	if MaterializeConstantExprs(m) != 0 {
		t.Errorf("second run should not change the module")
	}
}

func TestMaterializeNested(t *testing.T) {
	m := NewModule("nested")
	c := m.Context()
	sig := c.Func(c.Void(), nil, false)
	s := c.CreateNamedStruct("struct.ops", c.I64(), c.Pointer(sig))
	g := m.NewGlobal("ops", s)
	f := m.NewFunction("f", sig)
	b := NewBuilder(m)
	b.SetInsertPoint(f.NewBlock("entry"))
	field := NewGEPExpr(g, NewConstInt(c.I64(), 0), NewConstInt(c.I32(), 1))
	cast := NewBitCastExpr(field, c.Pointer(c.I8Ptr()))
	load := b.Load(cast, "")
	b.Ret(nil)

	if n := MaterializeConstantExprs(m); n != 2 {
		t.Fatalf("expected 2 materialized instructions, got %d", n)
	}
	bc, ok := load.Pointer().(*Cast)
	if !ok {
		t.Fatalf("load pointer is %T, want *Cast", load.Pointer())
	}
	gep, ok := bc.Source().(*GetElementPtr)
	if !ok {
		t.Fatalf("cast source is %T, want *GetElementPtr", bc.Source())
	}
	if gep.Base() != Value(g) {
		t.Errorf("gep base is %s, want @ops", gep.Base().Ident())
	}
	instrs := f.Entry().Instructions()
	if instrs[0] != Instruction(gep) || instrs[1] != Instruction(bc) || instrs[2] != Instruction(load) {
		t.Errorf("unexpected order:\n%s", m)
	}
	if len(cast.Uses()) != 0 {
		t.Errorf("the replaced expression is still used")
	}
	if MaterializeConstantExprs(m) != 0 {
		t.Errorf("second run should not change the module")
	}
}

func TestPredsAndInsertionPoint(t *testing.T) {
	m, phi, left, right := buildPhiModule()
	join := phi.Block()
	preds := join.Preds()
	if len(preds) != 2 || preds[0] != left || preds[1] != right {
		t.Errorf("unexpected predecessors of join")
	}
	if _, ok := join.FirstInsertionPt().(*Ret); !ok {
		t.Errorf("first insertion point should skip the phi")
	}
	if len(m.Function("f").Entry().Succs()) != 2 {
		t.Errorf("entry should have two successors")
	}
}
