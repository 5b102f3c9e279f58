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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-crd/analysis/ir"
	"github.com/google/go-cmp/cmp"
)

// A global of function pointer type is a source only if it is used.
func TestGlobalSources(t *testing.T) {
	m := ir.NewModule("globals")
	c := m.Context()
	sig := c.Func(c.Void(), nil, false)
	used := m.NewGlobal("used", c.Pointer(sig))
	unused := m.NewGlobal("unused", c.Pointer(sig))
	counter := m.NewGlobal("counter", c.I64())
	main := m.NewFunction("main", sig)
	b := ir.NewBuilder(m)
	b.SetInsertPoint(main.NewBlock("entry"))
	fp := b.Load(used, "fp")
	b.Call(fp, nil, "")
	b.Load(counter, "n")
	b.Ret(nil)

	s := newTestState(m)
	res, err := Analyze(s)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	expectIn(t, s.Sources, "sources", used, fp)
	expectNotIn(t, s.Sources, "sources", unused, counter)
	if diff := cmp.Diff([]string{"@used"}, describeAll(res.MemoryObjects)); diff != "" {
		t.Errorf("memory objects mismatch (-want +got):\n%s", diff)
	}
}

// newBranchModule builds:
//
//	f(i32 x): c = x == 0; br c, left, right
//	left: a = load @g1      right: b = load @g2
//	join: p = phi [a, left], [b, right]; call p()
//	main: v = load @mode; call f(v)
func newBranchModule() *ir.Module {
	m := ir.NewModule("branch")
	c := m.Context()
	sig := c.Func(c.Void(), nil, false)
	g1 := m.NewGlobal("g1", c.Pointer(sig))
	g2 := m.NewGlobal("g2", c.Pointer(sig))
	mode := m.NewGlobal("mode", c.I32())

	f := m.NewFunction("f", c.Func(c.Void(), []ir.Type{c.I32()}, false), "x")
	entry, left, right, join := f.NewBlock("entry"), f.NewBlock("left"), f.NewBlock("right"), f.NewBlock("join")
	b := ir.NewBuilder(m)
	b.SetInsertPoint(entry)
	cond := b.Cmp("eq", f.Params()[0], ir.NewConstInt(c.I32(), 0), "c")
	b.CondBr(cond, left, right)
	b.SetInsertPoint(left)
	a := b.Load(g1, "a")
	b.Br(join)
	b.SetInsertPoint(right)
	bb := b.Load(g2, "b")
	b.Br(join)
	b.SetInsertPoint(join)
	phi := b.Phi(c.Pointer(sig), "p")
	phi.AddIncoming(a, left)
	phi.AddIncoming(bb, right)
	b.Call(phi, nil, "")
	b.Ret(nil)

	main := m.NewFunction("main", sig)
	b.SetInsertPoint(main.NewBlock("entry"))
	v := b.Load(mode, "v")
	b.Call(f, []ir.Value{v}, "")
	b.Ret(nil)
	return m
}

func TestBranchConditionOfTaintedPhi(t *testing.T) {
	m := newBranchModule()
	f, main := m.Function("f"), m.Function("main")
	cond := f.Blocks()[0].Instructions()[0]
	x := f.Params()[0]
	v := main.Entry().Instructions()[0]

	oracle := &mapOracle{objects: map[ir.Value][]ir.Value{m.Global("mode"): {m.Global("mode"), f}}}
	s := newTestState(m)
	s.Oracle = oracle
	res, err := Analyze(s)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !oracle.initialized {
		t.Errorf("the oracle was not initialized")
	}
	expectNotIn(t, s.Tainted, "tainted", cond, x, v)
	expectIn(t, s.ControlRelated, "control-related", cond, x, v)
	for tainted := range s.Tainted {
		if !s.ControlRelated.Has(tainted) {
			t.Errorf("%s is tainted but not control-related", describe(tainted))
		}
	}
	if diff := cmp.Diff([]string{"@g1", "@g2", "@mode"}, describeAll(res.MemoryObjects)); diff != "" {
		t.Errorf("memory objects mismatch (-want +got):\n%s", diff)
	}
}

func TestSwitchCondition(t *testing.T) {
	m := ir.NewModule("switch")
	c := m.Context()
	sig := c.Func(c.Void(), nil, false)
	g1 := m.NewGlobal("g1", c.Pointer(sig))
	f := m.NewFunction("f", c.Func(c.Void(), []ir.Type{c.I32()}, false), "k")
	entry, one, other, join := f.NewBlock("entry"), f.NewBlock("one"), f.NewBlock("other"), f.NewBlock("join")
	b := ir.NewBuilder(m)
	b.SetInsertPoint(entry)
	slot := b.Alloca(c.I32(), "slot")
	b.Store(f.Params()[0], slot)
	k := b.Load(slot, "kk")
	b.Switch(k, other, ir.SwitchCase{Value: ir.NewConstInt(c.I32(), 1), Target: one})
	b.SetInsertPoint(one)
	a := b.Load(g1, "a")
	b.Br(join)
	b.SetInsertPoint(other)
	b.Br(join)
	b.SetInsertPoint(join)
	phi := b.Phi(c.Pointer(sig), "p")
	phi.AddIncoming(a, one)
	phi.AddIncoming(ir.NewConstNull(c.Pointer(sig)), other)
	b.Call(phi, nil, "")
	b.Ret(nil)

	s := newTestState(m)
	if _, err := Analyze(s); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	expectIn(t, s.ControlRelated, "control-related", k)
	// the closure stops at loads
	expectNotIn(t, s.ControlRelated, "control-related", slot, f.Params()[0])
	if diff := cmp.Diff([]string{"@g1"}, describeAll(s.MemoryObjects.Ordered(s.Index()))); diff != "" {
		t.Errorf("memory objects mismatch (-want +got):\n%s", diff)
	}
}

func TestArgumentsResolvedThroughIndirectCalls(t *testing.T) {
	m := ir.NewModule("indirect")
	c := m.Context()
	fn := c.Func(c.Void(), nil, false)
	cbSig := c.Func(c.Void(), []ir.Type{c.I32()}, false)
	g := m.NewGlobal("g", c.Pointer(fn))
	cbPtr := m.NewGlobal("cb", c.Pointer(cbSig))
	level := m.NewGlobal("level", c.I32())

	// cb(i32 n) selects a handler with n
	cb := m.NewFunction("cb", cbSig, "n")
	cbPtr.SetInitializer(cb)
	b := ir.NewBuilder(m)
	b.SetInsertPoint(cb.NewBlock("entry"))
	h := b.Load(g, "h")
	sel := b.Select(b.Cmp("sgt", cb.Params()[0], ir.NewConstInt(c.I32(), 2), "big"), h,
		ir.NewConstNull(c.Pointer(fn)), "sel")
	b.Call(sel, nil, "")
	b.Ret(nil)

	main := m.NewFunction("main", c.Func(c.Void(), nil, false))
	b.SetInsertPoint(main.NewBlock("entry"))
	lv := b.Load(level, "lv")
	inc := b.BinOp("add", lv, ir.NewConstInt(c.I32(), 1), "inc")
	fp := b.Load(cbPtr, "fp")
	b.Call(fp, []ir.Value{inc}, "")
	b.Ret(nil)

	s := newTestState(m)
	if _, err := Analyze(s); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	expectIn(t, s.ControlRelated, "control-related", cb.Params()[0], inc, lv)
	expectNotIn(t, s.ControlRelated, "control-related", level)
}

func TestWriteControlRelated(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main() {\n    fp = handler;\n}\n"),
		0o600); err != nil {
		t.Fatalf("could not write source: %v", err)
	}
	m := ir.NewModule("report")
	c := m.Context()
	sig := c.Func(c.Void(), nil, false)
	handler := m.NewGlobal("handler", c.Pointer(sig))
	main := m.NewFunction("main", sig)
	b := ir.NewBuilder(m)
	b.SetInsertPoint(main.NewBlock("entry"))
	b.SetLoc(&ir.DebugLoc{Dir: dir, File: "main.c", Line: 2})
	fp := b.Load(handler, "fp")
	b.SetLoc(&ir.DebugLoc{Dir: dir, File: "missing.c", Line: 3})
	fp2 := b.Load(handler, "fp2")
	b.SetLoc(nil)
	b.Call(fp, nil, "")
	b.Call(fp2, nil, "")
	b.Ret(nil)

	s := newTestState(m)
	res, err := Analyze(s)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	var sb strings.Builder
	if err := WriteControlRelated(&sb, s, NewSourceCache()); err != nil {
		t.Fatalf("could not write report: %v", err)
	}
	want := "0: @handler = external global void ()*\n" +
		"1: fp = handler;(" + filepath.Join(dir, "main.c") + ":2)\n" +
		"\t%fp = load void ()*, void ()** @handler in main\n" +
		"2: (" + filepath.Join(dir, "missing.c") + ":3)\n" +
		"\t%fp2 = load void ()*, void ()** @handler in main\n"
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	sb.Reset()
	if err := WriteMemoryObjects(&sb, res.MemoryObjects); err != nil {
		t.Fatalf("could not write memory objects: %v", err)
	}
	if got := sb.String(); got != "0: @handler = external global void ()*\n" {
		t.Errorf("unexpected memory objects %q", got)
	}
	if !strings.HasPrefix(res.Summary(), "3 sources, 3 tainted values") {
		t.Errorf("unexpected summary %q", res.Summary())
	}
}

func TestSourceCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("package a\n\n\tfunc f() {}\n"), 0o600); err != nil {
		t.Fatalf("could not write source: %v", err)
	}
	cache := NewSourceCache()
	if line, ok := cache.Line(path, 3); !ok || line != "func f() {}" {
		t.Errorf("Line(3) = %q, %v", line, ok)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("could not remove source: %v", err)
	}
	if line, ok := cache.Line(path, 1); !ok || line != "package a" {
		t.Errorf("cached lines should be used after the file is removed, got %q, %v", line, ok)
	}
	if _, ok := cache.Line(path, 4); ok {
		t.Errorf("line beyond the end of file should not be found")
	}
	if _, ok := cache.Line(filepath.Join(dir, "none.go"), 1); ok {
		t.Errorf("line of a missing file should not be found")
	}
}
