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
	"testing"

	"github.com/awslabs/ar-go-crd/analysis/ir"
	"github.com/google/go-cmp/cmp"
)

type ruleCase struct {
	taint   []ir.Value
	want    []ir.Value
	notWant []ir.Value
}

// TestIntraproceduralRules checks each rule with one sweep over a function with a single block.
func TestIntraproceduralRules(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		build  func(b *ir.Builder, f *ir.Function) ruleCase
	}{
		{"load taints its result", nil, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := b.Alloca(b.Context().I8Ptr(), "p")
			l := b.Load(p, "l")
			return ruleCase{taint: []ir.Value{p}, want: []ir.Value{l}}
		}},
		{"load result does not taint the pointer", nil, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := b.Alloca(b.Context().I8Ptr(), "p")
			l := b.Load(p, "l")
			return ruleCase{taint: []ir.Value{l}, notWant: []ir.Value{p}}
		}},
		{"store from value", []string{"v"}, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := b.Alloca(b.Context().I8Ptr(), "p")
			st := b.Store(f.Params()[0], p)
			return ruleCase{taint: []ir.Value{f.Params()[0]}, want: []ir.Value{p, st}}
		}},
		{"store from pointer", []string{"v"}, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := b.Alloca(b.Context().I8Ptr(), "p")
			st := b.Store(f.Params()[0], p)
			return ruleCase{taint: []ir.Value{p}, want: []ir.Value{f.Params()[0], st}}
		}},
		{"bitcast both ways", nil, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := b.Alloca(b.Context().I8Ptr(), "p")
			cast := b.BitCast(p, b.Context().Pointer(b.Context().I64()), "c")
			return ruleCase{taint: []ir.Value{cast}, want: []ir.Value{p}}
		}},
		{"ptrtoint both ways", nil, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := b.Alloca(b.Context().I8Ptr(), "p")
			cast := b.Cast(ir.PtrToInt, p, b.Context().I64(), "c")
			return ruleCase{taint: []ir.Value{p}, want: []ir.Value{cast}}
		}},
		{"truncation does not propagate", nil, func(b *ir.Builder, f *ir.Function) ruleCase {
			x := b.Alloca(b.Context().I64(), "x")
			l := b.Load(x, "l")
			cast := b.Cast(ir.Trunc, l, b.Context().I32(), "c")
			return ruleCase{taint: []ir.Value{l}, notWant: []ir.Value{cast}}
		}},
		{"getelementptr from base", nil, func(b *ir.Builder, f *ir.Function) ruleCase {
			c := b.Context()
			s := b.Alloca(c.Struct(c.I32(), c.I8Ptr()), "s")
			g := b.StructGEP(s, 1, "g")
			return ruleCase{taint: []ir.Value{s}, want: []ir.Value{g}}
		}},
		{"getelementptr result does not taint the base", nil, func(b *ir.Builder, f *ir.Function) ruleCase {
			c := b.Context()
			s := b.Alloca(c.Struct(c.I32(), c.I8Ptr()), "s")
			g := b.StructGEP(s, 1, "g")
			return ruleCase{taint: []ir.Value{g}, notWant: []ir.Value{s}}
		}},
		{"select taints its operands", []string{"cond", "x", "y"}, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := f.Params()
			sel := b.Select(p[0], p[1], p[2], "sel")
			return ruleCase{taint: []ir.Value{sel}, want: []ir.Value{p[1], p[2]}, notWant: []ir.Value{p[0]}}
		}},
		{"select operand does not taint the result", []string{"cond", "x", "y"},
			func(b *ir.Builder, f *ir.Function) ruleCase {
				p := f.Params()
				sel := b.Select(p[0], p[1], p[2], "sel")
				return ruleCase{taint: []ir.Value{p[1]}, notWant: []ir.Value{sel, p[2]}}
			}},
		{"extractvalue from container", []string{"agg"}, func(b *ir.Builder, f *ir.Function) ruleCase {
			e := b.ExtractValue(f.Params()[0], []int{0}, "e")
			return ruleCase{taint: []ir.Value{f.Params()[0]}, want: []ir.Value{e}}
		}},
		{"extracted element does not taint the container", []string{"agg"},
			func(b *ir.Builder, f *ir.Function) ruleCase {
				e := b.ExtractValue(f.Params()[0], []int{0}, "e")
				return ruleCase{taint: []ir.Value{e}, notWant: []ir.Value{f.Params()[0]}}
			}},
		{"insertvalue from element", []string{"agg", "v"}, func(b *ir.Builder, f *ir.Function) ruleCase {
			p := f.Params()
			iv := b.InsertValue(p[0], p[1], []int{0}, "iv")
			return ruleCase{taint: []ir.Value{p[1]}, want: []ir.Value{p[0], iv}}
		}},
		{"extractelement from vector", []string{"vec"}, func(b *ir.Builder, f *ir.Function) ruleCase {
			c := b.Context()
			vec := b.Alloca(c.Vector(c.I8Ptr(), 2), "vp")
			lv := b.Load(vec, "v")
			e := b.ExtractElement(lv, ir.NewConstInt(c.I32(), 1), "e")
			return ruleCase{taint: []ir.Value{lv}, want: []ir.Value{e}}
		}},
		{"insertelement from element", []string{"vec"}, func(b *ir.Builder, f *ir.Function) ruleCase {
			c := b.Context()
			vec := b.Alloca(c.Vector(c.I8Ptr(), 2), "vp")
			lv := b.Load(vec, "v")
			elt := b.Load(b.Alloca(c.I8Ptr(), "ep"), "elt")
			ie := b.InsertElement(lv, elt, ir.NewConstInt(c.I32(), 0), "ie")
			return ruleCase{taint: []ir.Value{elt}, want: []ir.Value{lv, ie}}
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := ir.NewModule("rules")
			c := m.Context()
			agg := c.Struct(c.I8Ptr(), c.I32())
			// parameters are typed by name
			paramTypes := map[string]ir.Type{"v": c.I8Ptr(), "cond": c.I1(), "x": c.I8Ptr(), "y": c.I8Ptr(),
				"agg": agg, "vec": c.I32()}
			var types []ir.Type
			for _, p := range test.params {
				types = append(types, paramTypes[p])
			}
			f := m.NewFunction("f", c.Func(c.Void(), types, false), test.params...)
			b := ir.NewBuilder(m)
			b.SetInsertPoint(f.NewBlock("entry"))
			rc := test.build(b, f)
			b.Ret(nil)

			s := prepare(newTestState(m))
			for _, v := range rc.taint {
				s.Tainted.Add(v)
			}
			if len(rc.want) > 0 && !s.propagateInFunction(f) {
				t.Errorf("sweep should report a change")
			}
			expectIn(t, s.Tainted, "tainted", rc.want...)
			expectNotIn(t, s.Tainted, "tainted", rc.notWant...)
		})
	}
}

func TestReturnPropagation(t *testing.T) {
	m := ir.NewModule("ret")
	c := m.Context()
	i8p := c.I8Ptr()
	handlerType := c.Pointer(c.Func(c.Void(), nil, false))
	table := m.NewGlobal("table", handlerType)

	// get returns either a handler or some other pointer, on two return instructions
	get := m.NewFunction("get", c.Func(i8p, []ir.Type{c.I1()}, false), "which")
	b := ir.NewBuilder(m)
	b.SetInsertPoint(get.NewBlock("entry"))
	left, right := get.NewBlock("left"), get.NewBlock("right")
	b.CondBr(get.Params()[0], left, right)
	b.SetInsertPoint(left)
	h := b.Load(table, "h")
	hb := b.BitCast(h, i8p, "hb")
	ret1 := b.Ret(hb)
	b.SetInsertPoint(right)
	other := b.Alloca(c.I8(), "other")
	ret2 := b.Ret(other)

	main := m.NewFunction("main", c.Func(c.Void(), nil, false))
	b.SetInsertPoint(main.NewBlock("entry"))
	r := b.Call(get, []ir.Value{ir.NewConstInt(c.I1(), 1)}, "r")
	b.Ret(nil)

	s := newTestState(m)
	if _, err := Analyze(s); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !s.IsTaintReturning(get) {
		t.Errorf("get should return tainted values")
	}
	expectIn(t, s.Tainted, "tainted", hb, other, ret1, ret2, r)
	if diff := cmp.Diff([]string{"get:%hb", "get:%other"}, describeAll(s.ReturnedValues(get))); diff != "" {
		t.Errorf("returned values mismatch (-want +got):\n%s", diff)
	}
}

// Data movement functions copy taint between their first two arguments, in one step.
func TestDataMovement(t *testing.T) {
	for _, name := range []string{"memcpy", "llvm.memcpy.p0i8.p0i8.i64", "runtime.memmove"} {
		for _, fromSource := range []bool{true, false} {
			m := ir.NewModule("copy")
			c := m.Context()
			i8p := c.I8Ptr()
			memcpy := m.NewFunction(name, c.Func(i8p, []ir.Type{i8p, i8p, c.I64()}, false), "dst", "src", "n")
			f := m.NewFunction("f", c.Func(c.Void(), []ir.Type{i8p, i8p, c.I64()}, false), "dst", "src", "n")
			b := ir.NewBuilder(m)
			b.SetInsertPoint(f.NewBlock("entry"))
			dst, src, n := f.Params()[0], f.Params()[1], f.Params()[2]
			call := b.Call(memcpy, []ir.Value{dst, src, n}, "")
			b.Ret(nil)

			s := prepare(newTestState(m))
			tainted, expected := src, ir.Value(dst)
			if !fromSource {
				tainted, expected = dst, src
			}
			s.Tainted.Add(tainted)
			if !s.HandleCallSite(call, memcpy) {
				t.Errorf("%s: first pass should change the tainted set", name)
			}
			expectIn(t, s.Tainted, "tainted", expected)
			expectNotIn(t, s.Tainted, "tainted", n, call, memcpy.Params()[0], memcpy.Params()[1])
			if s.HandleCallSite(call, memcpy) {
				t.Errorf("%s: second pass should not report a change", name)
			}
		}
	}
}

// Calls to ignored functions never propagate taint.
func TestIgnoredFunction(t *testing.T) {
	m := ir.NewModule("ignore")
	c := m.Context()
	i8p := c.I8Ptr()
	handler := m.NewGlobal("handler", c.Pointer(c.Func(c.Void(), nil, false)))
	strcpy := m.NewFunction("strcpy", c.Func(i8p, []ir.Type{i8p, i8p}, false), "dst", "src")
	main := m.NewFunction("main", c.Func(c.Void(), nil, false))
	b := ir.NewBuilder(m)
	b.SetInsertPoint(main.NewBlock("entry"))
	p := b.BitCast(handler, i8p, "p")
	buf := b.Alloca(c.I8(), "buf")
	r := b.Call(strcpy, []ir.Value{buf, p}, "r")
	b.Ret(nil)

	s := newTestState(m)
	if _, err := Analyze(s); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	expectIn(t, s.Tainted, "tainted", handler, p)
	expectNotIn(t, s.Tainted, "tainted", buf, r, strcpy.Params()[0], strcpy.Params()[1])
	if s.HandleCallSite(r, strcpy) {
		t.Errorf("an ignored function should never report a change")
	}
}

func TestParametersAndVariadicArguments(t *testing.T) {
	m := ir.NewModule("params")
	c := m.Context()
	i8p := c.I8Ptr()
	fnp := c.Pointer(c.Func(c.Void(), nil, false))
	handler := m.NewGlobal("handler", fnp)
	use := m.NewFunction("use", c.Func(c.Void(), []ir.Type{i8p, c.I32()}, false), "p", "n")
	logf := m.NewFunction("logf", c.Func(c.Void(), []ir.Type{i8p}, true), "format")
	intrinsic := m.NewFunction("llvm.donothing", c.Func(c.Void(), []ir.Type{i8p}, false), "p")

	main := m.NewFunction("main", c.Func(c.Void(), nil, false))
	b := ir.NewBuilder(m)
	b.SetInsertPoint(main.NewBlock("entry"))
	h := b.Load(handler, "h")
	hb := b.BitCast(h, i8p, "hb")
	useCall := b.Call(use, []ir.Value{hb, ir.NewConstInt(c.I32(), 3)}, "")
	format := b.Alloca(c.I8(), "format")
	logCall := b.Call(logf, []ir.Value{format, hb}, "")
	intrinsicCall := b.Call(intrinsic, []ir.Value{hb}, "")
	b.Ret(nil)

	s := prepare(newTestState(m))
	s.Tainted.Add(hb)
	if !s.HandleCallSite(useCall, use) {
		t.Errorf("passing a tainted argument should change the tainted set")
	}
	expectIn(t, s.Tainted, "tainted", use.Params()[0])
	expectNotIn(t, s.Tainted, "tainted", use.Params()[1])

	if !s.HandleCallSite(logCall, logf) {
		t.Errorf("a tainted variadic argument should be reported as a change")
	}
	if !s.ReceivesTaintedVarArgs(logf) {
		t.Errorf("logf should receive tainted variadic arguments")
	}
	expectNotIn(t, s.Tainted, "tainted", logf.Params()[0], format)
	if s.HandleCallSite(logCall, logf) {
		t.Errorf("second pass should not report a change")
	}

	if s.HandleCallSite(intrinsicCall, intrinsic) {
		t.Errorf("intrinsics do not propagate")
	}
	expectNotIn(t, s.Tainted, "tainted", intrinsic.Params()[0])
}

func TestVaListAccess(t *testing.T) {
	for _, tainted := range []bool{true, false} {
		m := ir.NewModule("valist")
		c := m.Context()
		vaList := c.CreateNamedStruct("struct.__va_list_tag", c.I8(), c.I8Ptr())
		f := m.NewFunction("logf", c.Func(c.Void(), []ir.Type{c.I8Ptr()}, true), "format")
		b := ir.NewBuilder(m)
		b.SetInsertPoint(f.NewBlock("entry"))
		ap := b.Alloca(vaList, "ap")
		g := b.StructGEP(ap, 0, "g")
		b.Ret(nil)

		s := prepare(newTestState(m))
		s.taintedVarArgs[f] = tainted
		s.propagateInFunction(f)
		if s.Tainted.Has(g) != tainted {
			t.Errorf("variadic list access tainted = %v, want %v", s.Tainted.Has(g), tainted)
		}
		expectNotIn(t, s.Tainted, "tainted", ap)
	}
}

// newDispatchModule builds a module where handlers are stored in a table, selected, passed around and called.
func newDispatchModule() *ir.Module {
	m := ir.NewModule("dispatch")
	c := m.Context()
	i8p := c.I8Ptr()
	sig := c.Func(c.Void(), []ir.Type{i8p}, false)
	fnp := c.Pointer(sig)
	onRead := m.NewFunction("on_read", sig, "ctx")
	onWrite := m.NewFunction("on_write", sig, "ctx")
	table := m.NewGlobal("handlers", c.Array(fnp, 2))
	table.SetInitializer(ir.NewConstAggregate(table.ValueType, onRead, onWrite))
	current := m.NewGlobal("current", fnp)

	b := ir.NewBuilder(m)
	for _, f := range []*ir.Function{onRead, onWrite} {
		b.SetInsertPoint(f.NewBlock("entry"))
		b.Ret(nil)
	}

	// install(i8* h) stores the handler in current
	install := m.NewFunction("install", c.Func(c.Void(), []ir.Type{i8p}, false), "h")
	b.SetInsertPoint(install.NewBlock("entry"))
	hc := b.BitCast(install.Params()[0], fnp, "hc")
	b.Store(hc, current)
	b.Ret(nil)

	// pick(i32 k) returns the handler at index k as an i8*
	pick := m.NewFunction("pick", c.Func(i8p, []ir.Type{c.I32()}, false), "k")
	b.SetInsertPoint(pick.NewBlock("entry"))
	slot := b.GEP(table, []ir.Value{ir.NewConstInt(c.I64(), 0), pick.Params()[0]}, "slot")
	h := b.Load(slot, "h")
	b.Ret(b.BitCast(h, i8p, "hb"))

	main := m.NewFunction("main", c.Func(c.Void(), []ir.Type{c.I32()}, false), "argc")
	b.SetInsertPoint(main.NewBlock("entry"))
	p := b.Call(pick, []ir.Value{main.Params()[0]}, "p")
	b.Call(install, []ir.Value{p}, "")
	cur := b.Load(current, "cur")
	b.Call(cur, []ir.Value{ir.NewConstNull(i8p)}, "")
	b.Ret(nil)
	return m
}

func TestFixpointIsOrderIndependent(t *testing.T) {
	reference := newTestState(newDispatchModule())
	if _, err := Analyze(reference); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	want := describeAll(reference.Tainted.Ordered(reference.Index()))

	m := newDispatchModule()
	ir.MaterializeConstantExprs(m)
	s := prepare(newTestState(m))
	s.SeedSources()
	var reversed []*ir.Function
	for i := len(m.Functions()) - 1; i >= 0; i-- {
		if f := m.Functions()[i]; !f.IsDeclaration() {
			reversed = append(reversed, f)
		}
	}
	s.propagateInOrder(reversed)
	if diff := cmp.Diff(want, describeAll(s.Tainted.Ordered(s.Index()))); diff != "" {
		t.Errorf("tainted set depends on the sweep order (-want +got):\n%s", diff)
	}

	for i := 1; i < len(reference.Sweeps); i++ {
		if reference.Sweeps[i] < reference.Sweeps[i-1] {
			t.Errorf("tainted set shrank at sweep %d: %v", i, reference.Sweeps)
		}
	}
	if n := len(m.Enumerate()); len(reference.Sweeps) > n+1 {
		t.Errorf("%d sweeps for %d values", len(reference.Sweeps), n)
	}
	if !reference.IsTaintReturning(reference.Module.Function("pick")) {
		t.Errorf("pick should return tainted values")
	}
	install := reference.Module.Function("install")
	expectIn(t, reference.Tainted, "tainted", install.Params()[0], reference.Module.Global("current"))
}
