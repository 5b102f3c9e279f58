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

type callGraphFixture struct {
	m                                   *ir.Module
	cbA, cbB, cbC, cbD, cbV, direct     *ir.Function
	loadSite, castSite, structSite      ir.CallInstruction
	variadicSite, directSite, emptySite ir.CallInstruction
}

// newCallGraphFixture builds a module with callbacks stored in globals, and call sites through them.
func newCallGraphFixture() callGraphFixture {
	m := ir.NewModule("callgraph")
	c := m.Context()
	x := callGraphFixture{m: m}
	conn := c.CreateNamedStruct("struct.conn", c.I32())
	conn1 := c.CreateNamedStruct("struct.conn", c.I32())
	void := c.Void()

	sigPtr := c.Func(void, []ir.Type{c.I8Ptr()}, false)
	sigInt := c.Func(void, []ir.Type{c.I32()}, false)
	sigConn := c.Func(void, []ir.Type{c.Pointer(conn)}, false)
	sigConn1 := c.Func(void, []ir.Type{c.Pointer(conn1)}, false)
	sigVar := c.Func(void, []ir.Type{c.I8Ptr()}, true)
	sigTwo := c.Func(void, []ir.Type{c.I8Ptr(), c.I32()}, false)
	sigRet := c.Func(c.I8Ptr(), nil, false)

	x.cbA = m.NewFunction("cbA", sigPtr)
	x.cbB = m.NewFunction("cbB", sigPtr)
	x.cbC = m.NewFunction("cbC", sigInt)
	x.cbD = m.NewFunction("cbD", sigConn)
	x.cbV = m.NewFunction("cbV", sigVar)
	x.direct = m.NewFunction("direct", sigPtr)
	for _, f := range []*ir.Function{x.cbA, x.cbB, x.cbC, x.cbD, x.cbV} {
		g := m.NewGlobal("ptr_"+f.Name(), f.Type())
		g.SetInitializer(f)
	}
	gA := m.Global("ptr_cbA")
	gConn1 := m.NewGlobal("conn_handler", c.Pointer(sigConn1))
	gTwo := m.NewGlobal("two", c.Pointer(sigTwo))
	gRet := m.NewGlobal("getter", c.Pointer(sigRet))

	main := m.NewFunction("main", c.Func(void, nil, false))
	b := ir.NewBuilder(m)
	b.SetInsertPoint(main.NewBlock("entry"))
	null := ir.NewConstNull(c.I8Ptr())
	fp := b.Load(gA, "fp")
	x.loadSite = b.Call(fp, []ir.Value{null}, "")
	x.castSite = b.Call(ir.NewBitCastExpr(x.cbC, c.Pointer(sigPtr)), []ir.Value{null}, "")
	fpConn := b.Load(gConn1, "fpc")
	x.structSite = b.Call(fpConn, []ir.Value{ir.NewConstNull(c.Pointer(conn1))}, "")
	fpTwo := b.Load(gTwo, "fp2")
	x.variadicSite = b.Call(fpTwo, []ir.Value{null, ir.NewConstInt(c.I32(), 1)}, "")
	x.directSite = b.Call(x.direct, []ir.Value{null}, "")
	fpRet := b.Load(gRet, "fpr")
	x.emptySite = b.Call(fpRet, nil, "")
	b.Ret(nil)
	return x
}

func names(functions []*ir.Function) []string {
	var result []string
	for _, f := range functions {
		result = append(result, f.Name())
	}
	return result
}

func TestCallGraph(t *testing.T) {
	x := newCallGraphFixture()
	cg := BuildCallGraph(x.m, NewTypeEquivalence(x.m))

	if diff := cmp.Diff([]string{"cbA", "cbB", "cbC", "cbD", "cbV"}, names(cg.AddressTaken.Functions())); diff != "" {
		t.Errorf("address-taken functions mismatch (-want +got):\n%s", diff)
	}
	tests := []struct {
		name string
		site ir.CallInstruction
		want []string
	}{
		{"type match", x.loadSite, []string{"cbA", "cbB", "cbV"}},
		{"bitcast shortcut", x.castSite, []string{"cbC"}},
		{"equivalent structures", x.structSite, []string{"cbD"}},
		{"no variadic wildcard", x.variadicSite, nil},
		{"direct", x.directSite, []string{"direct"}},
		{"no candidate", x.emptySite, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if diff := cmp.Diff(test.want, names(cg.Callees(test.site))); diff != "" {
				t.Errorf("callees mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if cg.DirectCalls[x.directSite] != x.direct {
		t.Errorf("direct call not recorded")
	}
	if len(cg.IndirectSites) != 5 {
		t.Errorf("expected 5 indirect sites, got %d", len(cg.IndirectSites))
	}
	// the shortcut does not enumerate the address-taken functions
	if cg.Enumerations != 4 {
		t.Errorf("expected 4 enumerations of the address-taken functions, got %d", cg.Enumerations)
	}
	if set := cg.Indirect[x.castSite.Callee()]; set.Len() != 1 || !set.Contains(x.cbC) {
		t.Errorf("bitcast shortcut should resolve to exactly cbC")
	}

	callers := cg.Callers(x.cbA)
	if len(callers) != 1 || callers[0] != x.loadSite {
		t.Errorf("cbA should be called at the indirect site only, got %v", callers)
	}
	callers = cg.Callers(x.cbC)
	if len(callers) != 1 || callers[0] != x.castSite {
		t.Errorf("cbC should be called at the bitcast site only, got %v", callers)
	}
}

func TestCandidateSetSparseIndices(t *testing.T) {
	m := ir.NewModule("many")
	c := m.Context()
	sig := c.Func(c.Void(), nil, false)
	var functions []*ir.Function
	for i := 0; i < 130; i++ {
		functions = append(functions, m.NewFunction("f", sig))
	}
	arena := NewFunctionArena(functions)
	set := newCandidateSet(arena)
	if set.Len() != 0 || set.Functions() != nil {
		t.Errorf("a new candidate set should be empty")
	}
	set.insert(129)
	set.insert(0)
	set.insert(64)
	set.insert(0)
	if set.Len() != 3 {
		t.Errorf("expected 3 candidates, got %d", set.Len())
	}
	got := set.Functions()
	if len(got) != 3 || got[0] != functions[0] || got[1] != functions[64] || got[2] != functions[129] {
		t.Errorf("unexpected candidates %v", names(got))
	}
	if set.Contains(functions[1]) || !set.Contains(functions[129]) {
		t.Errorf("Contains disagrees with the inserted indices")
	}
	if set.Contains(ir.NewModule("other").NewFunction("f", sig)) {
		t.Errorf("a function outside of the arena cannot be a candidate")
	}
}
