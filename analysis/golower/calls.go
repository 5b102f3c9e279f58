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

package golower

import (
	"go/types"

	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/ir"
	"github.com/awslabs/ar-go-crd/analysis/lang"
	"golang.org/x/tools/go/ssa"
)

// call lowers a call and returns its result. resultType is the type of the result, or nil if the result is not
// used (deferred and spawned calls).
func (l *Lowering) call(c *ssa.CallCommon, resultType types.Type) ir.Value {
	switch lang.KindOfCall(c) {
	case lang.InvokeCall:
		return l.invoke(c)
	case lang.BuiltinCall:
		return l.builtin(c.Value.(*ssa.Builtin), c.Args, resultType)
	case lang.StaticCall:
		callee := c.StaticCallee()
		return l.b.Call(l.function(callee), l.args(callee.Signature, c.Args), "")
	}
	return l.b.Call(l.value(c.Value), l.args(c.Signature(), c.Args), "")
}

func (l *Lowering) args(sig *types.Signature, args []ssa.Value) []ir.Value {
	lowered := make([]ir.Value, len(args))
	for i, a := range args {
		if i == 0 && sig.Recv() != nil {
			lowered[i] = l.dataWord(l.value(a))
		} else {
			lowered[i] = l.value(a)
		}
	}
	return lowered
}

// invoke lowers a call through an interface: the method is loaded from the method table of the interface value,
// cast to the type of the method and called with the data word as receiver.
func (l *Lowering) invoke(c *ssa.CallCommon) ir.Value {
	recv := l.value(c.Value)
	tab := l.b.ExtractValue(recv, []int{0}, "")
	data := l.b.ExtractValue(recv, []int{1}, "")
	slot := l.b.GEP(tab, []ir.Value{ir.NewConstInt(l.ctx.I64(), int64(methodIndex(c)))}, "")
	l.b.SetTypeTag(config.TagVtablePointer)
	method := l.b.Load(slot, "")
	l.b.SetTypeTag("")
	fp := l.b.BitCast(method, l.ctx.Pointer(l.methodType(c.Method)), "")
	args := []ir.Value{data}
	for _, a := range c.Args {
		args = append(args, l.value(a))
	}
	return l.b.Call(fp, args, "")
}

// methodIndex returns the index of the invoked method in the method set of the interface.
func methodIndex(c *ssa.CallCommon) int {
	it, ok := c.Value.Type().Underlying().(*types.Interface)
	if !ok {
		return 0
	}
	for k := 0; k < it.NumMethods(); k++ {
		if it.Method(k).Id() == c.Method.Id() {
			return k
		}
	}
	return 0
}

// methodTable returns the address of the method table of the concrete type for the interface type. The table
// holds the methods implementing the interface's methods, in the order of the interface's method set.
// Interfaces without methods have a null table.
func (l *Lowering) methodTable(concrete, iface types.Type) ir.Constant {
	slot := l.slotType()
	it, ok := iface.Underlying().(*types.Interface)
	if !ok || it.NumMethods() == 0 {
		return ir.NewConstNull(l.ctx.Pointer(slot))
	}
	key := types.TypeString(concrete, nil) + "," + types.TypeString(iface, nil)
	g, ok := l.itabs[key]
	if !ok {
		mset := l.Program.MethodSets.MethodSet(concrete)
		slots := make([]ir.Constant, it.NumMethods())
		for k := range slots {
			m := it.Method(k)
			sel := mset.Lookup(m.Pkg(), m.Name())
			if sel == nil {
				slots[k] = ir.NewConstNull(slot)
				continue
			}
			slots[k] = ir.NewBitCastExpr(l.function(l.Program.MethodValue(sel)), slot)
		}
		tableType := l.ctx.Array(slot, int64(len(slots)))
		g = l.Module.NewGlobal("go.itab."+key, tableType)
		g.SetInitializer(ir.NewConstAggregate(tableType, slots...))
		l.itabs[key] = g
	}
	zero := ir.NewConstInt(l.ctx.I64(), 0)
	return ir.NewGEPExpr(g, zero, zero)
}

// dataWord returns v as the data word of an interface or the receiver of a method: pointers are cast to i8*,
// other values are copied to the heap.
func (l *Lowering) dataWord(v ir.Value) ir.Value {
	t := v.Type()
	if t == ir.Type(l.ctx.I8Ptr()) {
		return v
	}
	if ir.IsPointer(t) {
		return l.b.BitCast(v, l.ctx.I8Ptr(), "")
	}
	tmp := l.b.HeapAlloca(t, "")
	l.b.Store(v, tmp)
	return l.b.BitCast(tmp, l.ctx.I8Ptr(), "")
}

// fromDataWord is the inverse of dataWord.
func (l *Lowering) fromDataWord(data ir.Value, t ir.Type) ir.Value {
	if t == ir.Type(l.ctx.I8Ptr()) {
		return data
	}
	if ir.IsPointer(t) {
		return l.b.BitCast(data, t, "")
	}
	return l.b.Load(l.b.BitCast(data, l.ctx.Pointer(t), ""), "")
}

// builtin lowers a call to a builtin function. copy and append move memory with runtime.memmove, so that the
// analysis sees the data flowing between the slices. Other builtins call intrinsic declarations.
func (l *Lowering) builtin(b *ssa.Builtin, args []ssa.Value, resultType types.Type) ir.Value {
	switch b.Name() {
	case "len", "cap":
		return l.length(args[0], b.Name() == "cap")
	case "copy":
		dst, src := l.value(args[0]), l.value(args[1])
		n := l.b.ExtractValue(src, []int{1}, "")
		l.memmove(dst, src, n)
		return n
	case "append":
		s, extra := l.value(args[0]), l.value(args[1])
		n := l.b.ExtractValue(extra, []int{1}, "")
		grown := l.runtimeCall("growslice", s.Type(), s, n)
		l.memmove(grown, extra, n)
		return grown
	case "ssa:wrapnilchk":
		return l.value(args[0])
	}
	lowered := make([]ir.Value, len(args))
	params := make([]ir.Type, len(args))
	for i, a := range args {
		lowered[i] = l.value(a)
		params[i] = lowered[i].Type()
	}
	var ret ir.Type = l.ctx.Void()
	if resultType != nil {
		ret = l.typ(resultType)
	}
	return l.b.Call(l.declare("llvm.go."+b.Name(), ret, params), lowered, "")
}

func (l *Lowering) memmove(dst, src, n ir.Value) {
	dp := l.dataWord(l.b.ExtractValue(dst, []int{0}, ""))
	sp := l.dataWord(l.b.ExtractValue(src, []int{0}, ""))
	l.runtimeCall("memmove", l.ctx.Void(), dp, sp, n)
}

func (l *Lowering) length(arg ssa.Value, capacity bool) ir.Value {
	x := l.value(arg)
	switch t := arg.Type().Underlying().(type) {
	case *types.Slice:
		if capacity {
			return l.b.ExtractValue(x, []int{2}, "")
		}
		return l.b.ExtractValue(x, []int{1}, "")
	case *types.Basic:
		return l.b.ExtractValue(x, []int{1}, "")
	case *types.Pointer:
		if a, ok := t.Elem().Underlying().(*types.Array); ok {
			return ir.NewConstInt(l.ctx.I64(), a.Len())
		}
	case *types.Array:
		return ir.NewConstInt(l.ctx.I64(), t.Len())
	}
	name := "len"
	if capacity {
		name = "cap"
	}
	return l.runtimeCall(name, l.ctx.I64(), x)
}
