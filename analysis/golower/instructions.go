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
	"go/token"
	"go/types"

	"github.com/awslabs/ar-go-crd/analysis/ir"
	"golang.org/x/tools/go/ssa"
)

var comparisons = map[token.Token]string{
	token.EQL: "eq",
	token.NEQ: "ne",
	token.LSS: "lt",
	token.LEQ: "le",
	token.GTR: "gt",
	token.GEQ: "ge",
}

var arithmetic = map[token.Token]string{
	token.ADD:     "add",
	token.SUB:     "sub",
	token.MUL:     "mul",
	token.QUO:     "div",
	token.REM:     "rem",
	token.AND:     "and",
	token.OR:      "or",
	token.XOR:     "xor",
	token.SHL:     "shl",
	token.SHR:     "shr",
	token.AND_NOT: "andnot",
}

func (l *Lowering) DoDebugRef(*ssa.DebugRef) {}

func (l *Lowering) DoUnOp(i *ssa.UnOp) {
	x := l.value(i.X)
	switch i.Op {
	case token.MUL:
		l.bind(i, l.b.Load(x, ""))
	case token.ARROW:
		elem := l.b.Load(l.b.StructGEP(x, 0, ""), "")
		if !i.CommaOk {
			l.bind(i, elem)
			return
		}
		ok := l.runtimeCall("chanrecvok", l.ctx.I1(), x)
		l.bind(i, l.tuple(l.typ(i.Type()), elem, ok))
	case token.SUB:
		l.bind(i, l.b.BinOp("sub", l.zero(x.Type()), x, ""))
	case token.NOT:
		l.bind(i, l.b.BinOp("xor", x, ir.NewConstInt(x.Type(), 1), ""))
	case token.XOR:
		l.bind(i, l.b.BinOp("xor", x, ir.NewConstInt(x.Type(), -1), ""))
	}
}

func (l *Lowering) DoBinOp(i *ssa.BinOp) {
	x, y := l.value(i.X), l.value(i.Y)
	if pred, ok := comparisons[i.Op]; ok {
		l.bind(i, l.b.Cmp(pred, x, y, ""))
		return
	}
	if x.Type() == ir.Type(l.str) {
		l.bind(i, l.runtimeCall("concatstrings", l.str, x, y))
		return
	}
	l.bind(i, l.b.BinOp(arithmetic[i.Op], x, y, ""))
}

func (l *Lowering) DoCall(i *ssa.Call) {
	l.bind(i, l.call(i.Common(), i.Type()))
}

// Deferred and spawned calls are lowered as calls at the point where they are created.
func (l *Lowering) DoDefer(i *ssa.Defer)       { l.call(i.Common(), nil) }
func (l *Lowering) DoGo(i *ssa.Go)             { l.call(i.Common(), nil) }
func (l *Lowering) DoRunDefers(*ssa.RunDefers) {}

func (l *Lowering) DoChangeInterface(i *ssa.ChangeInterface) {
	l.bind(i, l.value(i.X))
}

func (l *Lowering) DoChangeType(i *ssa.ChangeType) {
	l.bind(i, l.convert(l.value(i.X), l.typ(i.Type())))
}

func (l *Lowering) DoConvert(i *ssa.Convert) {
	x := l.value(i.X)
	from, to := x.Type(), l.typ(i.Type())
	fromInt, fromIsInt := from.(*ir.IntType)
	toInt, toIsInt := to.(*ir.IntType)
	_, fromIsFloat := from.(*ir.FloatType)
	_, toIsFloat := to.(*ir.FloatType)
	switch {
	case from == to:
		l.bind(i, x)
	case fromIsInt && toIsInt:
		op := ir.Trunc
		if toInt.Bits > fromInt.Bits {
			op = ir.ZExt
			if isSigned(i.X.Type()) {
				op = ir.SExt
			}
		}
		l.bind(i, l.b.Cast(op, x, to, ""))
	case fromIsInt && toIsFloat:
		l.bind(i, l.b.Cast(ir.IToFP, x, to, ""))
	case fromIsFloat && toIsInt:
		l.bind(i, l.b.Cast(ir.FPToI, x, to, ""))
	case fromIsFloat && toIsFloat:
		l.bind(i, l.b.Cast(ir.FPConv, x, to, ""))
	case fromIsInt && to == ir.Type(l.str):
		l.bind(i, l.runtimeCall("intstring", l.str, x))
	case isSliceLike(from) && isSliceLike(to):
		l.bind(i, l.reslice(x, to.(*ir.StructType)))
	default:
		l.bind(i, l.convert(x, to))
	}
}

func (l *Lowering) DoSliceArrayToPointer(i *ssa.SliceToArrayPointer) {
	ptr := l.b.ExtractValue(l.value(i.X), []int{0}, "")
	l.bind(i, l.b.BitCast(ptr, l.typ(i.Type()), ""))
}

func (l *Lowering) DoMakeInterface(i *ssa.MakeInterface) {
	data := l.dataWord(l.value(i.X))
	tab := l.methodTable(i.X.Type(), i.Type())
	l.constantOrigins(tab, i)
	l.bind(i, l.tuple(l.iface, tab, data))
}

func (l *Lowering) DoExtract(i *ssa.Extract) {
	l.bind(i, l.b.ExtractValue(l.value(i.Tuple), []int{i.Index}, ""))
}

func (l *Lowering) DoSlice(i *ssa.Slice) {
	x := l.value(i.X)
	var ptr, length, capacity ir.Value
	switch t := i.X.Type().Underlying().(type) {
	case *types.Pointer:
		n := t.Elem().Underlying().(*types.Array).Len()
		zero := ir.NewConstInt(l.ctx.I64(), 0)
		ptr = l.b.GEP(x, []ir.Value{zero, zero}, "")
		length = ir.NewConstInt(l.ctx.I64(), n)
		capacity = length
	case *types.Basic:
		ptr = l.b.ExtractValue(x, []int{0}, "")
		length = l.b.ExtractValue(x, []int{1}, "")
		capacity = length
	default:
		ptr = l.b.ExtractValue(x, []int{0}, "")
		length = l.b.ExtractValue(x, []int{1}, "")
		capacity = l.b.ExtractValue(x, []int{2}, "")
	}
	high, max := length, capacity
	if i.High != nil {
		high = l.index(i.High)
	}
	if i.Max != nil {
		max = l.index(i.Max)
	}
	if i.Low != nil {
		low := l.index(i.Low)
		ptr = l.b.GEP(ptr, []ir.Value{low}, "")
		high = l.b.BinOp("sub", high, low, "")
		max = l.b.BinOp("sub", max, low, "")
	}
	t := l.typ(i.Type()).(*ir.StructType)
	if t.NumFields() == 3 {
		l.bind(i, l.tuple(t, ptr, high, max))
	} else {
		l.bind(i, l.tuple(t, ptr, high))
	}
}

func (l *Lowering) DoReturn(i *ssa.Return) {
	switch len(i.Results) {
	case 0:
		l.b.Ret(nil)
	case 1:
		l.b.Ret(l.value(i.Results[0]))
	default:
		results := make([]ir.Value, len(i.Results))
		for k, r := range i.Results {
			results[k] = l.value(r)
		}
		l.b.Ret(l.tuple(l.irf.ReturnType(), results...))
	}
}

func (l *Lowering) DoPanic(i *ssa.Panic) {
	l.runtimeCall("gopanic", l.ctx.Void(), l.value(i.X))
	l.b.Unreachable()
}

func (l *Lowering) DoSend(i *ssa.Send) {
	l.b.Store(l.value(i.X), l.b.StructGEP(l.value(i.Chan), 0, ""))
}

func (l *Lowering) DoStore(i *ssa.Store) {
	l.b.Store(l.value(i.Val), l.value(i.Addr))
}

func (l *Lowering) DoIf(i *ssa.If) {
	succs := i.Block().Succs
	l.b.CondBr(l.value(i.Cond), l.blocks[succs[0]], l.blocks[succs[1]])
}

func (l *Lowering) DoJump(i *ssa.Jump) {
	l.b.Br(l.blocks[i.Block().Succs[0]])
}

func (l *Lowering) DoMakeChan(i *ssa.MakeChan) {
	l.bind(i, l.b.HeapAlloca(ir.ElemType(l.typ(i.Type())), ""))
}

func (l *Lowering) DoAlloc(i *ssa.Alloc) {
	elem := ir.ElemType(l.typ(i.Type()))
	if i.Heap {
		l.bind(i, l.b.HeapAlloca(elem, ""))
	} else {
		l.bind(i, l.b.Alloca(elem, ""))
	}
}

func (l *Lowering) DoMakeSlice(i *ssa.MakeSlice) {
	t := l.typ(i.Type()).(*ir.StructType)
	array := l.b.HeapAlloca(ir.ElemType(t.Field(0)), "")
	l.bind(i, l.tuple(t, array, l.index(i.Len), l.index(i.Cap)))
}

func (l *Lowering) DoMakeMap(i *ssa.MakeMap) {
	l.bind(i, l.b.HeapAlloca(ir.ElemType(l.typ(i.Type())), ""))
}

// The iterator of a range is the collection itself.
func (l *Lowering) DoRange(i *ssa.Range) {
	l.bind(i, l.value(i.X))
}

func (l *Lowering) DoNext(i *ssa.Next) {
	t := l.typ(i.Type()).(*ir.StructType)
	x := l.value(i.Iter)
	var key, elem ir.Value
	if i.IsString {
		r := l.runtimeCall("decoderune", l.ctx.Struct(l.ctx.I64(), l.ctx.I32()), x)
		key = l.b.ExtractValue(r, []int{0}, "")
		elem = l.b.ExtractValue(r, []int{1}, "")
	} else {
		key = l.b.Load(l.b.StructGEP(x, 0, ""), "")
		elem = l.b.Load(l.b.StructGEP(x, 1, ""), "")
	}
	var agg ir.Value = ir.NewConstUndef(t)
	agg = l.b.InsertValue(agg, l.runtimeCall("iternext", l.ctx.I1(), x), []int{0}, "")
	// blank keys and values have no type
	if t.Field(1) == key.Type() {
		agg = l.b.InsertValue(agg, key, []int{1}, "")
	}
	if t.Field(2) == elem.Type() {
		agg = l.b.InsertValue(agg, elem, []int{2}, "")
	}
	l.bind(i, agg)
}

func (l *Lowering) DoFieldAddr(i *ssa.FieldAddr) {
	l.bind(i, l.b.StructGEP(l.value(i.X), i.Field, ""))
}

func (l *Lowering) DoField(i *ssa.Field) {
	l.bind(i, l.b.ExtractValue(l.value(i.X), []int{i.Field}, ""))
}

func (l *Lowering) DoIndexAddr(i *ssa.IndexAddr) {
	x := l.value(i.X)
	idx := l.index(i.Index)
	if _, isPtr := i.X.Type().Underlying().(*types.Pointer); isPtr {
		l.bind(i, l.b.GEP(x, []ir.Value{ir.NewConstInt(l.ctx.I64(), 0), idx}, ""))
		return
	}
	l.bind(i, l.b.GEP(l.b.ExtractValue(x, []int{0}, ""), []ir.Value{idx}, ""))
}

func (l *Lowering) DoIndex(i *ssa.Index) {
	x := l.value(i.X)
	if x.Type() == ir.Type(l.str) {
		l.bind(i, l.stringIndex(x, l.index(i.Index)))
		return
	}
	if c, ok := i.Index.(*ssa.Const); ok && c.Value != nil {
		l.bind(i, l.b.ExtractValue(x, []int{int(int64Val(c.Value))}, ""))
		return
	}
	// arrays indexed by a variable go through memory
	tmp := l.b.Alloca(x.Type(), "")
	l.b.Store(x, tmp)
	addr := l.b.GEP(tmp, []ir.Value{ir.NewConstInt(l.ctx.I64(), 0), l.index(i.Index)}, "")
	l.bind(i, l.b.Load(addr, ""))
}

func (l *Lowering) DoLookup(i *ssa.Lookup) {
	x := l.value(i.X)
	if x.Type() == ir.Type(l.str) {
		l.bind(i, l.stringIndex(x, l.index(i.Index)))
		return
	}
	elem := l.b.Load(l.b.StructGEP(x, 1, ""), "")
	if !i.CommaOk {
		l.bind(i, elem)
		return
	}
	ok := l.runtimeCall("mapaccessok", l.ctx.I1(), x, l.value(i.Index))
	l.bind(i, l.tuple(l.typ(i.Type()), elem, ok))
}

func (l *Lowering) DoMapUpdate(i *ssa.MapUpdate) {
	m := l.value(i.Map)
	l.b.Store(l.value(i.Key), l.b.StructGEP(m, 0, ""))
	l.b.Store(l.value(i.Value), l.b.StructGEP(m, 1, ""))
}

func (l *Lowering) DoTypeAssert(i *ssa.TypeAssert) {
	x := l.value(i.X)
	var v ir.Value
	if _, isIface := i.AssertedType.Underlying().(*types.Interface); isIface {
		v = x
	} else {
		v = l.fromDataWord(l.b.ExtractValue(x, []int{1}, ""), l.typ(i.AssertedType))
	}
	if !i.CommaOk {
		l.bind(i, v)
		return
	}
	ok := l.runtimeCall("assertok", l.ctx.I1(), x)
	l.bind(i, l.tuple(l.typ(i.Type()), v, ok))
}

// DoMakeClosure stores the bindings in the globals of the free variables of the function; the closure is the
// function itself.
func (l *Lowering) DoMakeClosure(i *ssa.MakeClosure) {
	fn := i.Fn.(*ssa.Function)
	env := l.closureEnv(fn)
	for k, binding := range i.Bindings {
		l.b.Store(l.value(binding), env[k])
	}
	l.bind(i, l.function(fn))
}

// DoPhi creates an empty phi; the entries are added once all the blocks are lowered.
func (l *Lowering) DoPhi(i *ssa.Phi) {
	l.bind(i, l.b.Phi(l.typ(i.Type()), ""))
	l.phis = append(l.phis, i)
}

func (l *Lowering) DoSelect(i *ssa.Select) {
	t := l.typ(i.Type()).(*ir.StructType)
	var chans []ir.Value
	for _, st := range i.States {
		ch := l.value(st.Chan)
		chans = append(chans, ch)
		if st.Dir == types.SendOnly {
			l.b.Store(l.value(st.Send), l.b.StructGEP(ch, 0, ""))
		}
	}
	r := l.runtimeCall("selectgo", l.ctx.Struct(l.ctx.I64(), l.ctx.I1()), chans...)
	fields := []ir.Value{l.b.ExtractValue(r, []int{0}, ""), l.b.ExtractValue(r, []int{1}, "")}
	for k, st := range i.States {
		if st.Dir == types.RecvOnly {
			fields = append(fields, l.b.Load(l.b.StructGEP(chans[k], 0, ""), ""))
		}
	}
	l.bind(i, l.tuple(t, fields...))
}

// tuple builds a value of the aggregate type t from its members.
func (l *Lowering) tuple(t ir.Type, members ...ir.Value) ir.Value {
	var agg ir.Value = ir.NewConstUndef(t)
	for k, m := range members {
		agg = l.b.InsertValue(agg, m, []int{k}, "")
	}
	return agg
}

func (l *Lowering) zero(t ir.Type) ir.Value {
	switch t.(type) {
	case *ir.IntType:
		return ir.NewConstInt(t, 0)
	case *ir.FloatType:
		return ir.NewConstFloat(t, 0)
	}
	return ir.NewConstZero(t)
}

// index returns an index operand as an i64.
func (l *Lowering) index(v ssa.Value) ir.Value {
	x := l.value(v)
	it, ok := x.Type().(*ir.IntType)
	if !ok || it.Bits == 64 {
		return x
	}
	op := ir.ZExt
	if isSigned(v.Type()) {
		op = ir.SExt
	}
	return l.b.Cast(op, x, l.ctx.I64(), "")
}

func (l *Lowering) stringIndex(s ir.Value, idx ir.Value) ir.Value {
	ptr := l.b.ExtractValue(s, []int{0}, "")
	return l.b.Load(l.b.GEP(ptr, []ir.Value{idx}, ""), "")
}

// convert reinterprets v as a value of type t.
func (l *Lowering) convert(v ir.Value, t ir.Type) ir.Value {
	from := v.Type()
	_, fromIsInt := from.(*ir.IntType)
	_, toIsInt := t.(*ir.IntType)
	switch {
	case from == t:
		return v
	case ir.IsPointer(from) && ir.IsPointer(t):
		return l.b.BitCast(v, t, "")
	case fromIsInt && ir.IsPointer(t):
		return l.b.Cast(ir.IntToPtr, v, t, "")
	case ir.IsPointer(from) && toIsInt:
		return l.b.Cast(ir.PtrToInt, v, t, "")
	}
	tmp := l.b.Alloca(from, "")
	l.b.Store(v, tmp)
	return l.b.Load(l.b.BitCast(tmp, l.ctx.Pointer(t), ""), "")
}

func isSliceLike(t ir.Type) bool {
	st, ok := t.(*ir.StructType)
	return ok && st.NumFields() >= 2 && ir.IsPointer(st.Field(0))
}

// reslice converts between strings and slices, keeping the data pointer.
func (l *Lowering) reslice(x ir.Value, to *ir.StructType) ir.Value {
	ptr := l.convert(l.b.ExtractValue(x, []int{0}, ""), to.Field(0))
	length := l.b.ExtractValue(x, []int{1}, "")
	if to.NumFields() == 3 {
		return l.tuple(to, ptr, length, length)
	}
	return l.tuple(to, ptr, length)
}
