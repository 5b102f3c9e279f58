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

	"github.com/awslabs/ar-go-crd/analysis/ir"
)

const (
	// StringTypeName is the name of the structure of Go strings: a byte pointer and a length.
	StringTypeName = "runtime.string"
	// InterfaceTypeName is the name of the structure of Go interface values: a method table pointer and a data word.
	InterfaceTypeName = "runtime.iface"
)

// typ returns the IR type of the Go type t. Types are lowered once; identical Go types have the same IR type.
//
//   - func values are pointers to function types;
//   - interfaces are runtime.iface structures, whose first field points to a table of method pointers;
//   - strings are runtime.string structures, slices are { elem*, i64, i64 };
//   - maps and channels point to a structure of their key and element types;
//   - named structures keep their package qualified name.
func (l *Lowering) typ(t types.Type) ir.Type {
	if lowered, ok := l.types.At(t).(ir.Type); ok {
		return lowered
	}
	var lowered ir.Type
	switch t := t.(type) {
	case *types.Named:
		if st, ok := t.Underlying().(*types.Struct); ok {
			named := l.ctx.CreateNamedStruct(types.TypeString(t, nil))
			// recursive references find the structure before its body is set
			l.types.Set(t, named)
			named.SetBody(l.fieldTypes(st)...)
			return named
		}
		if l.inProgress[t] {
			// a named type reaching itself without a named structure in between, e.g. type L []L
			l.logger.Debugf("recursive type %s lowered as i8*\n", t)
			return l.ctx.I8Ptr()
		}
		l.inProgress[t] = true
		lowered = l.typ(t.Underlying())
		delete(l.inProgress, t)
	case *types.Basic:
		lowered = l.basicType(t)
	case *types.Pointer:
		lowered = l.ctx.Pointer(l.typ(t.Elem()))
	case *types.Struct:
		lowered = l.ctx.Struct(l.fieldTypes(t)...)
	case *types.Array:
		lowered = l.ctx.Array(l.typ(t.Elem()), t.Len())
	case *types.Slice:
		lowered = l.sliceType(l.typ(t.Elem()))
	case *types.Map:
		lowered = l.ctx.Pointer(l.ctx.Struct(l.typ(t.Key()), l.typ(t.Elem())))
	case *types.Chan:
		lowered = l.ctx.Pointer(l.ctx.Struct(l.typ(t.Elem())))
	case *types.Signature:
		lowered = l.ctx.Pointer(l.funcType(t))
	case *types.Interface:
		lowered = l.iface
	case *types.Tuple:
		lowered = l.resultType(t)
	default:
		// type parameters and other types without a runtime layout
		lowered = l.ctx.I8Ptr()
	}
	l.types.Set(t, lowered)
	return lowered
}

func (l *Lowering) fieldTypes(st *types.Struct) []ir.Type {
	fields := make([]ir.Type, st.NumFields())
	for i := range fields {
		fields[i] = l.typ(st.Field(i).Type())
	}
	return fields
}

func (l *Lowering) sliceType(elem ir.Type) *ir.StructType {
	return l.ctx.Struct(l.ctx.Pointer(elem), l.ctx.I64(), l.ctx.I64())
}

func (l *Lowering) basicType(t *types.Basic) ir.Type {
	switch t.Kind() {
	case types.Bool, types.UntypedBool:
		return l.ctx.I1()
	case types.Int8, types.Uint8:
		return l.ctx.I8()
	case types.Int16, types.Uint16:
		return l.ctx.Int(16)
	case types.Int32, types.Uint32, types.UntypedRune:
		return l.ctx.I32()
	case types.Int, types.Int64, types.Uint, types.Uint64, types.Uintptr, types.UntypedInt:
		return l.ctx.I64()
	case types.Float32:
		return l.ctx.Float(32)
	case types.Float64, types.UntypedFloat:
		return l.ctx.Float(64)
	case types.Complex64:
		return l.ctx.Struct(l.ctx.Float(32), l.ctx.Float(32))
	case types.Complex128, types.UntypedComplex:
		return l.ctx.Struct(l.ctx.Float(64), l.ctx.Float(64))
	case types.String, types.UntypedString:
		return l.str
	case types.UnsafePointer, types.UntypedNil:
		return l.ctx.I8Ptr()
	default:
		return l.ctx.I8()
	}
}

// funcType returns the function type of a Go signature. A receiver becomes a leading i8* parameter, so that every
// method with the same parameters and results has the same type whatever its receiver. Multiple results are
// returned in a literal structure.
func (l *Lowering) funcType(sig *types.Signature) *ir.FuncType {
	var params []ir.Type
	if sig.Recv() != nil {
		params = append(params, l.ctx.I8Ptr())
	}
	for i := 0; i < sig.Params().Len(); i++ {
		params = append(params, l.typ(sig.Params().At(i).Type()))
	}
	return l.ctx.Func(l.resultType(sig.Results()), params, false)
}

// methodType returns the function type of an interface method called through a method table.
func (l *Lowering) methodType(m *types.Func) *ir.FuncType {
	sig := m.Type().(*types.Signature)
	params := []ir.Type{l.ctx.I8Ptr()}
	for i := 0; i < sig.Params().Len(); i++ {
		params = append(params, l.typ(sig.Params().At(i).Type()))
	}
	return l.ctx.Func(l.resultType(sig.Results()), params, false)
}

func (l *Lowering) resultType(results *types.Tuple) ir.Type {
	switch results.Len() {
	case 0:
		return l.ctx.Void()
	case 1:
		return l.typ(results.At(0).Type())
	default:
		fields := make([]ir.Type, results.Len())
		for i := range fields {
			fields[i] = l.typ(results.At(i).Type())
		}
		return l.ctx.Struct(fields...)
	}
}

// slotType is the type of the entries of a method table.
func (l *Lowering) slotType() *ir.PointerType {
	return l.ctx.Pointer(l.ctx.Func(l.ctx.Void(), nil, false))
}

// isSigned returns true if t is a signed integer type.
func isSigned(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsUnsigned == 0
}
