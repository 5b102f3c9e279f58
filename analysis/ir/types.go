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

// A Type is an IR type. Types are uniqued by the Context that created them: two types obtained from the same
// context are identical if and only if they are equal with ==, which means types can be used as map keys.
type Type interface {
	String() string
	typeID() int
	context() *Context
}

type typeBase struct {
	id  int
	ctx *Context
}

func (t *typeBase) typeID() int       { return t.id }
func (t *typeBase) context() *Context { return t.ctx }

// ContextOf returns the context that created t.
func ContextOf(t Type) *Context { return t.context() }

// VoidType is the type of instructions that do not produce a value.
type VoidType struct{ typeBase }

func (t *VoidType) String() string { return "void" }

// LabelType is the type of basic blocks.
type LabelType struct{ typeBase }

func (t *LabelType) String() string { return "label" }

// IntType is an integer type of a fixed bit width. Booleans are i1.
type IntType struct {
	typeBase
	Bits int
}

func (t *IntType) String() string { return "i" + strconv.Itoa(t.Bits) }

// FloatType is a floating point type of a fixed bit width.
type FloatType struct {
	typeBase
	Bits int
}

func (t *FloatType) String() string {
	switch t.Bits {
	case 32:
		return "float"
	case 64:
		return "double"
	default:
		return "fp" + strconv.Itoa(t.Bits)
	}
}

// PointerType is a pointer to values of type Elem.
type PointerType struct {
	typeBase
	Elem Type
}

func (t *PointerType) String() string { return t.Elem.String() + "*" }

// FuncType is the type of a function. Function values have type pointer to FuncType.
type FuncType struct {
	typeBase
	Ret      Type
	Params   []Type
	Variadic bool
}

func (t *FuncType) String() string {
	var sb strings.Builder
	sb.WriteString(t.Ret.String())
	sb.WriteString(" (")
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	if t.Variadic {
		if len(t.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(")")
	return sb.String()
}

// ArrayType is a fixed length array.
type ArrayType struct {
	typeBase
	Elem Type
	Len  int64
}

func (t *ArrayType) String() string { return fmt.Sprintf("[%d x %s]", t.Len, t.Elem) }

// VectorType is a fixed length vector.
type VectorType struct {
	typeBase
	Elem Type
	Len  int64
}

func (t *VectorType) String() string { return fmt.Sprintf("<%d x %s>", t.Len, t.Elem) }

// StructType is either a named (identified) structure or a literal structure.
//
// Named structures are unique per name in their context. They are created opaque and receive their fields
// with SetBody, which allows recursive types. Literal structures are uniqued by their list of fields.
type StructType struct {
	typeBase
	name   string
	fields []Type
	opaque bool
}

// Name returns the name of the structure, or "" for a literal structure.
func (t *StructType) Name() string { return t.name }

// IsLiteral returns true if the structure has no name.
func (t *StructType) IsLiteral() bool { return t.name == "" }

// IsOpaque returns true if the structure is named and its body has never been set.
func (t *StructType) IsOpaque() bool { return t.opaque }

// Fields returns the field types of the structure. The returned slice must not be modified.
func (t *StructType) Fields() []Type { return t.fields }

// NumFields returns the number of fields of the structure.
func (t *StructType) NumFields() int { return len(t.fields) }

// Field returns the type of the i-th field.
func (t *StructType) Field(i int) Type {
	if i < 0 || i >= len(t.fields) {
		panic(fmt.Sprintf("field index %d out of range for %s", i, t))
	}
	return t.fields[i]
}

// SetBody sets the fields of a named structure. It panics on literal structures.
func (t *StructType) SetBody(fields ...Type) {
	if t.IsLiteral() {
		panic("cannot set the body of a literal structure")
	}
	t.fields = append([]Type(nil), fields...)
	t.opaque = false
}

func (t *StructType) String() string {
	if !t.IsLiteral() {
		return "%" + t.name
	}
	return t.Body()
}

// Body returns the textual form of the fields of the structure, e.g. "{ i32, i8* }".
func (t *StructType) Body() string {
	if t.opaque {
		return "opaque"
	}
	if len(t.fields) == 0 {
		return "{}"
	}
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = f.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// A Context owns and uniques types.
type Context struct {
	nextID   int
	void     *VoidType
	label    *LabelType
	ints     map[int]*IntType
	floats   map[int]*FloatType
	pointers map[Type]*PointerType
	arrays   map[seqKey]*ArrayType
	vectors  map[seqKey]*VectorType
	funcs    map[string]*FuncType
	literals map[string]*StructType
	named    map[string]*StructType
	structs  []*StructType
}

type seqKey struct {
	elem Type
	n    int64
}

// NewContext returns an empty type context.
func NewContext() *Context {
	c := &Context{
		ints:     map[int]*IntType{},
		floats:   map[int]*FloatType{},
		pointers: map[Type]*PointerType{},
		arrays:   map[seqKey]*ArrayType{},
		vectors:  map[seqKey]*VectorType{},
		funcs:    map[string]*FuncType{},
		literals: map[string]*StructType{},
		named:    map[string]*StructType{},
	}
	c.void = &VoidType{c.base()}
	c.label = &LabelType{c.base()}
	return c
}

func (c *Context) base() typeBase {
	c.nextID++
	return typeBase{id: c.nextID, ctx: c}
}

// Void returns the void type.
func (c *Context) Void() *VoidType { return c.void }

// Label returns the label type.
func (c *Context) Label() *LabelType { return c.label }

// Int returns the integer type with the given width.
func (c *Context) Int(bits int) *IntType {
	if t, ok := c.ints[bits]; ok {
		return t
	}
	t := &IntType{typeBase: c.base(), Bits: bits}
	c.ints[bits] = t
	return t
}

// I1 returns the boolean type.
func (c *Context) I1() *IntType { return c.Int(1) }

// I8 returns the byte type.
func (c *Context) I8() *IntType { return c.Int(8) }

// I32 returns the 32 bits integer type.
func (c *Context) I32() *IntType { return c.Int(32) }

// I64 returns the 64 bits integer type.
func (c *Context) I64() *IntType { return c.Int(64) }

// I8Ptr returns i8*, the generic data pointer type.
func (c *Context) I8Ptr() *PointerType { return c.Pointer(c.I8()) }

// Float returns the floating point type with the given width.
func (c *Context) Float(bits int) *FloatType {
	if t, ok := c.floats[bits]; ok {
		return t
	}
	t := &FloatType{typeBase: c.base(), Bits: bits}
	c.floats[bits] = t
	return t
}

// Pointer returns the type of pointers to elem.
func (c *Context) Pointer(elem Type) *PointerType {
	if elem == nil {
		panic("pointer to nil type")
	}
	if t, ok := c.pointers[elem]; ok {
		return t
	}
	t := &PointerType{typeBase: c.base(), Elem: elem}
	c.pointers[elem] = t
	return t
}

// Array returns the type [n x elem].
func (c *Context) Array(elem Type, n int64) *ArrayType {
	k := seqKey{elem, n}
	if t, ok := c.arrays[k]; ok {
		return t
	}
	t := &ArrayType{typeBase: c.base(), Elem: elem, Len: n}
	c.arrays[k] = t
	return t
}

// Vector returns the type <n x elem>.
func (c *Context) Vector(elem Type, n int64) *VectorType {
	k := seqKey{elem, n}
	if t, ok := c.vectors[k]; ok {
		return t
	}
	t := &VectorType{typeBase: c.base(), Elem: elem, Len: n}
	c.vectors[k] = t
	return t
}

// Func returns the function type with the given result and parameters.
func (c *Context) Func(ret Type, params []Type, variadic bool) *FuncType {
	k := listKey(append([]Type{ret}, params...))
	if variadic {
		k += "..."
	}
	if t, ok := c.funcs[k]; ok {
		return t
	}
	t := &FuncType{typeBase: c.base(), Ret: ret, Params: append([]Type(nil), params...), Variadic: variadic}
	c.funcs[k] = t
	return t
}

// Struct returns the literal structure with the given fields.
func (c *Context) Struct(fields ...Type) *StructType {
	k := listKey(fields)
	if t, ok := c.literals[k]; ok {
		return t
	}
	t := &StructType{typeBase: c.base(), fields: append([]Type(nil), fields...)}
	c.literals[k] = t
	return t
}

// NamedStruct returns the named structure with the given name, creating it (opaque) if it does not exist yet.
func (c *Context) NamedStruct(name string) *StructType {
	if name == "" {
		panic("named structure with empty name")
	}
	if t, ok := c.named[name]; ok {
		return t
	}
	t := &StructType{typeBase: c.base(), name: name, opaque: true}
	c.named[name] = t
	c.structs = append(c.structs, t)
	return t
}

// CreateNamedStruct always creates a new named structure. If the name is already taken, a ".<n>" suffix is appended
// to it, the way a linker renames structures of the same name coming from different translation units.
func (c *Context) CreateNamedStruct(name string, fields ...Type) *StructType {
	unique := name
	for i := 1; c.named[unique] != nil; i++ {
		unique = name + "." + strconv.Itoa(i)
	}
	t := c.NamedStruct(unique)
	if len(fields) > 0 {
		t.SetBody(fields...)
	}
	return t
}

// LookupStruct returns the named structure with the given name, or nil.
func (c *Context) LookupStruct(name string) *StructType { return c.named[name] }

// Structs returns the named structures in creation order.
func (c *Context) Structs() []*StructType { return c.structs }

func listKey(types []Type) string {
	var sb strings.Builder
	for _, t := range types {
		sb.WriteString(strconv.Itoa(t.typeID()))
		sb.WriteByte(',')
	}
	return sb.String()
}

// IsPointer returns true if t is a pointer type.
func IsPointer(t Type) bool {
	_, ok := t.(*PointerType)
	return ok
}

// IsScalar returns true for void, label, integer and floating point types.
func IsScalar(t Type) bool {
	switch t.(type) {
	case *VoidType, *LabelType, *IntType, *FloatType:
		return true
	}
	return false
}

// StripPointers returns the type obtained by removing all the pointer layers of t.
func StripPointers(t Type) Type {
	for {
		p, ok := t.(*PointerType)
		if !ok {
			return t
		}
		t = p.Elem
	}
}

// ElemType returns the element type of a pointer, or nil if t is not a pointer.
func ElemType(t Type) Type {
	if p, ok := t.(*PointerType); ok {
		return p.Elem
	}
	return nil
}

// IsBytePointer returns true if t is i8*.
func IsBytePointer(t Type) bool {
	p, ok := t.(*PointerType)
	if !ok {
		return false
	}
	i, ok := p.Elem.(*IntType)
	return ok && i.Bits == 8
}

// AggregateElem returns the type at index idx of an aggregate (structure, array or vector) type.
// It panics if t is not an aggregate or if the index is out of range for a structure.
func AggregateElem(t Type, idx int) Type {
	switch t := t.(type) {
	case *StructType:
		return t.Field(idx)
	case *ArrayType:
		return t.Elem
	case *VectorType:
		return t.Elem
	default:
		panic(fmt.Sprintf("%s is not an aggregate type", t))
	}
}
