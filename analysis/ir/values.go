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

// A Value is anything that can be an operand: globals, functions, arguments, constants and instructions.
type Value interface {
	// Name returns the name of the value without its sigil, or "" for constants.
	Name() string
	// Type returns the type of the value.
	Type() Type
	// Ident returns the short form used when the value appears as an operand, e.g. "%3", "@g" or "42".
	Ident() string
	// String returns the long form of the value: the full instruction text for instructions.
	String() string
	// Uses returns the users of the value. A user appears once per operand slot holding the value.
	Uses() []User

	addUse(u User)
	removeUse(u User)
}

// A User is a value with operands.
type User interface {
	Value
	// Operands returns the operands of the user. The returned slice must not be modified; use SetOperand.
	Operands() []Value

	ops() []Value
}

type valueBase struct {
	name string
	typ  Type
	uses []User
}

func (v *valueBase) Name() string { return v.name }
func (v *valueBase) Type() Type   { return v.typ }
func (v *valueBase) Uses() []User { return v.uses }

func (v *valueBase) addUse(u User) { v.uses = append(v.uses, u) }

func (v *valueBase) removeUse(u User) {
	for i, x := range v.uses {
		if x == u {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

type operands struct {
	list []Value
}

func (o *operands) Operands() []Value { return o.list }
func (o *operands) ops() []Value      { return o.list }

// NumOperands returns the number of operands.
func (o *operands) NumOperands() int { return len(o.list) }

// Operand returns the i-th operand.
func (o *operands) Operand(i int) Value { return o.list[i] }

// SetOperand replaces the i-th operand of u by v and updates the use lists.
func SetOperand(u User, i int, v Value) {
	list := u.ops()
	if old := list[i]; old != nil {
		old.removeUse(u)
	}
	list[i] = v
	if v != nil {
		v.addUse(u)
	}
}

// ReplaceUsesOfWith replaces every operand of u equal to from by to. Returns the number of replaced operands.
func ReplaceUsesOfWith(u User, from, to Value) int {
	n := 0
	for i, op := range u.ops() {
		if op == from {
			SetOperand(u, i, to)
			n++
		}
	}
	return n
}

func setOperands(u User, target *operands, values []Value) {
	target.list = make([]Value, len(values))
	for i, v := range values {
		if v == nil {
			panic(fmt.Sprintf("nil operand %d", i))
		}
		target.list[i] = v
		v.addUse(u)
	}
}

func typed(v Value) string {
	return v.Type().String() + " " + v.Ident()
}

// -------------------------------------------------------------------------------------------------------------------
// Constants

// A Constant is a value known before execution. Globals and functions are constants: their address is.
type Constant interface {
	Value
	isConstant()
}

type constBase struct{ valueBase }

func (c *constBase) isConstant() {}

// ConstInt is an integer constant.
type ConstInt struct {
	constBase
	Val int64
}

// NewConstInt returns an integer constant of type t, which must be an integer type.
func NewConstInt(t Type, v int64) *ConstInt {
	if _, ok := t.(*IntType); !ok {
		panic(fmt.Sprintf("integer constant of non-integer type %s", t))
	}
	return &ConstInt{constBase: constBase{valueBase{typ: t}}, Val: v}
}

func (c *ConstInt) Ident() string {
	if t := c.typ.(*IntType); t.Bits == 1 {
		if c.Val == 0 {
			return "false"
		}
		return "true"
	}
	return strconv.FormatInt(c.Val, 10)
}
func (c *ConstInt) String() string { return typed(c) }

// ConstFloat is a floating point constant.
type ConstFloat struct {
	constBase
	Val float64
}

// NewConstFloat returns a floating point constant of type t.
func NewConstFloat(t Type, v float64) *ConstFloat {
	return &ConstFloat{constBase: constBase{valueBase{typ: t}}, Val: v}
}

func (c *ConstFloat) Ident() string  { return strconv.FormatFloat(c.Val, 'e', -1, 64) }
func (c *ConstFloat) String() string { return typed(c) }

// ConstNull is the null pointer of some pointer type.
type ConstNull struct{ constBase }

// NewConstNull returns the null pointer of pointer type t.
func NewConstNull(t Type) *ConstNull {
	if !IsPointer(t) {
		panic(fmt.Sprintf("null constant of non-pointer type %s", t))
	}
	return &ConstNull{constBase{valueBase{typ: t}}}
}

func (c *ConstNull) Ident() string  { return "null" }
func (c *ConstNull) String() string { return typed(c) }

// ConstUndef is an undefined value of any type.
type ConstUndef struct{ constBase }

// NewConstUndef returns the undefined value of type t.
func NewConstUndef(t Type) *ConstUndef { return &ConstUndef{constBase{valueBase{typ: t}}} }

func (c *ConstUndef) Ident() string  { return "undef" }
func (c *ConstUndef) String() string { return typed(c) }

// ConstZero is the all-zero value of an aggregate type.
type ConstZero struct{ constBase }

// NewConstZero returns the zero value of type t.
func NewConstZero(t Type) *ConstZero { return &ConstZero{constBase{valueBase{typ: t}}} }

func (c *ConstZero) Ident() string  { return "zeroinitializer" }
func (c *ConstZero) String() string { return typed(c) }

// ConstString is a constant character array.
type ConstString struct {
	constBase
	Val string
}

// NewConstString returns a string constant of type t. The Go lowering uses the runtime string structure as type.
func NewConstString(t Type, v string) *ConstString {
	return &ConstString{constBase: constBase{valueBase{typ: t}}, Val: v}
}

func (c *ConstString) Ident() string  { return "c" + strconv.Quote(c.Val) }
func (c *ConstString) String() string { return typed(c) }

// IsLiteralConstant returns true for constants that do not refer to any other value: integers, floats, null,
// undef, zero initializers and strings.
func IsLiteralConstant(v Value) bool {
	switch v.(type) {
	case *ConstInt, *ConstFloat, *ConstNull, *ConstUndef, *ConstZero, *ConstString:
		return true
	}
	return false
}

// ConstAggregate is a constant structure or array whose elements are constants.
type ConstAggregate struct {
	constBase
	operands
}

// NewConstAggregate returns the aggregate constant of type t with the given elements.
func NewConstAggregate(t Type, elems ...Constant) *ConstAggregate {
	switch t := t.(type) {
	case *StructType:
		if len(elems) != t.NumFields() {
			panic(fmt.Sprintf("%d elements for structure %s", len(elems), t))
		}
	case *ArrayType:
		if int64(len(elems)) != t.Len {
			panic(fmt.Sprintf("%d elements for array %s", len(elems), t))
		}
	default:
		panic(fmt.Sprintf("aggregate constant of type %s", t))
	}
	c := &ConstAggregate{constBase: constBase{valueBase{typ: t}}}
	values := make([]Value, len(elems))
	for i, e := range elems {
		values[i] = e
	}
	setOperands(c, &c.operands, values)
	return c
}

func (c *ConstAggregate) Ident() string {
	parts := make([]string, len(c.list))
	for i, e := range c.list {
		parts[i] = typed(e)
	}
	if _, ok := c.typ.(*ArrayType); ok {
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
func (c *ConstAggregate) String() string { return typed(c) }

// ExprOp is the operation of a constant expression.
type ExprOp int

const (
	// ExprBitCast reinterprets a constant pointer as another pointer type.
	ExprBitCast ExprOp = iota
	// ExprGEP computes the address of an element of a constant pointer.
	ExprGEP
	// ExprPtrToInt converts a constant pointer to an integer.
	ExprPtrToInt
)

func (op ExprOp) String() string {
	switch op {
	case ExprBitCast:
		return "bitcast"
	case ExprGEP:
		return "getelementptr"
	case ExprPtrToInt:
		return "ptrtoint"
	}
	return "?"
}

// ConstExpr is a compound expression over constants, e.g. a bitcast of a function or the address of a field of
// a global. The first operand is the base; for getelementptr the remaining operands are indices.
type ConstExpr struct {
	constBase
	operands
	Op ExprOp
	// SourceElem is the element type the getelementptr indices step through.
	SourceElem Type
}

// NewBitCastExpr returns the constant expression casting c to type t.
func NewBitCastExpr(c Constant, t Type) *ConstExpr {
	if !IsPointer(c.Type()) || !IsPointer(t) {
		panic(fmt.Sprintf("bitcast expression from %s to %s", c.Type(), t))
	}
	e := &ConstExpr{constBase: constBase{valueBase{typ: t}}, Op: ExprBitCast}
	setOperands(e, &e.operands, []Value{c})
	return e
}

// NewPtrToIntExpr returns the constant expression converting pointer c to integer type t.
func NewPtrToIntExpr(c Constant, t Type) *ConstExpr {
	e := &ConstExpr{constBase: constBase{valueBase{typ: t}}, Op: ExprPtrToInt}
	setOperands(e, &e.operands, []Value{c})
	return e
}

// NewGEPExpr returns the constant address computation over base with the given constant indices.
func NewGEPExpr(base Constant, indices ...Constant) *ConstExpr {
	elem := ElemType(base.Type())
	if elem == nil {
		panic(fmt.Sprintf("getelementptr expression on non-pointer %s", base.Type()))
	}
	values := []Value{base}
	for _, idx := range indices {
		values = append(values, idx)
	}
	t := GEPResultType(base.Type(), values[1:])
	e := &ConstExpr{constBase: constBase{valueBase{typ: t}}, Op: ExprGEP, SourceElem: elem}
	setOperands(e, &e.operands, values)
	return e
}

// Base returns the first operand of the expression.
func (e *ConstExpr) Base() Value { return e.list[0] }

func (e *ConstExpr) Ident() string {
	switch e.Op {
	case ExprGEP:
		parts := []string{e.SourceElem.String()}
		for _, op := range e.list {
			parts = append(parts, typed(op))
		}
		return "getelementptr (" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%s (%s to %s)", e.Op, typed(e.list[0]), e.typ)
	}
}
func (e *ConstExpr) String() string { return typed(e) }

// GEPResultType computes the type of a getelementptr over a base of type baseType with the given indices.
// The first index steps over the base pointer; the following ones step into aggregates. Structure indices
// must be integer constants.
func GEPResultType(baseType Type, indices []Value) Type {
	p, ok := baseType.(*PointerType)
	if !ok {
		if v, isVec := baseType.(*VectorType); isVec {
			p, ok = v.Elem.(*PointerType)
		}
	}
	if !ok {
		panic(fmt.Sprintf("getelementptr base of non-pointer type %s", baseType))
	}
	cur := p.Elem
	if len(indices) > 0 {
		indices = indices[1:]
	}
	for _, idx := range indices {
		switch t := cur.(type) {
		case *StructType:
			c, isConst := idx.(*ConstInt)
			if !isConst {
				panic(fmt.Sprintf("non-constant structure index %s", idx.Ident()))
			}
			cur = t.Field(int(c.Val))
		case *ArrayType:
			cur = t.Elem
		case *VectorType:
			cur = t.Elem
		default:
			panic(fmt.Sprintf("getelementptr index into non-aggregate %s", cur))
		}
	}
	return ContextOf(baseType).Pointer(cur)
}

// -------------------------------------------------------------------------------------------------------------------
// Globals, arguments

// Global is a global variable. Its type is a pointer to its value type; its optional initializer is its only
// operand.
type Global struct {
	valueBase
	operands
	module    *Module
	ValueType Type
	Constant  bool
}

func (g *Global) Ident() string { return "@" + g.name }
func (g *Global) isConstant()   {}

// Initializer returns the initializer of the global, or nil for an external global.
func (g *Global) Initializer() Constant {
	if len(g.list) == 0 {
		return nil
	}
	return g.list[0].(Constant)
}

// SetInitializer sets the initial value of the global.
func (g *Global) SetInitializer(c Constant) {
	if c.Type() != g.ValueType {
		panic(fmt.Sprintf("initializer of type %s for global @%s of type %s", c.Type(), g.name, g.ValueType))
	}
	if len(g.list) == 0 {
		g.list = []Value{c}
		c.addUse(g)
		return
	}
	SetOperand(g, 0, c)
}

// Module returns the module that contains the global.
func (g *Global) Module() *Module { return g.module }

func (g *Global) String() string {
	kind := "global"
	if g.Constant {
		kind = "constant"
	}
	if init := g.Initializer(); init != nil {
		return fmt.Sprintf("@%s = %s %s", g.name, kind, typed(init))
	}
	return fmt.Sprintf("@%s = external %s %s", g.name, kind, g.ValueType)
}

// Argument is a formal parameter of a function.
type Argument struct {
	valueBase
	parent *Function
	index  int
}

func (a *Argument) Ident() string  { return "%" + a.name }
func (a *Argument) String() string { return typed(a) }

// Parent returns the function of the argument.
func (a *Argument) Parent() *Function { return a.parent }

// Index returns the position of the argument in its function's parameter list.
func (a *Argument) Index() int { return a.index }
