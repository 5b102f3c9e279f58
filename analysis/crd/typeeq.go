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
	"strconv"
	"strings"

	"github.com/awslabs/ar-go-crd/analysis/ir"
)

// TypeEquivalence groups structure types that are duplicates of each other in equivalence classes.
//
// Named structures belong to the class of their base name: the name without the numeric suffix that is added when
// the same structure is declared several times (struct.conn and struct.conn.12 are in the same class).
// Literal structures belong to the class of their structural signature, in which named structures appear by base
// name.
type TypeEquivalence struct {
	classes    map[*ir.StructType]int
	keys       map[string]int
	signatures map[ir.Type]string
}

// NewTypeEquivalence computes the equivalence classes of the structure types of m. Classes are numbered densely,
// named structures first in declaration order, then the literal structures in order of appearance.
func NewTypeEquivalence(m *ir.Module) *TypeEquivalence {
	te := &TypeEquivalence{
		classes:    map[*ir.StructType]int{},
		keys:       map[string]int{},
		signatures: map[ir.Type]string{},
	}
	for _, t := range m.StructTypes() {
		te.ClassOf(t)
	}
	for _, t := range literalStructs(m) {
		te.ClassOf(t)
	}
	return te
}

// NumClasses returns the number of classes.
func (te *TypeEquivalence) NumClasses() int { return len(te.keys) }

// ClassOf returns the class id of t.
func (te *TypeEquivalence) ClassOf(t *ir.StructType) int {
	if id, ok := te.classes[t]; ok {
		return id
	}
	key := te.signature(t)
	id, ok := te.keys[key]
	if !ok {
		id = len(te.keys)
		te.keys[key] = id
	}
	te.classes[t] = id
	return id
}

// IsEqual returns true if a and b are the same type, or if they are structures (or pointers to structures with
// the same number of pointer layers) in the same class.
func (te *TypeEquivalence) IsEqual(a, b ir.Type) bool {
	if a == b {
		return true
	}
	for {
		pa, aok := a.(*ir.PointerType)
		pb, bok := b.(*ir.PointerType)
		if !aok || !bok {
			break
		}
		a, b = pa.Elem, pb.Elem
	}
	if a == b {
		return true
	}
	sa, aok := a.(*ir.StructType)
	sb, bok := b.(*ir.StructType)
	if aok && bok {
		return te.ClassOf(sa) == te.ClassOf(sb)
	}
	return false
}

// BaseName returns the name without its trailing ".<digits>" suffix.
func BaseName(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i < len(name) && i > 1 && name[i-1] == '.' {
		return name[:i-1]
	}
	return name
}

// signature returns the canonical form of t used to key the classes.
func (te *TypeEquivalence) signature(t ir.Type) string {
	if s, ok := te.signatures[t]; ok {
		return s
	}
	var s string
	switch t := t.(type) {
	case *ir.StructType:
		if !t.IsLiteral() {
			s = "%" + BaseName(t.Name())
		} else {
			s = "{" + te.signatureList(t.Fields()) + "}"
		}
	case *ir.PointerType:
		s = te.signature(t.Elem) + "*"
	case *ir.ArrayType:
		s = "[" + strconv.FormatInt(t.Len, 10) + " x " + te.signature(t.Elem) + "]"
	case *ir.VectorType:
		s = "<" + strconv.FormatInt(t.Len, 10) + " x " + te.signature(t.Elem) + ">"
	case *ir.FuncType:
		s = te.signature(t.Ret) + " (" + te.signatureList(t.Params)
		if t.Variadic {
			s += ", ..."
		}
		s += ")"
	default:
		s = t.String()
	}
	te.signatures[t] = s
	return s
}

func (te *TypeEquivalence) signatureList(types []ir.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = te.signature(t)
	}
	return strings.Join(parts, ", ")
}

// literalStructs returns the literal structure types reachable from the values of m, in order of appearance.
func literalStructs(m *ir.Module) []*ir.StructType {
	var result []*ir.StructType
	seen := map[ir.Type]bool{}
	var visit func(t ir.Type)
	visit = func(t ir.Type) {
		if seen[t] {
			return
		}
		seen[t] = true
		switch t := t.(type) {
		case *ir.StructType:
			if t.IsLiteral() {
				result = append(result, t)
			}
			for _, f := range t.Fields() {
				visit(f)
			}
		case *ir.PointerType:
			visit(t.Elem)
		case *ir.ArrayType:
			visit(t.Elem)
		case *ir.VectorType:
			visit(t.Elem)
		case *ir.FuncType:
			visit(t.Ret)
			for _, p := range t.Params {
				visit(p)
			}
		}
	}
	for _, t := range m.StructTypes() {
		visit(t)
	}
	for _, g := range m.Globals() {
		visit(g.Type())
	}
	for _, f := range m.Functions() {
		visit(f.Type())
	}
	m.ForEachInstruction(func(i ir.Instruction) {
		visit(i.Type())
		for _, op := range i.Operands() {
			visit(op.Type())
		}
	})
	return result
}
