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

// Package golower lowers Go programs in SSA form to the IR analyzed by the crd package.
//
// The lowering keeps the control-related structure of the program visible in the IR: function values are pointers
// to functions, interface values carry a pointer to a table of method pointers, and calls through interfaces load
// the method from that table, cast it to the method's type and call it indirectly. Memory is modelled with
// allocations, loads and stores: maps and channels point to a structure holding their keys and elements, and the
// free variables of closures are globals written when the closure is created.
package golower

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"path/filepath"
	"strconv"

	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/ir"
	"github.com/awslabs/ar-go-crd/analysis/lang"
	"github.com/awslabs/ar-go-crd/internal/funcutil"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"
)

var _ lang.InstrOp = (*Lowering)(nil)

// Options configure a lowering.
type Options struct {
	// Config provides the package filter. Defaults to config.NewDefault().
	Config *config.Config
	// Logger receives the progress messages. Defaults to a logger built from Config.
	Logger *config.LogGroup
	// Ignore returns true for the functions that must be lowered as declarations, e.g. the functions annotated
	// with an ignore directive. May be nil.
	Ignore func(*ssa.Function) bool
}

// Lowering is the result of lowering a Go program: the IR module and the maps between SSA and IR values.
type Lowering struct {
	// Module is the lowered module.
	Module *ir.Module
	// Program is the SSA program the module was lowered from.
	Program *ssa.Program
	// Values maps SSA values to the IR value computing them. Constants are not recorded.
	Values map[ssa.Value]ir.Value
	// Functions maps SSA functions to IR functions.
	Functions map[*ssa.Function]*ir.Function
	// Globals maps SSA globals to IR globals.
	Globals map[*ssa.Global]*ir.Global
	// Errors lists the functions that could not be lowered; they are declarations in the module.
	Errors []error

	config *config.Config
	logger *config.LogGroup
	ignore func(*ssa.Function) bool

	origins    map[ir.Value]ssa.Value
	ctx        *ir.Context
	types      typeutil.Map
	inProgress map[*types.Named]bool
	str        *ir.StructType
	iface      *ir.StructType

	requested map[*ssa.Function]bool
	packages  map[string]bool
	queue     []*ssa.Function
	decls     map[string]*ir.Function
	itabs     map[string]*ir.Global
	strings   map[string]*ir.Global
	envs      map[*ssa.Function][]*ir.Global

	// state of the function being lowered
	b      *ir.Builder
	irf    *ir.Function
	blocks map[*ssa.BasicBlock]*ir.BasicBlock
	phis   []*ssa.Phi
}

// Lower lowers the functions fns of prog to a new IR module. The functions that are not in fns, do not pass the
// package filter, are generic or are ignored become declarations when they are referenced. Wrappers of methods of
// the lowered packages are lowered with their bodies, since method tables refer to them.
//
// A function whose body cannot be lowered becomes a declaration, and the problem is recorded in Errors.
func Lower(prog *ssa.Program, fns map[*ssa.Function]bool, opts Options) (*Lowering, error) {
	if prog == nil {
		return nil, fmt.Errorf("no program to lower")
	}
	if len(fns) == 0 {
		return nil, fmt.Errorf("no function to lower")
	}
	l := newLowering(prog, opts)

	order := make([]*ssa.Function, 0, len(fns))
	for f, ok := range fns {
		if ok {
			order = append(order, f)
			l.requested[f] = true
			l.packages[lang.PackagePath(f)] = true
		}
	}
	slices.SortFunc(order, func(a, b *ssa.Function) bool { return a.String() < b.String() })

	l.lowerPackageGlobals()
	for _, f := range order {
		l.function(f)
	}
	for len(l.queue) > 0 {
		f := l.queue[0]
		l.queue = l.queue[1:]
		if err := l.lowerBody(f); err != nil {
			l.logger.Warnf("%v\n", err)
			l.Errors = append(l.Errors, err)
		}
	}
	l.logger.Infof("lowered %d functions, %d globals\n", len(l.Module.Functions()), len(l.Module.Globals()))
	return l, nil
}

func newLowering(prog *ssa.Program, opts Options) *Lowering {
	c := opts.Config
	if c == nil {
		c = config.NewDefault()
	}
	logger := opts.Logger
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	m := ir.NewModule("go")
	ctx := m.Context()
	l := &Lowering{
		Module:     m,
		Program:    prog,
		Values:     map[ssa.Value]ir.Value{},
		Functions:  map[*ssa.Function]*ir.Function{},
		Globals:    map[*ssa.Global]*ir.Global{},
		config:     c,
		logger:     logger,
		ignore:     opts.Ignore,
		origins:    map[ir.Value]ssa.Value{},
		ctx:        ctx,
		inProgress: map[*types.Named]bool{},
		requested:  map[*ssa.Function]bool{},
		packages:   map[string]bool{},
		decls:      map[string]*ir.Function{},
		itabs:      map[string]*ir.Global{},
		strings:    map[string]*ir.Global{},
		envs:       map[*ssa.Function][]*ir.Global{},
		b:          ir.NewBuilder(m),
	}
	l.str = ctx.CreateNamedStruct(StringTypeName, ctx.I8Ptr(), ctx.I64())
	l.iface = ctx.CreateNamedStruct(InterfaceTypeName, ctx.Pointer(l.slotType()), ctx.I8Ptr())
	return l
}

// SSAValue returns the SSA value an IR instruction or global was lowered from, or nil. Instructions materialized
// from a constant expression have the origin of that expression.
func (l *Lowering) SSAValue(v ir.Value) ssa.Value {
	if origin, ok := l.origins[v]; ok {
		return origin
	}
	if i, ok := v.(ir.Instruction); ok {
		if from := i.MaterializedFrom(); from != nil {
			return l.origins[from]
		}
	}
	return nil
}

// IsLoweredPackage returns true if functions of the package with path pkgPath were requested.
func (l *Lowering) IsLoweredPackage(pkgPath string) bool {
	return l.packages[pkgPath]
}

func (l *Lowering) bind(v ssa.Value, lowered ir.Value) {
	l.Values[v] = lowered
	switch lowered.(type) {
	case ir.Instruction, *ir.Global:
		if _, ok := l.origins[lowered]; !ok {
			l.origins[lowered] = v
		}
	}
}

// constantOrigins records v as the origin of the constant expressions in c, which become instructions when the
// module is normalized.
func (l *Lowering) constantOrigins(c ir.Value, v ssa.Value) {
	switch c := c.(type) {
	case *ir.ConstExpr:
		if _, ok := l.origins[c]; !ok {
			l.origins[c] = v
		}
		for _, op := range c.Operands() {
			l.constantOrigins(op, v)
		}
	case *ir.ConstAggregate:
		for _, op := range c.Operands() {
			l.constantOrigins(op, v)
		}
	}
}

// hasBody returns true if the body of f must be lowered.
func (l *Lowering) hasBody(f *ssa.Function) bool {
	if lang.IsExternal(f) || (f.TypeParams() != nil && f.TypeParams().Len() > 0) {
		return false
	}
	if l.ignore != nil && l.ignore(f) {
		l.logger.Debugf("%s is ignored\n", f)
		return false
	}
	if !l.config.MatchPkgFilter(lang.PackagePath(f)) {
		return false
	}
	return l.requested[f] || (f.Synthetic != "" && l.packages[lang.PackagePath(f)])
}

// function returns the IR function of f, declaring it on first use.
func (l *Lowering) function(f *ssa.Function) *ir.Function {
	if irf, ok := l.Functions[f]; ok {
		return irf
	}
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name()
	}
	irf := l.Module.NewFunction(f.String(), l.funcType(f.Signature), names...)
	l.Functions[f] = irf
	if l.hasBody(f) {
		l.queue = append(l.queue, f)
	}
	return irf
}

func (l *Lowering) global(g *ssa.Global) *ir.Global {
	if irg, ok := l.Globals[g]; ok {
		return irg
	}
	elem := g.Type().(*types.Pointer).Elem()
	irg := l.Module.NewGlobal(g.String(), l.typ(elem))
	l.Globals[g] = irg
	l.bind(g, irg)
	return irg
}

// lowerPackageGlobals declares the globals of the lowered packages, in package and name order.
func (l *Lowering) lowerPackageGlobals() {
	for _, path := range funcutil.SetToOrderedSlice(l.packages) {
		pkg := l.Program.ImportedPackage(path)
		if pkg == nil || !l.config.MatchPkgFilter(path) {
			continue
		}
		var names []string
		for name, member := range pkg.Members {
			if _, ok := member.(*ssa.Global); ok {
				names = append(names, name)
			}
		}
		slices.Sort(names)
		for _, name := range names {
			l.global(pkg.Members[name].(*ssa.Global))
		}
	}
}

// closureEnv returns the globals holding the free variables of f.
func (l *Lowering) closureEnv(f *ssa.Function) []*ir.Global {
	if env, ok := l.envs[f]; ok {
		return env
	}
	env := make([]*ir.Global, len(f.FreeVars))
	for i, fv := range f.FreeVars {
		env[i] = l.Module.NewGlobal(f.String()+".env."+fv.Name(), l.typ(fv.Type()))
	}
	l.envs[f] = env
	return env
}

func (l *Lowering) lowerBody(f *ssa.Function) (err error) {
	irf := l.Functions[f]
	defer func() {
		if r := recover(); r != nil {
			irf.DeleteBody()
			err = fmt.Errorf("could not lower %s: %v", f, r)
		}
	}()
	l.irf = irf
	l.blocks = make(map[*ssa.BasicBlock]*ir.BasicBlock, len(f.Blocks))
	l.phis = nil
	for _, b := range f.Blocks {
		l.blocks[b] = irf.NewBlock("b" + strconv.Itoa(b.Index))
	}

	l.b.SetInsertPoint(l.blocks[f.Blocks[0]])
	l.b.SetLoc(l.loc(f.Pos()))
	l.b.SetTypeTag("")
	for i, p := range f.Params {
		l.bind(p, l.param(f, i))
	}
	env := l.closureEnv(f)
	for i, fv := range f.FreeVars {
		l.bind(fv, l.b.Load(env[i], fv.Name()))
	}

	for _, b := range lang.BlocksInDominatorOrder(f) {
		l.b.SetInsertPoint(l.blocks[b])
		for _, instr := range b.Instrs {
			l.b.SetLoc(l.loc(instr.Pos()))
			lang.InstrSwitch(l, instr)
		}
	}

	for _, phi := range l.phis {
		irPhi := l.Values[phi].(*ir.Phi)
		for k, edge := range phi.Edges {
			irPhi.AddIncoming(l.value(edge), l.blocks[phi.Block().Preds[k]])
		}
	}
	l.logger.Tracef("lowered %s: %d blocks\n", f, len(f.Blocks))
	return nil
}

// param returns the value of the i-th parameter of f. The receiver of a method is received as an i8* and
// converted back to its type.
func (l *Lowering) param(f *ssa.Function, i int) ir.Value {
	arg := l.irf.Params()[i]
	if i > 0 || f.Signature.Recv() == nil {
		return arg
	}
	t := l.typ(f.Params[0].Type())
	if t == ir.Type(l.ctx.I8Ptr()) {
		return arg
	}
	if ir.IsPointer(t) {
		return l.b.BitCast(arg, t, "")
	}
	return l.b.Load(l.b.BitCast(arg, l.ctx.Pointer(t), ""), f.Params[0].Name())
}

func (l *Lowering) loc(pos token.Pos) *ir.DebugLoc {
	if !pos.IsValid() {
		return nil
	}
	p := l.Program.Fset.Position(pos)
	if !p.IsValid() {
		return nil
	}
	return &ir.DebugLoc{Dir: filepath.Dir(p.Filename), File: filepath.Base(p.Filename), Line: p.Line}
}

// value returns the IR value of an operand.
func (l *Lowering) value(v ssa.Value) ir.Value {
	switch v := v.(type) {
	case *ssa.Const:
		c := l.constant(v)
		l.constantOrigins(c, v)
		return c
	case *ssa.Function:
		return l.function(v)
	case *ssa.Global:
		return l.global(v)
	}
	if lowered, ok := l.Values[v]; ok {
		return lowered
	}
	panic(fmt.Sprintf("%s (%T) used before being lowered", v.Name(), v))
}

func (l *Lowering) constant(c *ssa.Const) ir.Value {
	t := l.typ(c.Type())
	if c.Value == nil {
		if ir.IsPointer(t) {
			return ir.NewConstNull(t)
		}
		return ir.NewConstZero(t)
	}
	switch c.Value.Kind() {
	case constant.Bool:
		if constant.BoolVal(c.Value) {
			return ir.NewConstInt(t, 1)
		}
		return ir.NewConstInt(t, 0)
	case constant.String:
		return l.stringConstant(constant.StringVal(c.Value))
	case constant.Int, constant.Float:
		switch t.(type) {
		case *ir.IntType:
			return ir.NewConstInt(t, int64Val(c.Value))
		case *ir.FloatType:
			f, _ := constant.Float64Val(constant.ToFloat(c.Value))
			return ir.NewConstFloat(t, f)
		}
	case constant.Complex:
		if st, ok := t.(*ir.StructType); ok && st.NumFields() == 2 {
			re, _ := constant.Float64Val(constant.ToFloat(constant.Real(c.Value)))
			im, _ := constant.Float64Val(constant.ToFloat(constant.Imag(c.Value)))
			return ir.NewConstAggregate(st, ir.NewConstFloat(st.Field(0), re), ir.NewConstFloat(st.Field(1), im))
		}
	}
	return ir.NewConstZero(t)
}

func int64Val(v constant.Value) int64 {
	v = constant.ToInt(v)
	if x, exact := constant.Int64Val(v); exact {
		return x
	}
	x, _ := constant.Uint64Val(v)
	return int64(x)
}

// stringConstant returns the runtime.string constant pointing to a global holding the bytes of s.
func (l *Lowering) stringConstant(s string) ir.Value {
	g, ok := l.strings[s]
	if !ok {
		arr := l.ctx.Array(l.ctx.I8(), int64(len(s)))
		g = l.Module.NewGlobal(".str", arr)
		g.SetInitializer(ir.NewConstString(arr, s))
		l.strings[s] = g
	}
	zero := ir.NewConstInt(l.ctx.I64(), 0)
	ptr := ir.NewGEPExpr(g, zero, zero)
	return ir.NewConstAggregate(l.str, ptr, ir.NewConstInt(l.ctx.I64(), int64(len(s))))
}

// declare returns the declaration of the function name with the given type. Declarations of the same name with
// different types are distinct functions.
func (l *Lowering) declare(name string, ret ir.Type, params []ir.Type) *ir.Function {
	sig := l.ctx.Func(ret, params, false)
	key := name + " " + sig.String()
	if f, ok := l.decls[key]; ok {
		return f
	}
	f := l.Module.NewFunction(name, sig)
	l.decls[key] = f
	return f
}

// runtimeCall calls the runtime function name with args.
func (l *Lowering) runtimeCall(name string, ret ir.Type, args ...ir.Value) *ir.Call {
	params := make([]ir.Type, len(args))
	for i, a := range args {
		params[i] = a.Type()
	}
	return l.b.Call(l.declare("runtime."+name, ret, params), args, "")
}
