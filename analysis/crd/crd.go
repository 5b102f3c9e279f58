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

// Package crd identifies the control-related data of a module: the values and memory objects whose corruption can
// change which code executes.
//
// The analysis runs the following steps over one module:
//   - constant expressions used as operands are materialized into instructions (ir.MaterializeConstantExprs)
//   - structure types are grouped into equivalence classes (TypeEquivalence)
//   - indirect call sites are resolved by type matching (CallGraph)
//   - the values of sensitive types are seeded as taint sources (SeedSources)
//   - taint is propagated inside functions and through call edges until a fixpoint is reached (Propagate)
//   - the values the tainted values depend on are traced backwards (Backtrace)
//   - the control-related values are mapped to memory objects with a points-to oracle (MapMemoryObjects)
package crd

import (
	"fmt"
	"time"

	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/ir"
)

// PointsToOracle answers points-to queries on the values of a module. Only instructions and globals are queried.
type PointsToOracle interface {
	// Initialize runs the points-to analysis on the module.
	Initialize(m *ir.Module) error
	// PointsTo returns the memory objects v may point to. Values unknown to the oracle have no objects.
	PointsTo(v ir.Value) []ir.Value
}

// AnalyzerState holds the state of one analysis run over a module. Every step of the analysis reads and populates its
// fields; nothing is shared between runs.
type AnalyzerState struct {
	// Module is the module being analyzed.
	Module *ir.Module

	// The logger used during the analysis
	Logger *config.LogGroup

	// The configuration of the analysis
	Config *config.Config

	// Oracle answers the points-to queries of the memory object mapping. May be nil, in which case loads do not
	// contribute memory objects.
	Oracle PointsToOracle

	// TypeClasses are the equivalence classes of the structure types
	TypeClasses *TypeEquivalence

	// CallGraph holds the direct and resolved indirect call edges
	CallGraph *CallGraph

	// Classifier decides which types are sensitive
	Classifier *Classifier

	// Sources are the values seeded before propagation
	Sources ValueSet

	// Tainted is the set of tainted values; it only grows
	Tainted ValueSet

	// ControlRelated is the set of values that are tainted or that a tainted value depends on
	ControlRelated ValueSet

	// MemoryObjects are the storage locations of the control-related values
	MemoryObjects ValueSet

	// Sweeps holds the size of the tainted set after each sweep of the fixpoint
	Sweeps []int

	// returns maps functions to the values they return
	returns map[*ir.Function][]ir.Value

	// taintReturning contains the functions that return a tainted value
	taintReturning map[*ir.Function]bool

	// taintedVarArgs contains the functions receiving tainted variadic arguments
	taintedVarArgs map[*ir.Function]bool

	// index numbers the values of the module, for deterministic outputs
	index map[ir.Value]int

	// Stored errors
	errors map[string][]error
}

// NewAnalyzerState returns a state for analyzing module m with the logger and configuration provided. A nil logger
// or configuration is replaced by the default ones.
func NewAnalyzerState(m *ir.Module, logger *config.LogGroup, c *config.Config) *AnalyzerState {
	if c == nil {
		c = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	return &AnalyzerState{
		Module:         m,
		Logger:         logger,
		Config:         c,
		Classifier:     NewClassifier(c, logger),
		Sources:        ValueSet{},
		Tainted:        ValueSet{},
		ControlRelated: ValueSet{},
		MemoryObjects:  ValueSet{},
		returns:        map[*ir.Function][]ir.Value{},
		taintReturning: map[*ir.Function]bool{},
		taintedVarArgs: map[*ir.Function]bool{},
		errors:         map[string][]error{},
	}
}

// AnalysisResult holds the sets computed by one run, each ordered as the values appear in the module.
type AnalysisResult struct {
	Sources        []ir.Value
	Tainted        []ir.Value
	ControlRelated []ir.Value
	MemoryObjects  []ir.Value
	// Sweeps is the size of the tainted set after each sweep of the fixpoint
	Sweeps []int
	// Errors are the non-fatal errors raised during the analysis
	Errors []error
}

// Analyze runs all the steps of the analysis on the state's module. The module is normalized first; it is not
// modified after that, so that the points-to oracle is built on the module the taint analysis ran on.
func Analyze(state *AnalyzerState) (AnalysisResult, error) {
	if state.Module == nil {
		return AnalysisResult{}, fmt.Errorf("no module to analyze")
	}
	logger := state.Logger
	start := time.Now()

	n := ir.MaterializeConstantExprs(state.Module)
	logger.Debugf("Materialized %d constant expressions\n", n)
	state.index = state.Module.Enumerate()

	state.TypeClasses = NewTypeEquivalence(state.Module)
	logger.Debugf("%d structure types in %d equivalence classes\n",
		len(state.Module.StructTypes()), state.TypeClasses.NumClasses())

	state.CallGraph = BuildCallGraph(state.Module, state.TypeClasses)
	logger.Infof("Call graph: %d direct call sites, %d indirect call sites, %d address-taken functions\n",
		len(state.CallGraph.DirectCalls), len(state.CallGraph.IndirectSites), state.CallGraph.AddressTaken.Len())

	state.SeedSources()
	logger.Infof("Seeded %d taint sources\n", len(state.Sources))

	state.Propagate()
	logger.Infof("Taint propagation reached a fixpoint after %d sweeps: %d tainted values\n",
		len(state.Sweeps), len(state.Tainted))

	state.Backtrace()
	logger.Infof("%d control-related values\n", len(state.ControlRelated))

	if state.Oracle != nil {
		if err := state.Oracle.Initialize(state.Module); err != nil {
			state.AddError("points-to", fmt.Errorf("points-to analysis failed: %w", err))
			state.Oracle = nil
		}
	}
	state.MapMemoryObjects()
	logger.Infof("%d memory objects hold control-related data\n", len(state.MemoryObjects))
	logger.Infof("Analysis done in %.2f s\n", time.Since(start).Seconds())

	return state.Result(), nil
}

// Result returns the sets of the state, ordered.
func (s *AnalyzerState) Result() AnalysisResult {
	res := AnalysisResult{
		Sources:        s.Sources.Ordered(s.Index()),
		Tainted:        s.Tainted.Ordered(s.Index()),
		ControlRelated: s.ControlRelated.Ordered(s.Index()),
		MemoryObjects:  s.MemoryObjects.Ordered(s.Index()),
		Sweeps:         s.Sweeps,
	}
	for errs := s.CheckError(); len(errs) > 0; errs = s.CheckError() {
		res.Errors = append(res.Errors, errs...)
	}
	return res
}

// Index returns the numbering of the values of the module.
func (s *AnalyzerState) Index() map[ir.Value]int {
	if s.index == nil {
		s.index = s.Module.Enumerate()
	}
	return s.index
}

// IsTaintReturning returns true if f returns a tainted value.
func (s *AnalyzerState) IsTaintReturning(f *ir.Function) bool { return s.taintReturning[f] }

// ReceivesTaintedVarArgs returns true if f is called with tainted variadic arguments.
func (s *AnalyzerState) ReceivesTaintedVarArgs(f *ir.Function) bool { return s.taintedVarArgs[f] }

// ReturnedValues returns the values returned by the return instructions of f.
func (s *AnalyzerState) ReturnedValues(f *ir.Function) []ir.Value { return s.returns[f] }

// AddError adds an error with key and error e to the state.
func (s *AnalyzerState) AddError(key string, e error) {
	if e != nil {
		s.errors[key] = append(s.errors[key], e)
	}
}

// CheckError checks whether there is an error in the state, and if there is, returns the errors associated with one
// single error key and deletes them.
func (s *AnalyzerState) CheckError() []error {
	for e, errs := range s.errors {
		delete(s.errors, e)
		return errs
	}
	return nil
}
