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
	"io"
	"testing"

	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/ir"
)

func newTestState(m *ir.Module) *AnalyzerState {
	c := config.NewDefault()
	c.LogLevel = int(config.ErrLevel)
	logger := config.NewLogGroup(c)
	logger.SetAllOutput(io.Discard)
	return NewAnalyzerState(m, logger, c)
}

// prepare computes the type classes and the call graph, without normalizing the module.
func prepare(s *AnalyzerState) *AnalyzerState {
	s.TypeClasses = NewTypeEquivalence(s.Module)
	s.CallGraph = BuildCallGraph(s.Module, s.TypeClasses)
	return s
}

// describe returns a name for v that is unique in a module.
func describe(v ir.Value) string {
	switch v := v.(type) {
	case ir.Instruction:
		return v.Parent().Name() + ":" + v.Ident()
	case *ir.Argument:
		return v.Parent().Name() + ":" + v.Ident()
	}
	return v.Ident()
}

func describeAll(values []ir.Value) []string {
	var result []string
	for _, v := range values {
		result = append(result, describe(v))
	}
	return result
}

func expectIn(t *testing.T, set ValueSet, setName string, values ...ir.Value) {
	t.Helper()
	for _, v := range values {
		if !set.Has(v) {
			t.Errorf("%s should be in the %s set", describe(v), setName)
		}
	}
}

func expectNotIn(t *testing.T, set ValueSet, setName string, values ...ir.Value) {
	t.Helper()
	for _, v := range values {
		if set.Has(v) {
			t.Errorf("%s should not be in the %s set", describe(v), setName)
		}
	}
}

// mapOracle answers points-to queries from a map.
type mapOracle struct {
	initialized bool
	objects     map[ir.Value][]ir.Value
}

func (o *mapOracle) Initialize(*ir.Module) error {
	o.initialized = true
	return nil
}

func (o *mapOracle) PointsTo(v ir.Value) []ir.Value { return o.objects[v] }
