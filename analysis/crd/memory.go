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
	"github.com/awslabs/ar-go-crd/analysis/ir"
)

// MapMemoryObjects computes the memory objects holding control-related data: the allocations and globals of the
// control-related set, and the objects the control-related loads read from, according to the points-to oracle.
// Functions returned by the oracle are not memory objects.
func (s *AnalyzerState) MapMemoryObjects() {
	for _, v := range s.ControlRelated.Ordered(s.Index()) {
		switch v := v.(type) {
		case *ir.Load:
			if s.Oracle == nil || !isOracleQuery(v.Pointer()) {
				continue
			}
			for _, obj := range s.Oracle.PointsTo(v.Pointer()) {
				if _, isFunc := obj.(*ir.Function); !isFunc {
					s.MemoryObjects.Add(obj)
				}
			}
		case *ir.Alloca, *ir.Global:
			s.MemoryObjects.Add(v)
		}
	}
}

// isOracleQuery returns true for the values the points-to oracle can be queried on.
func isOracleQuery(v ir.Value) bool {
	switch v.(type) {
	case ir.Instruction, *ir.Global:
		return true
	}
	return false
}
