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

// HandleCallSite propagates taint between the call site and callee, one of its possible targets. Returns true if
// the tainted set or the variadic argument information changed.
//
//   - ignored callees do not propagate anything;
//   - data movement callees propagate between their first two arguments only;
//   - other intrinsics do not propagate anything;
//   - otherwise, taint flows between each formal parameter and the corresponding actual argument, and a tainted
//     actual argument beyond the formal parameters marks the callee as receiving tainted variadic arguments.
func (s *AnalyzerState) HandleCallSite(site ir.CallInstruction, callee *ir.Function) bool {
	name := callee.Name()
	if s.Config.IsIgnoredFunction(name) {
		return false
	}
	args := site.Args()
	if s.Config.IsDataMovementFunction(name) {
		if len(args) < 2 {
			return false
		}
		return s.Tainted.flowBoth(args[0], args[1])
	}
	if callee.IsIntrinsic() {
		return false
	}

	changed := false
	params := callee.Params()
	k := 0
	for ; k < len(params) && k < len(args); k++ {
		if s.Tainted.flowBoth(params[k], args[k]) {
			changed = true
		}
	}
	for ; k < len(args); k++ {
		if s.Tainted.Has(args[k]) && !s.taintedVarArgs[callee] {
			s.Logger.Tracef("%s receives tainted variadic arguments at %s\n", name, site)
			s.taintedVarArgs[callee] = true
			changed = true
		}
	}
	return changed
}
