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

package lang

import (
	"golang.org/x/tools/go/ssa"
)

// IsExternal returns true if function is external (in ssa, when Blocks is nil)
func IsExternal(function *ssa.Function) bool {
	// This is indicated in the ssa documentation
	return function.Blocks == nil
}

// PackagePath returns the path of the package the function belongs to. Synthetic wrappers do not have a package;
// their path is the one of the object they wrap, or "" if there is none.
func PackagePath(function *ssa.Function) string {
	if function.Pkg != nil {
		return function.Pkg.Pkg.Path()
	}
	if obj := function.Object(); obj != nil && obj.Pkg() != nil {
		return obj.Pkg().Path()
	}
	return ""
}

// BlocksInDominatorOrder returns the blocks of the function such that a block always comes after its immediate
// dominator. Blocks outside the dominator tree (the recover block) come last, in index order.
func BlocksInDominatorOrder(function *ssa.Function) []*ssa.BasicBlock {
	order := function.DomPreorder()
	seen := make(map[*ssa.BasicBlock]bool, len(order))
	for _, b := range order {
		seen[b] = true
	}
	for _, b := range function.Blocks {
		if !seen[b] {
			order = append(order, b)
		}
	}
	return order
}
