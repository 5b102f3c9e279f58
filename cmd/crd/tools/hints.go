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

package tools

import "regexp"

// Captures errors happening before any analysis starts (program could not load)
var regexCouldNotLoad = regexp.MustCompile("could not load program")

// Captures the kind of error that happen when you put a flag at the end instead of go files
var namedFilesMustBeGoFiles = regexp.MustCompile("-: named files must be .go files: -(\\w)")

// Captures the error of the lowering when no function of the user packages was found
var noFunctionToLower = regexp.MustCompile("no function to lower")

// Captures the error of the ssa oracle when the program has no entry point
var missingMainPackage = regexp.MustCompile("no main package in the program")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexCouldNotLoad.MatchString(errMsg) {
		if namedFilesMustBeGoFiles.MatchString(errMsg) {
			return "all command line flags should be before the path to the Go files to analyze"
		}
		return "make sure you have provided the right arguments for the tool to load a Go program"
	}
	if noFunctionToLower.MatchString(errMsg) {
		return "the packages to analyze must belong to a module; standard library packages are never lowered"
	}
	if missingMainPackage.MatchString(errMsg) {
		return "the ssa oracle analyzes executables with an entry point; use -oracle store for libraries"
	}
	return ""
}
