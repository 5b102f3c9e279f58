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

/*
Package analyze implements the front-end of the control-related data analysis. The packages are loaded, the
functions of the user packages are lowered to the IR, and the analysis prints the control-related values with their
source lines, then the memory objects holding them.

Usage:

	crd analyze [flags] -config config.yaml main.go

The flags are:

	-config path      a path to the configuration file

	-oracle name      the points-to oracle, ssa or store, overrides the config file option if set

	-verbose=false    setting verbose mode, overrides config file options if set

	-with-test=false  load the tests of the packages
*/
package analyze
