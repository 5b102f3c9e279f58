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

// Package formatutil formats the messages printed by the command line tools.
package formatutil

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// A Style formats its arguments like fmt.Sprint, wrapped in terminal escape sequences when colors are enabled.
type Style func(...any) string

var (
	Bold   = Color("\033[1m%s\033[0m")
	Faint  = Color("\033[2m%s\033[0m")
	Red    = Color("\033[1;31m%s\033[0m")
	Green  = Color("\033[1;32m%s\033[0m")
	Yellow = Color("\033[1;33m%s\033[0m")
)

// Enabled reports whether the styles emit escape sequences: the standard output must be a terminal and NO_COLOR must
// not be set.
var Enabled = func() bool {
	_, noColor := os.LookupEnv("NO_COLOR")
	return !noColor && term.IsTerminal(int(os.Stdout.Fd()))
}

// Color returns the style wrapping its arguments in the format colorString.
func Color(colorString string) Style {
	return func(args ...any) string {
		if Enabled() {
			return fmt.Sprintf(colorString, fmt.Sprint(args...))
		}
		return fmt.Sprint(args...)
	}
}
