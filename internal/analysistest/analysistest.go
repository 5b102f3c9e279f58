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

package analysistest

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-crd/analysis"
	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/lang"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// LoadTest loads the program in the directory dir, looking for a main.go and an optional config.yaml. If additional
// files are specified as extraFiles, the program will be loaded using those files too.
func LoadTest(t *testing.T, dir string, extraFiles []string) (analysis.LoadedProgram, *config.Config) {
	t.Helper()
	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		config.SetGlobalConfig(configFile)
	} else {
		config.SetGlobalConfig("")
	}
	files := []string{filepath.Join(dir, "./main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	program, err := analysis.LoadProgram(nil, "", ssa.InstantiateGenerics, files)
	if err != nil {
		t.Fatalf("error loading packages: %v", err)
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading global config: %v", err)
	}
	return program, cfg
}

// CRDRegex matches the annotation of a line holding control-related data: "// @CRD"
var CRDRegex = regexp.MustCompile(`//.*@CRD\b`)

// SafeRegex matches the annotation of a line that holds no control-related data: "// @Safe"
var SafeRegex = regexp.MustCompile(`//.*@Safe\b`)

// LPos is a line in a file, identified by the base name of the file.
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// NewLPos returns the line position of a file path and a line.
func NewLPos(path string, line int) LPos {
	return LPos{Filename: filepath.Base(path), Line: line}
}

// GetAnnotatedLines parses the Go files in dir and returns the lines with a comment matching annotation.
func GetAnnotatedLines(dir string, annotation *regexp.Regexp) (map[LPos]bool, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(info os.FileInfo) bool {
		return strings.HasSuffix(info.Name(), ".go")
	}, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", dir, err)
	}
	lines := map[LPos]bool{}
	for _, pkg := range pkgs {
		for _, f := range pkg.Files {
			for _, group := range f.Comments {
				for _, c := range group.List {
					if annotation.MatchString(c.Text) {
						pos := fset.Position(c.Pos())
						lines[NewLPos(pos.Filename, pos.Line)] = true
					}
				}
			}
		}
	}
	return lines, nil
}

// FunctionsOf returns the functions of the program whose package path is pkgPath, including the anonymous functions
// and the synthetic wrappers of their methods.
func FunctionsOf(program *ssa.Program, pkgPath string) map[*ssa.Function]bool {
	fns := map[*ssa.Function]bool{}
	for f := range ssautil.AllFunctions(program) {
		if lang.PackagePath(f) == pkgPath {
			fns[f] = true
		}
	}
	return fns
}
