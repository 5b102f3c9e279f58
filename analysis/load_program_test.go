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

package analysis

import (
	"go/ast"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/ssa"
)

func TestNewDirective(t *testing.T) {
	tests := []struct {
		text string
		ok   bool
	}{
		{"//crd:ignore", true},
		{"// crd:ignore ", true},
		{"//crd:ignored", false},
		{"// crd:unknown", false},
		{"// ignore", false},
	}
	for _, test := range tests {
		d, ok := NewDirective(&ast.Comment{Text: test.text})
		if ok != test.ok {
			t.Errorf("NewDirective(%q) = %v, want %v", test.text, ok, test.ok)
		}
		if ok && d.Kind != DirectiveIgnore {
			t.Errorf("NewDirective(%q) has kind %q", test.text, d.Kind)
		}
	}
}

func TestLoadProgramDirectives(t *testing.T) {
	file := filepath.Join("testdata", "src", "directives", "main.go")
	loaded, err := LoadProgram(nil, "", ssa.InstantiateGenerics, []string{file})
	if err != nil {
		t.Fatalf("error loading packages: %s", err)
	}
	if len(loaded.Directives) != 1 {
		t.Errorf("expected 1 directive, got %d", len(loaded.Directives))
	}

	user := UserPackages(loaded.Packages)
	if _, ok := user["command-line-arguments"]; !ok {
		t.Fatalf("the main package is not a user package: %v", user)
	}
	fns := UserFunctions(loaded.Program, user)

	var pkg *ssa.Package
	for _, p := range loaded.Program.AllPackages() {
		if p.Pkg.Path() == "command-line-arguments" {
			pkg = p
		}
	}
	if pkg == nil {
		t.Fatalf("main package not found")
	}
	for name, ignored := range map[string]bool{"unsafeCopy": true, "handler": false, "other": false, "main": false} {
		f := pkg.Func(name)
		if f == nil {
			t.Errorf("function %s not found", name)
			continue
		}
		if !fns[f] {
			t.Errorf("%s is not a user function", name)
		}
		if got := loaded.Directives.IgnoresFunction(loaded.Program.Fset, f); got != ignored {
			t.Errorf("IgnoresFunction(%s) = %v, want %v", name, got, ignored)
		}
	}
}
