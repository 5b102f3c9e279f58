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

package lower

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFlags(t *testing.T) {
	flags, err := NewFlags([]string{"-o", "out.ll", "-normalize", "./cmd/server"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flags.output != "out.ll" || !flags.normalize {
		t.Errorf("flags not parsed: %+v", flags)
	}
	if args := flags.FlagSet.Args(); len(args) != 1 || args[0] != "./cmd/server" {
		t.Errorf("unexpected arguments %v", args)
	}
}

func TestRunWritesModule(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pick.ll")
	program := filepath.Join("..", "..", "..", "analysis", "pointsto", "testdata", "src", "pick", "main.go")
	flags, err := NewFlags([]string{"-o", out, "-normalize", program})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Run(flags); err != nil {
		t.Fatalf("ir command failed: %v", err)
	}
	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("could not read output: %v", err)
	}
	for _, expected := range []string{"define ", "command-line-arguments.main(", "command-line-arguments.pick("} {
		if !strings.Contains(string(content), expected) {
			t.Errorf("output should contain %q:\n%s", expected, content)
		}
	}
}
