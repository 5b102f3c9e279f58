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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/ar-go-crd/analysis/ir"
)

// SourceCache caches the lines of the source files read while reporting. Each file is read at most once; a file
// that cannot be read is remembered as such.
type SourceCache struct {
	files map[string][]string
}

// NewSourceCache returns an empty cache.
func NewSourceCache() *SourceCache {
	return &SourceCache{files: map[string][]string{}}
}

// Line returns the line of the file at path, numbered from 1, without its surrounding spaces. Returns false if the
// file cannot be read or has fewer lines.
func (c *SourceCache) Line(path string, line int) (string, bool) {
	lines, ok := c.files[path]
	if !ok {
		lines = readLines(path)
		c.files[path] = lines
	}
	if line < 1 || line > len(lines) {
		return "", false
	}
	return strings.TrimSpace(lines[line-1]), true
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// WriteControlRelated writes the numbered list of the control-related values, in module order.
// An instruction is printed with its source line and location, then its text and function; a global with its
// declaration; an argument with its function.
func WriteControlRelated(w io.Writer, s *AnalyzerState, cache *SourceCache) error {
	if cache == nil {
		cache = NewSourceCache()
	}
	bw := bufio.NewWriter(w)
	for n, v := range s.ControlRelated.Ordered(s.Index()) {
		switch v := v.(type) {
		case ir.Instruction:
			fmt.Fprintf(bw, "%d: %s\n\t%s in %s\n", n, instructionLocation(v, cache), v, v.Parent().Name())
		case *ir.Global:
			fmt.Fprintf(bw, "%d: %s\n", n, v)
		case *ir.Argument:
			fmt.Fprintf(bw, "%d: %s in %s\n", n, v, v.Parent().Name())
		default:
			fmt.Fprintf(bw, "%d: %s\n", n, v)
		}
	}
	return bw.Flush()
}

func instructionLocation(i ir.Instruction, cache *SourceCache) string {
	loc := i.Loc()
	if loc == nil {
		return ""
	}
	source, _ := cache.Line(loc.Path(), loc.Line)
	return fmt.Sprintf("%s(%s)", source, loc)
}

// WriteMemoryObjects writes the numbered list of the memory objects.
func WriteMemoryObjects(w io.Writer, objects []ir.Value) error {
	bw := bufio.NewWriter(w)
	for n, obj := range objects {
		if i, ok := obj.(ir.Instruction); ok {
			fmt.Fprintf(bw, "%d: %s in %s", n, i, i.Parent().Name())
			if loc := i.Loc(); loc != nil {
				fmt.Fprintf(bw, " (%s)", loc)
			}
			bw.WriteString("\n")
		} else {
			fmt.Fprintf(bw, "%d: %s\n", n, obj)
		}
	}
	return bw.Flush()
}

// Summary returns a one line summary of the result.
func (r AnalysisResult) Summary() string {
	return fmt.Sprintf("%d sources, %d tainted values after %d sweeps, %d control-related values, %d memory objects",
		len(r.Sources), len(r.Tainted), len(r.Sweeps), len(r.ControlRelated), len(r.MemoryObjects))
}
