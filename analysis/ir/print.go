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

package ir

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteTo writes the textual form of the module to w.
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	fmt.Fprintf(cw, "; module %s\n", m.Name)
	if structs := m.StructTypes(); len(structs) > 0 {
		cw.WriteString("\n")
		for _, t := range structs {
			fmt.Fprintf(cw, "%%%s = type %s\n", t.Name(), t.Body())
		}
	}
	if len(m.globals) > 0 {
		cw.WriteString("\n")
		for _, g := range m.globals {
			cw.WriteString(g.String() + "\n")
		}
	}
	for _, f := range m.functions {
		cw.WriteString("\n")
		writeFunction(cw, f)
	}
	if err := cw.w.Flush(); err != nil && cw.err == nil {
		cw.err = err
	}
	return cw.n, cw.err
}

// String returns the textual form of the module.
func (m *Module) String() string {
	var sb strings.Builder
	_, _ = m.WriteTo(&sb)
	return sb.String()
}

func writeFunction(w *countingWriter, f *Function) {
	if f.IsDeclaration() {
		w.WriteString(f.String() + "\n")
		return
	}
	w.WriteString(f.String() + " {\n")
	for k, b := range f.blocks {
		if k > 0 {
			w.WriteString("\n")
		}
		w.WriteString(b.name + ":\n")
		for _, i := range b.instrs {
			w.WriteString("  " + i.String())
			if loc := i.Loc(); loc != nil {
				fmt.Fprintf(w, " ; %s", loc)
			}
			w.WriteString("\n")
		}
	}
	w.WriteString("}\n")
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

func (c *countingWriter) WriteString(s string) {
	_, _ = c.Write([]byte(s))
}
