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
	"strings"

	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/ir"
)

// A Route is the chain of types through which a type was found to be sensitive: the type itself, then the member
// type that makes it sensitive, and so on down to the function type.
type Route []ir.Type

func (r Route) String() string {
	parts := make([]string, len(r))
	for i, t := range r {
		parts[i] = t.String()
	}
	return strings.Join(parts, " -> ")
}

// Classifier decides which types hold control-sensitive data: function pointers, and aggregates or arrays
// containing one.
type Classifier struct {
	config *config.Config
	logger *config.LogGroup
	memo   map[ir.Type]bool
	routes map[ir.Type]Route
}

// NewClassifier returns a classifier with an empty memo.
func NewClassifier(c *config.Config, logger *config.LogGroup) *Classifier {
	return &Classifier{
		config: c,
		logger: logger,
		memo:   map[ir.Type]bool{},
		routes: map[ir.Type]Route{},
	}
}

// IsSensitive classifies t with a fresh visited set. tag is the type tag of the instruction where t is used, or "".
func (c *Classifier) IsSensitive(t ir.Type, tag string) bool {
	s, provisional := c.classify(t, map[ir.Type]bool{}, tag)
	// a traversal from an empty visited set has seen every type reachable from t
	if tag == "" && provisional {
		c.memo[t] = s
	}
	return s
}

// Classify returns true if t is control-sensitive. visited holds the pointee types already being classified; a
// pointee that is visited again is not sensitive, which breaks the cycles of self-referential structures.
//
// Untagged results are memoized, except the ones that depend on a broken cycle. A tagged classification never
// reads nor writes the memo entry of t.
func (c *Classifier) Classify(t ir.Type, visited map[ir.Type]bool, tag string) bool {
	s, _ := c.classify(t, visited, tag)
	return s
}

// Memoized returns the memoized sensitivity of t, and whether there is one.
func (c *Classifier) Memoized(t ir.Type) (sensitive bool, ok bool) {
	sensitive, ok = c.memo[t]
	return
}

// Route returns the route of a type memoized as sensitive, or nil.
func (c *Classifier) Route(t ir.Type) Route { return c.routes[t] }

// classify returns the sensitivity of t and, if t is not sensitive, whether that result is provisional, i.e.
// computed while a cycle was broken. Sensitive results are never provisional.
func (c *Classifier) classify(t ir.Type, visited map[ir.Type]bool, tag string) (bool, bool) {
	if tag == "" {
		if s, ok := c.memo[t]; ok {
			return s, false
		}
	}
	s, next, provisional := c.compute(t, visited, tag)
	if tag == "" && !provisional {
		c.memo[t] = s
		if s {
			route := Route{t}
			if r := c.routes[next]; r != nil {
				route = append(route, r...)
			} else if next != nil {
				route = append(route, next)
			}
			c.routes[t] = route
			if c.logger != nil && c.logger.LogsTrace() {
				c.logger.Tracef("sensitive type %s: %s\n", t, c.routes[t])
			}
		}
	}
	return s, provisional
}

// compute applies the classification rules. next is the member type that made t sensitive, if any.
func (c *Classifier) compute(t ir.Type, visited map[ir.Type]bool, tag string) (sensitive bool, next ir.Type,
	provisional bool) {
	switch t.(type) {
	case *ir.FuncType:
		return true, nil, false
	case *ir.VoidType, *ir.LabelType, *ir.IntType, *ir.FloatType:
		return false, nil, false
	}
	if tag != "" && c.config.IsFunctionPointerTag(tag) {
		return true, nil, false
	}

	pointee := ir.StripPointers(t)
	if visited[pointee] {
		return false, nil, true
	}
	visited[pointee] = true

	switch p := pointee.(type) {
	case *ir.FuncType:
		return true, pointee, false
	case *ir.ArrayType:
		s, prov := c.classify(p.Elem, visited, "")
		return s, p.Elem, prov
	case *ir.VectorType:
		s, prov := c.classify(p.Elem, visited, "")
		return s, p.Elem, prov
	case *ir.StructType:
		if p.IsOpaque() {
			return false, nil, false
		}
		if p.NumFields() == 0 {
			return tag == config.TagFunctionPointer, nil, false
		}
		for _, f := range p.Fields() {
			s, prov := c.classify(f, visited, "")
			if s {
				return true, f, false
			}
			provisional = provisional || prov
		}
		return false, nil, provisional
	}
	return false, nil, false
}
