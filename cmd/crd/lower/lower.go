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

// Package lower implements the front-end printing the IR of Go programs.
package lower

import (
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-go-crd/analysis"
	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/ir"
	"github.com/awslabs/ar-go-crd/cmd/crd/tools"
	"github.com/awslabs/ar-go-crd/internal/formatutil"
)

const usage = ` Print the IR the analysis runs on.
Usage:
  crd ir [options] <package path(s)>
Examples:
  % crd ir -normalize -o main.ll ./cmd/server
`

// Flags represents the parsed flags of the ir command.
type Flags struct {
	tools.CommonFlags
	output    string
	normalize bool
}

// NewFlags returns the parsed flags of the ir command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("ir")
	output := flags.FlagSet.String("o", "", "output file; standard output if empty")
	normalize := flags.FlagSet.Bool("normalize", false, "materialize the constant expressions used as operands")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, output: *output, normalize: *normalize}, nil
}

// Run lowers the packages of flags and prints the module.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)
	logger.Infof(formatutil.Faint("crd ir - " + analysis.Version))

	_, lowering, err := tools.LoadAndLower(flags.CommonFlags, cfg, logger)
	if err != nil {
		return err
	}
	for _, err := range lowering.Errors {
		logger.Warnf("%v\n", err)
	}
	if flags.normalize {
		n := ir.MaterializeConstantExprs(lowering.Module)
		logger.Infof("Materialized %d constant expressions\n", n)
	}

	var w io.Writer = os.Stdout
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := lowering.Module.WriteTo(w); err != nil {
		return fmt.Errorf("could not write module: %w", err)
	}
	return nil
}
