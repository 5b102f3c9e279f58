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

package analyze

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/awslabs/ar-go-crd/analysis"
	"github.com/awslabs/ar-go-crd/analysis/config"
	"github.com/awslabs/ar-go-crd/analysis/crd"
	"github.com/awslabs/ar-go-crd/analysis/golower"
	"github.com/awslabs/ar-go-crd/analysis/pointsto"
	"github.com/awslabs/ar-go-crd/cmd/crd/tools"
	"github.com/awslabs/ar-go-crd/internal/formatutil"
	"golang.org/x/tools/go/ssa/ssautil"
)

const usage = ` Identify the control-related data of your packages.
Usage:
  crd analyze [options] <package path(s)>
Examples:
  % crd analyze -config config.yaml ./cmd/server
  % crd analyze -oracle store ./pkg/...
`

// Flags represents the parsed flags of the analyze command.
type Flags struct {
	tools.CommonFlags
	oracle string
}

// NewFlags returns the parsed flags of the analyze command with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("analyze")
	oracle := flags.FlagSet.String("oracle", "", "points-to oracle, ssa or store; overrides the config file")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	switch *oracle {
	case "", config.OracleSSA, config.OracleStore:
	default:
		return Flags{}, fmt.Errorf("unknown oracle %q, expected %q or %q", *oracle, config.OracleSSA,
			config.OracleStore)
	}
	return Flags{CommonFlags: common, oracle: *oracle}, nil
}

// Run loads, lowers and analyzes the packages of flags and prints the control-related values and the memory
// objects on standard output.
func Run(flags Flags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if flags.oracle != "" {
		cfg.Oracle = flags.oracle
	}
	logger := config.NewLogGroup(cfg)
	logger.Infof(formatutil.Faint("crd analyze - " + analysis.Version))
	logger.Infof(formatutil.Faint("Reading sources") + "\n")

	_, lowering, err := tools.LoadAndLower(flags.CommonFlags, cfg, logger)
	if err != nil {
		return err
	}
	for _, err := range lowering.Errors {
		logger.Warnf("%v\n", err)
	}

	state := crd.NewAnalyzerState(lowering.Module, logger, cfg)
	state.Oracle = NewOracle(lowering, cfg, logger)
	result, err := crd.Analyze(state)
	if err != nil {
		return fmt.Errorf("crd analysis failed: %v", err)
	}
	for _, err := range result.Errors {
		logger.Errorf("%s\n", formatutil.Red(err))
	}

	if err := Report(os.Stdout, state, result); err != nil {
		return err
	}
	if cfg.ReportCrd {
		filename, err := WriteReport(cfg.ReportsDir, state, result)
		if err != nil {
			return err
		}
		logger.Infof("Report written to %s\n", filename)
	}
	if len(result.ControlRelated) == 0 {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Green("No control-related data found")) // safe %s
	} else {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Yellow(result.Summary())) // safe %s
	}
	return nil
}

// NewOracle returns the points-to oracle selected by the configuration. The ssa oracle needs a main package; without
// one the store oracle is used.
func NewOracle(l *golower.Lowering, cfg *config.Config, logger *config.LogGroup) crd.PointsToOracle {
	if cfg.Oracle == config.OracleSSA {
		if len(ssautil.MainPackages(l.Program.AllPackages())) > 0 {
			return pointsto.NewSSAOracle(l, logger)
		}
		logger.Warnf("No main package: using the %s oracle\n", config.OracleStore)
	}
	return pointsto.NewStoreOracle(cfg, logger)
}

// Report writes the control-related values, the memory objects and the summary of result to w.
func Report(w io.Writer, state *crd.AnalyzerState, result crd.AnalysisResult) error {
	fmt.Fprintln(w, formatutil.Bold("Control-related values:"))
	if err := crd.WriteControlRelated(w, state, crd.NewSourceCache()); err != nil {
		return fmt.Errorf("could not write control-related values: %w", err)
	}
	fmt.Fprintln(w, formatutil.Bold("Memory objects:"))
	if err := crd.WriteMemoryObjects(w, result.MemoryObjects); err != nil {
		return fmt.Errorf("could not write memory objects: %w", err)
	}
	fmt.Fprintln(w, result.Summary())
	return nil
}

// WriteReport writes the report of result to a new crd-*.out file of dir and returns its name.
func WriteReport(dir string, state *crd.AnalyzerState, result crd.AnalysisResult) (string, error) {
	name := strings.NewReplacer("/", "_", ".", "_").Replace(state.Module.Name)
	f, err := os.CreateTemp(dir, "crd-"+name+"-*.out")
	if err != nil {
		return "", fmt.Errorf("could not create report file: %w", err)
	}
	defer f.Close()
	if err := Report(f, state, result); err != nil {
		return "", err
	}
	return filepath.Clean(f.Name()), nil
}
