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

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/awslabs/ar-go-crd/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	if configFile == "" {
		return NewDefault(), nil
	}
	return Load(configFile)
}

// Config contains the options of the control-related data analysis and the lists of functions and types that
// receive a special treatment. The lists in the file extend the built-in defaults; they never replace them.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// IgnoreFunctions lists callees through which taint never propagates, in addition to DefaultIgnoreFunctions
	IgnoreFunctions []string `yaml:"ignore-functions"`

	// DataMovementFunctions lists callees that copy memory from their second argument to their first, in addition to
	// DefaultDataMovementFunctions. A name also matches the intrinsic variants name.*
	DataMovementFunctions []string `yaml:"data-movement-functions"`

	// FunctionPointerTags lists the type tags that mark a memory access as a function pointer access, in addition to
	// DefaultFunctionPointerTags
	FunctionPointerTags []string `yaml:"function-pointer-tags"`

	// VaListTypes lists the structure names of variadic argument lists, in addition to DefaultVaListTypes
	VaListTypes []string `yaml:"va-list-types"`
}

type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets ReportCrd to true, then ReportsDir will be created
	// in the folder of the config file.
	ReportsDir string `yaml:"reports-dir"`

	// ReportCrd can be set to true, in which case the control-related values and memory objects are written to a
	// file named crd-*.out in the reports directory
	ReportCrd bool `yaml:"report-crd"`

	// PkgFilter restricts the Go functions whose body is lowered to the IR to the packages matching the filter.
	// The other functions are lowered as declarations.
	PkgFilter string `yaml:"pkg-filter"`

	// Oracle selects the points-to oracle used to map control-related loads to memory objects: "ssa" or "store"
	Oracle string `yaml:"oracle"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:            "",
		IgnoreFunctions:       nil,
		DataMovementFunctions: nil,
		FunctionPointerTags:   nil,
		VaListTypes:           nil,
		Options: Options{
			ReportsDir:  "",
			ReportCrd:   false,
			PkgFilter:   "",
			Oracle:      OracleSSA,
			LogLevel:    int(InfoLevel),
			SilenceWarn: false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	if cfg.ReportCrd {
		err = setReportsDir(cfg, filename)
		if err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	switch cfg.Oracle {
	case "":
		cfg.Oracle = OracleSSA
	case OracleSSA, OracleStore:
	default:
		return nil, fmt.Errorf("unknown oracle %q, expected %q or %q", cfg.Oracle, OracleSSA, OracleStore)
	}

	if cfg.PkgFilter != "" {
		r, err := regexp.Compile(cfg.PkgFilter)
		if err == nil {
			cfg.pkgFilterRegex = r
		}
	}

	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package name pkgname matches the package filter set in the config file. If no
// package filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the package filter string is a prefix of the pkgname
func (c Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	} else {
		return true
	}
}

// HasPkgFilter returns true if a package filter has been set
func (c Config) HasPkgFilter() bool {
	return c.PkgFilter != ""
}

// IsIgnoredFunction returns true if taint should not propagate through calls to the function named name
func (c Config) IsIgnoredFunction(name string) bool {
	return funcutil.Contains(DefaultIgnoreFunctions, name) || funcutil.Contains(c.IgnoreFunctions, name)
}

// IsDataMovementFunction returns true if the function named name copies memory between its first two arguments.
// An entry matches the name itself, and the names of its intrinsic variants (entry followed by a dot).
func (c Config) IsDataMovementFunction(name string) bool {
	match := func(entry string) bool {
		return name == entry || strings.HasPrefix(name, entry+".")
	}
	return funcutil.Exists(DefaultDataMovementFunctions, match) || funcutil.Exists(c.DataMovementFunctions, match)
}

// IsFunctionPointerTag returns true if the type tag marks function pointer accesses
func (c Config) IsFunctionPointerTag(tag string) bool {
	if tag == "" {
		return false
	}
	return funcutil.Contains(DefaultFunctionPointerTags, tag) || funcutil.Contains(c.FunctionPointerTags, tag)
}

// IsVaListType returns true if the structure named name is a variadic argument list
func (c Config) IsVaListType(name string) bool {
	return funcutil.Contains(DefaultVaListTypes, name) || funcutil.Contains(c.VaListTypes, name)
}
