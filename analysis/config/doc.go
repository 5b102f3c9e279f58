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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. For example, a valid config file is as follows:

	options:
	  log-level: 4
	  report-crd: true
	  reports-dir: crd-reports
	  pkg-filter: example.com/server
	  oracle: ssa

	ignore-functions:
	  - log.Printf
	data-movement-functions:
	  - my_memcpy
	function-pointer-tags:
	  - any pointer
	va-list-types:
	  - struct.va_list

The four lists extend the built-in defaults ([DefaultIgnoreFunctions], [DefaultDataMovementFunctions],
[DefaultFunctionPointerTags] and [DefaultVaListTypes]).
*/
package config
