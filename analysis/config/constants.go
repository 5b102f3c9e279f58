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

const (
	// OracleSSA selects the points-to analysis of golang.org/x/tools/go/pointer on the SSA program the IR was
	// lowered from. It requires a main package.
	OracleSSA = "ssa"
	// OracleStore selects the allocation-site points-to analysis computed on the IR itself.
	OracleStore = "store"
)

// DefaultIgnoreFunctions are the callees through which taint never propagates: output, string and parsing routines
// of the C library, C++ runtime helpers and the Go runtime entry points with the same role.
var DefaultIgnoreFunctions = []string{
	"__cxa_atexit", "realloc", "free", "obstack_free", "printf", "sprintf", "vsprintf", "fprintf", "vfprintf",
	"read", "puts", "scanf", "fread", "fgets", "fputs", "fwrite", "sscanf", "memchr", "memcmp", "strlen", "strchr",
	"strtoul", "strcmp", "strncmp", "strcpy", "strncpy", "strrchr", "strcat", "strtol", "strpbrk", "strstr",
	"strcspn", "strspn", "strerror", "strtok", "strtod", "bsearch", "remove", "getenv", "_ZdlPv", "_ZdaPv",
	"__cxa_begin_catch", "_ZSt20__throw_length_errorPKc", "__cxa_free_exception", "_cxa_throw", "__dynamic_cast",
	"runtime.gopanic", "runtime.printstring", "builtin.print", "builtin.println", "builtin.len", "builtin.cap",
}

// DefaultDataMovementFunctions are the callees that copy memory between their first two arguments.
var DefaultDataMovementFunctions = []string{"memcpy", "llvm.memcpy", "memmove", "llvm.memmove", "runtime.memmove"}

const (
	// TagFunctionPointer is the type tag of function pointer accesses.
	TagFunctionPointer = "function pointer"
	// TagVtablePointer is the type tag of method table pointer accesses.
	TagVtablePointer = "vtable pointer"
)

// DefaultFunctionPointerTags are the type tags marking function pointer accesses.
var DefaultFunctionPointerTags = []string{TagFunctionPointer, TagVtablePointer}

// DefaultVaListTypes are the structure names of variadic argument lists.
var DefaultVaListTypes = []string{"struct.__va_list_tag"}
