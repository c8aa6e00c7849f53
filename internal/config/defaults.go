// Package config provides configuration handling for sdna.
package config

import "runtime"

// DefaultOutput is the DNA file written when no output is configured.
const DefaultOutput = "clang-rose.dna"

// CTypeMappings returns Go to C type name mappings, for DNA readers that
// match field types against C declarations.
func CTypeMappings() map[string]string {
	return map[string]string{
		"bool":       "bool",
		"int8":       "char",
		"uint8":      "uchar",
		"byte":       "uchar",
		"int16":      "short",
		"uint16":     "ushort",
		"int32":      "int",
		"rune":       "int",
		"uint32":     "uint",
		"int64":      "int64_t",
		"uint64":     "uint64_t",
		"int":        "intptr_t",
		"uint":       "uintptr_t",
		"uintptr":    "uintptr_t",
		"float32":    "float",
		"float64":    "double",
		"complex64":  "float _Complex",
		"complex128": "double _Complex",

		"unsafe.Pointer": "void *",
	}
}

// DefaultOptions returns default extraction options, targeting the host
// platform with the gc compiler.
func DefaultOptions() Options {
	return Options{
		Output:   DefaultOutput,
		Compiler: "gc",
		Arch:     runtime.GOARCH,
	}
}
