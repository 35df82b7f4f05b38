// Package display provides human-readable names for machine codes.
//
// Category labels and record outcomes stay raw in deduped files, the
// catalog and JSON. Use these functions only for tables and logs.
package display

import "strings"

// --- Error categories ---

var categories = map[string]string{
	"panic_enums_load_double": "Runtime panic (enum load of double)",
	"panic":                   "Runtime panic",
	"compilation_error":       "Module failed to compile",
	"llvm_error":              "LLVM backend error",
	"file_not_found":          "Input file not found",
	"invalid":                 "Validation failure",
	"table_grow_error":        "Table grow failure",
	"out_of_bounds":           "Out-of-bounds access",
	"stack_overflow":          "Call stack exhausted",
	"unaligned_pointer":       "Unaligned pointer",
	"unreachable":             "Unreachable executed",
	"no_func":                 "Exported function not found",
	"invocation_error":        "Invocation failed",
	"[error] calling stack":   "Calling stack error",
	"integer_divide_by_zero":  "Integer divide by zero",
	"unsupported":             "Unsupported feature",
}

// Category returns the description of an error category label.
// Unknown labels are returned as-is.
func Category(label string) string {
	if name, ok := categories[label]; ok {
		return name
	}
	return label
}

// CategoryWithCode returns "Out-of-bounds access (out_of_bounds)" format.
func CategoryWithCode(label string) string {
	if name, ok := categories[label]; ok {
		return name + " (" + label + ")"
	}
	return label
}

// CategoryList joins the descriptions of labels with ", ".
// ["panic", "unreachable"] -> "Runtime panic, Unreachable executed"
func CategoryList(labels []string) string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = Category(l)
	}
	return strings.Join(names, ", ")
}

// --- Dedup outcomes ---

var outcomes = map[string]string{
	"scanned":    "Records scanned",
	"unique":     "Unique signatures",
	"duplicates": "Duplicates collapsed",
	"incomplete": "Incomplete (deleted)",
	"empty":      "Empty after filtering",
	"errors":     "Unreadable",
}

// Outcome returns the table label for a dedup outcome key.
func Outcome(key string) string {
	if name, ok := outcomes[key]; ok {
		return name
	}
	return key
}
