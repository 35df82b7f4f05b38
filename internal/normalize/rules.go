package normalize

import "strings"

// Category is the canonical label a diagnostic payload collapses to.
type Category string

const (
	PanicLoadDouble     Category = "panic_enums_load_double"
	Panic               Category = "panic"
	CompilationError    Category = "compilation_error"
	LLVMError           Category = "llvm_error"
	FileNotFound        Category = "file_not_found"
	Invalid             Category = "invalid"
	TableGrowError      Category = "table_grow_error"
	OutOfBounds         Category = "out_of_bounds"
	StackOverflow       Category = "stack_overflow"
	UnalignedPointer    Category = "unaligned_pointer"
	Unreachable         Category = "unreachable"
	NoFunc              Category = "no_func"
	InvocationError     Category = "invocation_error"
	CallingStack        Category = "[error] calling stack"
	IntegerDivideByZero Category = "integer_divide_by_zero"
	Unsupported         Category = "unsupported"
)

// Rule maps a payload to a Category when Match reports true.
type Rule struct {
	Name     string
	Category Category

	// Any holds substrings of which at least one must occur.
	Any []string

	// All holds substrings that must all occur in addition to Any.
	All []string
}

// Match reports whether the rule fires for output.
func (r Rule) Match(output string) bool {
	for _, s := range r.All {
		if !strings.Contains(output, s) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return true
	}
	for _, s := range r.Any {
		if strings.Contains(output, s) {
			return true
		}
	}
	return false
}

// rules is evaluated top to bottom; the first match wins. Order is
// observable in every deduped corpus, so reordering changes bucket
// membership.
var rules = []Rule{
	{Name: "panic-load-double", Category: PanicLoadDouble, All: []string{"panic", "enums.rs", "load double"}},
	{Name: "panic", Category: Panic, Any: []string{"panic"}},
	{Name: "compile", Category: CompilationError, Any: []string{"Unable to compile"}},
	{Name: "llvm", Category: LLVMError, Any: []string{"LLVM ERROR"}},
	{Name: "no-such-file", Category: FileNotFound, Any: []string{"No such file"}},
	{Name: "invalid", Category: Invalid, Any: []string{"validation failed", "Invalid", "does not support"}},
	{Name: "table-grow", Category: TableGrowError, Any: []string{"table grow"}},
	{Name: "undefined-element", Category: OutOfBounds, Any: []string{"undefined_element"}},
	{Name: "stack-exhausted", Category: StackOverflow, Any: []string{"call stack exhausted", "calling stack exhausted"}},
	{Name: "unaligned", Category: UnalignedPointer, Any: []string{"Pointer not aligned"}},
	{Name: "unreachable", Category: Unreachable, Any: []string{"unreachable"}},
	{Name: "no-func", Category: NoFunc, Any: []string{"no func export", "lookup function", "export a function", "wasm function not found"}},
	{Name: "out-of-bounds", Category: OutOfBounds, Any: []string{"out of bounds"}},
	{Name: "invoke", Category: InvocationError, Any: []string{"failed to invoke"}},
	{Name: "calling-stack", Category: CallingStack, Any: []string{"[error] calling stack"}},
	{Name: "div-zero", Category: IntegerDivideByZero, Any: []string{"integer divide by zero"}},
	// Shadowed by "invalid" above. Kept so the table still records that
	// some runtimes report unsupported features with this phrase.
	// TODO: split "does not support" out of "invalid" once the existing
	// deduped corpora have been re-bucketed and compared.
	{Name: "unsupported", Category: Unsupported, Any: []string{"does not support"}},
}

// Rules returns a copy of the ordered classification table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

var categories = func() map[Category]bool {
	m := make(map[Category]bool, len(rules))
	for _, r := range rules {
		m[r.Category] = true
	}
	return m
}()

// IsCategory reports whether s is one of the canonical labels.
func IsCategory(s string) bool {
	return categories[Category(s)]
}

// Classify returns the category of the first rule that matches output.
func Classify(output string) (Category, bool) {
	if IsCategory(output) {
		return Category(output), true
	}
	for _, r := range rules {
		if r.Match(output) {
			return r.Category, true
		}
	}
	return "", false
}

// Shadowed returns the names of rules that can never fire because every
// payload they accept is claimed by an earlier rule. A rule is considered
// shadowed when each of its Any markers is an Any marker of an earlier rule
// with no All constraint.
func Shadowed() []string {
	var out []string
	for i, r := range rules {
		if len(r.All) > 0 || len(r.Any) == 0 {
			continue
		}
		covered := true
		for _, marker := range r.Any {
			if !claimedBefore(i, marker) {
				covered = false
				break
			}
		}
		if covered {
			out = append(out, r.Name)
		}
	}
	return out
}

func claimedBefore(idx int, marker string) bool {
	for _, prev := range rules[:idx] {
		if len(prev.All) > 0 {
			continue
		}
		for _, s := range prev.Any {
			if strings.Contains(marker, s) {
				return true
			}
		}
	}
	return false
}
