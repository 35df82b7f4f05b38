// wasmtriage buckets WebAssembly runtime differential-fuzzing output and
// serves as the interestingness oracle during test-case reduction.
//
// Usage:
//
//	wasmtriage dedup <dir>
//	wasmtriage check [reducer-args...] <candidate.wasm>
//	wasmtriage normalize [record.txt]
//	wasmtriage stats sizes|categories <dir>
//	wasmtriage catalog runs|buckets
//	wasmtriage serve
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotInteresting) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
