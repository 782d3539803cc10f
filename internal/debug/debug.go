// Package debug provides env-gated diagnostic output.
//
// Everything here writes to stderr. The merge-driver path must keep stdout
// clean for merged file content, so no helper in this package may ever
// write to stdout.
package debug

import (
	"fmt"
	"os"
	"sync"
)

var (
	mu          sync.Mutex
	enabled     = os.Getenv("LOOM_DEBUG") != ""
	verboseMode = false
	quietMode   = false
)

// Enabled reports whether debug output is active (LOOM_DEBUG or --verbose).
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	mu.Lock()
	defer mu.Unlock()
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress warnings)
func SetQuiet(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return quietMode
}

// Logf writes debug output to stderr when enabled.
func Logf(format string, args ...any) {
	if Enabled() {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Warnf writes a warning to stderr unless quiet mode is enabled.
// Warnings are for recoverable oddities (path conflicts, stale anchors);
// they never change control flow.
func Warnf(format string, args ...any) {
	if !IsQuiet() {
		fmt.Fprintf(os.Stderr, "Warning: "+format, args...)
	}
}
