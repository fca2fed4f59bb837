// -----------------------------------------------------------------------
// Crash reporting - writes a post-mortem file when the process dies on a
// panic, so unattended runs leave evidence behind
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// CrashLogDir is where crash reports are written. InstallCrashHandler can
// point it at the configured log directory.
var CrashLogDir = "./logs"

// InstallCrashHandler prepares the crash report directory. Call it early
// in main, paired with a deferred RecoverWithCrashFile.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: failed to create %s: %v\n", CrashLogDir, err)
	}
}

// WriteCrashFile writes a post-mortem report and returns its path. When
// the file cannot be written the report goes to stderr instead, so the
// panic is never silently lost.
func WriteCrashFile(panicVal any, stackTrace string) string {
	var report bytes.Buffer
	fmt.Fprintf(&report, "TenderWatch crash report\n")
	fmt.Fprintf(&report, "Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&report, "Version: %s\n", GetFullVersion())
	fmt.Fprintf(&report, "Goroutines: %d\n\n", runtime.NumGoroutine())
	fmt.Fprintf(&report, "Panic: %v\n\n%s\n", panicVal, stackTrace)
	fmt.Fprintf(&report, "--- all goroutines ---\n%s\n", allGoroutineStacks())

	filename := fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05"))
	path := filepath.Join(CrashLogDir, filename)
	if err := os.WriteFile(path, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: failed to write %s: %v\n%s", path, err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\nfatal panic: %v\nreport written to %s\n", panicVal, path)
	return path
}

// allGoroutineStacks dumps every goroutine into one fixed buffer. This
// process runs a handful of goroutines; 1MB covers them with room to spare.
func allGoroutineStacks() string {
	buf := make([]byte, 1<<20)
	return string(buf[:runtime.Stack(buf, true)])
}

// GetStackTrace returns the calling goroutine's stack.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	return string(buf[:runtime.Stack(buf, false)])
}

// RecoverWithCrashFile is the deferred half of the crash handler: it turns
// an escaping panic into a report file and a nonzero exit.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}
