package common

import (
	"os"
	"strings"
	"testing"
)

func TestWriteCrashFile_WritesReport(t *testing.T) {
	previous := CrashLogDir
	t.Cleanup(func() { CrashLogDir = previous })
	InstallCrashHandler(t.TempDir())

	path := WriteCrashFile("boom", GetStackTrace())
	if path == "" {
		t.Fatal("WriteCrashFile returned no path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read crash report: %v", err)
	}
	report := string(data)

	for _, want := range []string{"Panic: boom", "all goroutines", "Version:"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
	// The report must include the panicking goroutine's own stack.
	if !strings.Contains(report, "TestWriteCrashFile_WritesReport") {
		t.Error("report missing the originating stack trace")
	}
}
