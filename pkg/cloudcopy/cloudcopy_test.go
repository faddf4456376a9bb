package cloudcopy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakeBinary writes a tiny shell script that fails failCount times (exit 1)
// before succeeding, recording each invocation's args to a log file.
func fakeBinary(t *testing.T, failCount int) (binPath, logPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes not supported on windows")
	}
	dir := t.TempDir()
	logPath = filepath.Join(dir, "calls.log")
	counterPath := filepath.Join(dir, "counter")
	binPath = filepath.Join(dir, "fakerclone.sh")

	script := fmt.Sprintf(`#!/bin/sh
echo "$@" >> %q
count=$(cat %q 2>/dev/null || echo 0)
count=$((count + 1))
echo "$count" > %q
if [ "$count" -le %d ]; then
  exit 1
fi
exit 0
`, logPath, counterPath, counterPath, failCount)

	if err := os.WriteFile(binPath, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return binPath, logPath
}

func TestCopyToRetriesThenSucceeds(t *testing.T) {
	bin, _ := fakeBinary(t, 2)
	orig := Binary
	Binary = bin
	RetrySleep = time.Millisecond
	defer func() { Binary = orig }()

	if err := CopyTo(context.Background(), "/src", "remote:/dest", false); err != nil {
		t.Fatalf("CopyTo() error = %v", err)
	}
}

func TestCopyToExhaustsRetries(t *testing.T) {
	bin, _ := fakeBinary(t, 100)
	orig := Binary
	Binary = bin
	RetrySleep = time.Millisecond
	defer func() { Binary = orig }()

	if err := CopyTo(context.Background(), "/src", "remote:/dest", false); err == nil {
		t.Fatal("CopyTo() error = nil, want error after exhausting retries")
	}
}

func TestCopyToMissingBinaryFails(t *testing.T) {
	orig := Binary
	Binary = filepath.Join(t.TempDir(), "does-not-exist")
	defer func() { Binary = orig }()

	err := CopyTo(context.Background(), "/src", "remote:/dest", false)
	if err == nil {
		t.Fatal("CopyTo() error = nil, want error for missing binary")
	}
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("CopyTo() error = %v, want errors.Is(err, ErrToolUnavailable)", err)
	}
}
