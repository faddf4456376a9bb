// Package cloudcopy wraps an external rclone-compatible binary used to
// copy and move files to and from cloud storage backends.
package cloudcopy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

// copyRetries caps the number of retries after a failed copy; MoveTo has no
// cap since duplicate reconciliation must not silently leave a post
// half-moved.
const copyRetries = 5

// Binary is the external tool invoked for every copy/move; overridable in
// tests.
var Binary = "rclone"

// RetrySleep is the pause between failed invocations.
var RetrySleep = 2 * time.Second

// ErrToolUnavailable wraps any failure to even invoke Binary: missing (from
// PATH or at the given path) or not executable. This is a required runtime dependency, not a
// transient per-post failure, so callers must treat it as fatal rather than
// skip the post and continue. errors.Is(err, ErrToolUnavailable) unwraps
// through CopyTo/MoveTo's own wrapping.
var ErrToolUnavailable = errors.New("cloudcopy: required tool unavailable")

// CopyTo copies src to dest and, on success, removes src iff deleteSource
// is set. It retries up to copyRetries times on non-zero exit.
func CopyTo(ctx context.Context, src, dest string, deleteSource bool) error {
	if err := run(ctx, copyRetries, "copyto", src, dest, "--no-traverse"); err != nil {
		return fmt.Errorf("cloudcopy: copyto %s -> %s: %w", src, dest, err)
	}
	if deleteSource {
		if err := run(ctx, copyRetries, "deletefile", src); err != nil {
			return fmt.Errorf("cloudcopy: deleting source %s after copy: %w", src, err)
		}
	}
	return nil
}

// MoveTo moves src to dest, retrying indefinitely (a move backs duplicate
// reconciliation; giving up would leave the catalog and the backend
// disagreeing about where the file lives).
func MoveTo(ctx context.Context, src, dest string) error {
	if err := run(ctx, -1, "moveto", src, dest, "--no-traverse"); err != nil {
		return fmt.Errorf("cloudcopy: moveto %s -> %s: %w", src, dest, err)
	}
	return nil
}

// run invokes Binary with args, retrying up to maxRetries times (negative
// means unbounded) on non-zero exit. A missing or non-executable binary is
// not retried: it is a fatal, required-runtime-dependency failure, reported
// as ErrToolUnavailable.
func run(ctx context.Context, maxRetries int, args ...string) error {
	attempt := 0
	for {
		cmd := exec.CommandContext(ctx, Binary, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err == nil {
			return nil
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %q: %w", ErrToolUnavailable, Binary, err)
		}

		attempt++
		if maxRetries >= 0 && attempt > maxRetries {
			return fmt.Errorf("attempt %d/%d failed: %w: %s", attempt, maxRetries+1, err, stderr.String())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetrySleep):
		}
	}
}
