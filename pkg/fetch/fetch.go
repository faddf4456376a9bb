// Package fetch implements the resumable, range-aware file downloader used
// by each platform pipeline to pull a post's original file to disk.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/FalconSN/booruchan/pkg/pathutil"
)

// blockSize is the fixed streaming chunk size used while copying the
// response body onto disk.
const blockSize = 1 << 20 // 1 MiB

// Options configures one Download call.
type Options struct {
	// Parts form the destination path; joined with filepath.Join.
	Parts []string
	// Fallback is substituted for Parts[0] if the parent directory cannot
	// be created due to a permission error.
	Fallback string
	Timeout  time.Duration
	// Retries caps retry attempts; negative means unbounded.
	Retries    int
	RetrySleep time.Duration
	// Progress, if non-nil, registers a bar for this download.
	Progress *mpb.Progress
}

// Download streams url to the path built from opts.Parts, resuming a
// previous partial download via HTTP Range when the target already exists.
// It returns the final file path on success, or an error once the retry
// budget is exhausted.
func Download(ctx context.Context, client *http.Client, url string, opts Options) (string, error) {
	dest, err := pathutil.EnsureParentDir(opts.Parts, opts.Fallback)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	attempt := 0
	for {
		ok, err := attemptDownload(ctx, client, url, dest, opts)
		if ok {
			return dest, nil
		}
		attempt++
		if opts.Retries >= 0 && attempt > opts.Retries {
			return "", fmt.Errorf("fetch: max number of retries reached for %s: %w", url, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(opts.RetrySleep):
		}
	}
}

// attemptDownload runs one Range-aware download attempt. It returns
// (true, nil) on success, (false, err) on a retryable failure.
func attemptDownload(ctx context.Context, client *http.Client, url, dest string, opts Options) (bool, error) {
	var have int64
	if info, err := os.Stat(dest); err == nil {
		have = info.Size()
	}

	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	if have > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", have))
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if ok && total == have {
			return true, nil
		}
		return false, fmt.Errorf("range not satisfiable for %s", url)

	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		return streamToFile(resp, dest, have, opts)

	default:
		return false, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
}

func streamToFile(resp *http.Response, dest string, have int64, opts Options) (bool, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if have > 0 && resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		have = 0
	}

	f, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", dest, err)
	}
	defer f.Close()

	var bar *mpb.Bar
	var reader io.Reader = resp.Body
	if opts.Progress != nil && resp.ContentLength > 0 {
		bar = opts.Progress.New(resp.ContentLength,
			mpb.BarStyle(),
			mpb.PrependDecorators(decor.Name(dest)),
			mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f"), decor.Percentage()),
		)
		reader = bar.ProxyReader(resp.Body)
		defer reader.(io.ReadCloser).Close()
	}

	written, err := io.CopyBuffer(f, reader, make([]byte, blockSize))
	if err != nil {
		return false, fmt.Errorf("streaming body: %w", err)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return false, fmt.Errorf("short read: got %d bytes, want %d", written, resp.ContentLength)
	}
	return true, nil
}

// parseContentRangeTotal extracts K from a "bytes */K" Content-Range
// header value.
func parseContentRangeTotal(header string) (int64, bool) {
	idx := strings.LastIndexByte(header, '/')
	if idx < 0 {
		return 0, false
	}
	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}
