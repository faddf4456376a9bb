package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDownloadFreshFile(t *testing.T) {
	body := []byte("the quick brown fox jumps over the lazy dog")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest, err := Download(context.Background(), srv.Client(), srv.URL, Options{
		Parts:      []string{dir, "out.bin"},
		Timeout:    time.Second,
		Retries:    2,
		RetrySleep: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("contents = %q, want %q", got, body)
	}
}

func TestDownloadResumesWithRange(t *testing.T) {
	body := []byte("0123456789ABCDEFGHIJ")
	haveLen := 10

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			t.Fatalf("expected Range header on resume request")
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", haveLen, len(body)-1, len(body)))
		w.Header().Set("Content-Length", fmt.Sprint(len(body)-haveLen))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[haveLen:])
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dest, body[:haveLen], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Download(context.Background(), srv.Client(), srv.URL, Options{
		Parts:      []string{dir, "out.bin"},
		Timeout:    time.Second,
		Retries:    2,
		RetrySleep: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("contents = %q, want %q", data, body)
	}
}

func TestDownload416AlreadyComplete(t *testing.T) {
	body := []byte("already have all of this")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(body)))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Download(context.Background(), srv.Client(), srv.URL, Options{
		Parts:      []string{dir, "out.bin"},
		Timeout:    time.Second,
		Retries:    1,
		RetrySleep: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("file was modified, contents = %q, want untouched %q", data, body)
	}
}

func TestDownloadUnboundedRetriesEventuallySucceed(t *testing.T) {
	body := []byte("eventually this succeeds")
	failuresLeft := 3

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failuresLeft > 0 {
			failuresLeft--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	got, err := Download(context.Background(), srv.Client(), srv.URL, Options{
		Parts:      []string{dir, "out.bin"},
		Timeout:    time.Second,
		Retries:    -1,
		RetrySleep: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("contents = %q, want %q", data, body)
	}
}
