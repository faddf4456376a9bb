package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureParentDirCreates(t *testing.T) {
	base := t.TempDir()
	full, err := EnsureParentDir([]string{base, "sub", "dir", "file.jpg"}, "")
	if err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}
	want := filepath.Join(base, "sub", "dir", "file.jpg")
	if full != want {
		t.Errorf("full = %q, want %q", full, want)
	}
	if _, err := os.Stat(filepath.Join(base, "sub", "dir")); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"~", "/home/u"},
		{"~/a/b", "/home/u/a/b"},
		{"/abs", "/abs"},
	}
	for _, c := range cases {
		if got := ExpandHome("/home/u", c.path); got != c.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestMoveSameDevice(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dest := filepath.Join(base, "nested", "dest.txt")
	if err := Move(src, dest); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if Exists(src) {
		t.Error("source still exists after move")
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "hello" {
		t.Errorf("dest contents = %q, %v, want hello, nil", data, err)
	}
}

func TestSizeNonZero(t *testing.T) {
	base := t.TempDir()
	empty := filepath.Join(base, "empty.txt")
	full := filepath.Join(base, "full.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if SizeNonZero(empty) {
		t.Error("SizeNonZero(empty) = true, want false")
	}
	if !SizeNonZero(full) {
		t.Error("SizeNonZero(full) = false, want true")
	}
	if SizeNonZero(filepath.Join(base, "missing.txt")) {
		t.Error("SizeNonZero(missing) = true, want false")
	}
}
