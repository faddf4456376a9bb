package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(filepath.Join(home, "nope.json"), home)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(cfg.Platforms) != 3 {
		t.Fatalf("len(Platforms) = %d, want 3", len(cfg.Platforms))
	}
	y := cfg.Platforms["yandere"]
	if y.Skip != true || y.Retries != 5 || y.Filename != "{id}.{file_ext}" {
		t.Fatalf("unexpected default platform config: %+v", y)
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "booruchan.json")
	body := `{
		"sleep": 0.5,
		"yandere": {
			"to_cloud": true,
			"cloud": "remote",
			"tags": ["tagA", "tagB"],
			"target_dir": "~/archive/yandere"
		}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path, home)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	y := cfg.Platforms["yandere"]
	if !y.ToCloud || y.Cloud != "remote" {
		t.Fatalf("platform override not applied: %+v", y)
	}
	if y.SleepSec != 0.5 {
		t.Fatalf("global override sleep = %v, want 0.5", y.SleepSec)
	}
	want := filepath.Join(home, "archive", "yandere")
	if y.TargetDir != want {
		t.Fatalf("TargetDir = %q, want %q", y.TargetDir, want)
	}

	k := cfg.Platforms["konachan"]
	if k.SleepSec != 0.5 {
		t.Fatalf("konachan should inherit global override, got %v", k.SleepSec)
	}
	if k.ToCloud {
		t.Fatalf("konachan should not inherit yandere's to_cloud")
	}
}

func TestLoadToCloudWithoutCloudFails(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "booruchan.json")
	body := `{"yandere": {"to_cloud": true}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path, home); err == nil {
		t.Fatal("Load() error = nil, want error for to_cloud without cloud")
	}
}

func TestLoadUnknownTopLevelKeyFails(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "booruchan.json")
	body := `{"bogus_key": true}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path, home); err == nil {
		t.Fatal("Load() error = nil, want error for unknown key")
	}
}

func TestExpandHome(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"~", "/home/u"},
		{"~/foo/bar", "/home/u/foo/bar"},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
	}
	for _, c := range cases {
		got := ExpandHome("/home/u", c.path)
		if got != c.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}
