package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Compress describes the optional downscaled JPEG derivative for a platform.
type Compress struct {
	TargetDir string `json:"target_dir"`
	Filename  string `json:"filename"`
	Size      [2]int `json:"size"`
}

// PlatformConfig is the fully-defaulted, per-site configuration a pipeline
// runs against.
type PlatformConfig struct {
	Name string `json:"-"`

	ToCloud       bool      `json:"to_cloud"`
	Delete        bool      `json:"delete"`
	Cloud         string    `json:"cloud"`
	TargetDir     string    `json:"target_dir"`
	Filename      string    `json:"filename"`
	Compress      *Compress `json:"compress"`
	Skip          bool      `json:"skip"`
	SleepSec      float64   `json:"sleep"`
	Retries       int       `json:"retries"`
	RetrySleepSec float64   `json:"retry_sleep"`
	TimeoutSec    float64   `json:"timeout"`

	FilenameRepl []string `json:"filename_repl"`
	DirnameRepl  []string `json:"dirname_repl"`

	Tags      []string `json:"tags"`
	Blacklist []string `json:"blacklist"`

	APIKey string `json:"api_key"`
	UserID string `json:"user_id"`
}

// rawPlatform mirrors PlatformConfig but with every field optional, so a
// platform section in the config file only needs to specify overrides.
type rawPlatform struct {
	ToCloud       *bool     `json:"to_cloud"`
	Delete        *bool     `json:"delete"`
	Cloud         *string   `json:"cloud"`
	TargetDir     *string   `json:"target_dir"`
	Filename      *string   `json:"filename"`
	Compress      *Compress `json:"compress"`
	Skip          *bool     `json:"skip"`
	SleepSec      *float64  `json:"sleep"`
	Retries       *int      `json:"retries"`
	RetrySleepSec *float64  `json:"retry_sleep"`
	TimeoutSec    *float64  `json:"timeout"`
	FilenameRepl  []string  `json:"filename_repl"`
	DirnameRepl   []string  `json:"dirname_repl"`
	Tags          []string  `json:"tags"`
	Blacklist     []string  `json:"blacklist"`
	APIKey        string    `json:"api_key"`
	UserID        string    `json:"user_id"`
}

// rawConfig is the literal shape of the JSON config file: global override
// keys plus one optional section per known platform. A fixed struct (rather
// than a generic map) makes unknown top-level keys fail deserialization.
type rawConfig struct {
	rawPlatform
	Database    *string     `json:"database"`
	Yandere     rawPlatform `json:"yandere"`
	Konachan    rawPlatform `json:"konachan"`
	Sakugabooru rawPlatform `json:"sakugabooru"`
}

// Config is the fully-resolved, ready-to-run configuration: one
// PlatformConfig per known Moebooru-family site.
type Config struct {
	Database  string
	Platforms map[string]*PlatformConfig
}

// siteRoots are the known platform identifiers and their listing endpoints.
var siteRoots = map[string]string{
	"yandere":     "https://yande.re/post.json",
	"konachan":    "https://konachan.com/post.json",
	"sakugabooru": "https://sakugabooru.com/post.json",
}

// SiteRoot returns the list endpoint for a known platform name.
func SiteRoot(platform string) (string, bool) {
	root, ok := siteRoots[platform]
	return root, ok
}

func defaultPlatform(home, name string) *PlatformConfig {
	return &PlatformConfig{
		Name:          name,
		TargetDir:     filepath.Join(home, "booruchan", name),
		Filename:      "{id}.{file_ext}",
		Skip:          true,
		SleepSec:      1.5,
		Retries:       5,
		RetrySleepSec: 1.0,
		TimeoutSec:    30.0,
		FilenameRepl:  []string{":", "!", "?", "*", "\"", "'", "/"},
		DirnameRepl:   []string{":", "!", "?", "*", "\"", "'"},
	}
}

// applyOverride merges the non-nil fields of a rawPlatform (either the
// global section or a platform's own section) onto a PlatformConfig.
func applyOverride(p *PlatformConfig, r rawPlatform) {
	if r.ToCloud != nil {
		p.ToCloud = *r.ToCloud
	}
	if r.Delete != nil {
		p.Delete = *r.Delete
	}
	if r.Cloud != nil {
		p.Cloud = *r.Cloud
	}
	if r.TargetDir != nil {
		p.TargetDir = *r.TargetDir
	}
	if r.Filename != nil {
		p.Filename = *r.Filename
	}
	if r.Compress != nil {
		p.Compress = r.Compress
	}
	if r.Skip != nil {
		p.Skip = *r.Skip
	}
	if r.SleepSec != nil {
		p.SleepSec = *r.SleepSec
	}
	if r.Retries != nil {
		p.Retries = *r.Retries
	}
	if r.RetrySleepSec != nil {
		p.RetrySleepSec = *r.RetrySleepSec
	}
	if r.TimeoutSec != nil {
		p.TimeoutSec = *r.TimeoutSec
	}
	if r.FilenameRepl != nil {
		p.FilenameRepl = r.FilenameRepl
	}
	if r.DirnameRepl != nil {
		p.DirnameRepl = r.DirnameRepl
	}
	if r.Tags != nil {
		p.Tags = r.Tags
	}
	if r.Blacklist != nil {
		p.Blacklist = r.Blacklist
	}
	if r.APIKey != "" {
		p.APIKey = r.APIKey
	}
	if r.UserID != "" {
		p.UserID = r.UserID
	}
}

// ExpandHome replaces a leading "~/" (or a bare "~") with the user's home
// directory.
func ExpandHome(home, path string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func expandPlatformHome(home string, p *PlatformConfig) {
	p.TargetDir = ExpandHome(home, p.TargetDir)
	if p.Compress != nil {
		p.Compress.TargetDir = ExpandHome(home, p.Compress.TargetDir)
	}
}

// Load reads and defaults the config file at path. A missing path is not an
// error: an all-default config is returned instead.
func Load(path, home string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(home), nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw rawConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg := defaultConfig(home)
	if raw.Database != nil {
		cfg.Database = ExpandHome(home, *raw.Database)
	}

	sections := map[string]rawPlatform{
		"yandere":     raw.Yandere,
		"konachan":    raw.Konachan,
		"sakugabooru": raw.Sakugabooru,
	}
	for name, platform := range cfg.Platforms {
		applyOverride(platform, raw.rawPlatform)
		applyOverride(platform, sections[name])
		expandPlatformHome(home, platform)
		if platform.ToCloud && platform.Cloud == "" {
			return nil, fmt.Errorf("platform %s: to_cloud is true but cloud is empty", name)
		}
	}

	return cfg, nil
}

func defaultConfig(home string) *Config {
	cfg := &Config{
		Database:  filepath.Join(home, ".archives", "booruchan.db"),
		Platforms: map[string]*PlatformConfig{},
	}
	for name := range siteRoots {
		cfg.Platforms[name] = defaultPlatform(home, name)
	}
	return cfg
}
