// Package config holds the settings shared by the shutter binaries. Values
// come from defaults, then an optional YAML file, then flags set on the
// command line.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/mhbvr/shutter/db"
	"github.com/mhbvr/shutter/library"
	"gopkg.in/yaml.v3"
)

const (
	CameraSpool    = "spool"
	CameraSnapshot = "snapshot"
)

type Config struct {
	DB     DBConfig     `yaml:"db"`
	Host   HostConfig   `yaml:"host"`
	Camera CameraConfig `yaml:"camera"`

	IndexKey           string `yaml:"index_key"`
	ProvisionalEntries bool   `yaml:"provisional_entries"`
}

type DBConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// HostConfig describes what the process hosting the library can do.
type HostConfig struct {
	// Native hosts read camera files directly and serve stored photos
	// under PhotoPrefix. Others inline photos as data URIs.
	Native      bool   `yaml:"native"`
	PhotoPrefix string `yaml:"photo_prefix"`
}

type CameraConfig struct {
	Type string `yaml:"type"`

	// spool
	Inbox  string        `yaml:"inbox"`
	Settle time.Duration `yaml:"settle"`

	// snapshot
	URL      string        `yaml:"url"`
	SpoolDir string        `yaml:"spool_dir"`
	MaxWidth int           `yaml:"max_width"`
	Timeout  time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		DB: DBConfig{
			Type: "filetree",
		},
		Host: HostConfig{
			Native:      true,
			PhotoPrefix: library.DefaultPhotoPrefix,
		},
		Camera: CameraConfig{
			Type:    CameraSpool,
			Inbox:   "inbox",
			Timeout: 10 * time.Second,
		},
		IndexKey: library.DefaultIndexKey,
	}
}

// Parse decodes YAML over the defaults. Unknown keys are an error.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !slices.Contains(db.Types, c.DB.Type) {
		return fmt.Errorf("unknown database type: %s (must be one of %s)", c.DB.Type, strings.Join(db.Types, ", "))
	}
	if c.DB.Path == "" {
		return fmt.Errorf("database path must be set")
	}
	if c.IndexKey == "" {
		return fmt.Errorf("index key must not be empty")
	}
	switch c.Camera.Type {
	case CameraSpool:
		if c.Camera.Inbox == "" {
			return fmt.Errorf("spool camera needs an inbox directory")
		}
	case CameraSnapshot:
		if c.Camera.URL == "" {
			return fmt.Errorf("snapshot camera needs a URL")
		}
		if c.Camera.SpoolDir == "" {
			return fmt.Errorf("snapshot camera needs a spool directory")
		}
	default:
		return fmt.Errorf("unknown camera type: %s (must be %s or %s)", c.Camera.Type, CameraSpool, CameraSnapshot)
	}
	return nil
}

// Flags binds command line flags to a Config.
type Flags struct {
	path string
	cfg  Config
}

var overrides = map[string]func(dst *Config, src Config){
	"db":           func(d *Config, s Config) { d.DB.Path = s.DB.Path },
	"db-type":      func(d *Config, s Config) { d.DB.Type = s.DB.Type },
	"native":       func(d *Config, s Config) { d.Host.Native = s.Host.Native },
	"index-key":    func(d *Config, s Config) { d.IndexKey = s.IndexKey },
	"provisional":  func(d *Config, s Config) { d.ProvisionalEntries = s.ProvisionalEntries },
	"camera":       func(d *Config, s Config) { d.Camera.Type = s.Camera.Type },
	"inbox":        func(d *Config, s Config) { d.Camera.Inbox = s.Camera.Inbox },
	"snapshot-url": func(d *Config, s Config) { d.Camera.URL = s.Camera.URL },
	"spool-dir":    func(d *Config, s Config) { d.Camera.SpoolDir = s.Camera.SpoolDir },
	"max-width":    func(d *Config, s Config) { d.Camera.MaxWidth = s.Camera.MaxWidth },
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{cfg: Default()}
	c := &f.cfg

	fs.StringVar(&f.path, "config", "", "YAML config file")
	fs.StringVar(&c.DB.Path, "db", c.DB.Path, "Database path (directory for filetree/pebble, file for bolt/sqlite)")
	fs.StringVar(&c.DB.Type, "db-type", c.DB.Type, "Database type: "+strings.Join(db.Types, ", "))
	fs.BoolVar(&c.Host.Native, "native", c.Host.Native, "Read camera files directly and serve photos by URL instead of inlining them")
	fs.StringVar(&c.IndexKey, "index-key", c.IndexKey, "Key the photo index is stored under")
	fs.BoolVar(&c.ProvisionalEntries, "provisional", c.ProvisionalEntries, "Keep the provisional entry of every capture in the gallery")
	fs.StringVar(&c.Camera.Type, "camera", c.Camera.Type, "Camera type: spool or snapshot")
	fs.StringVar(&c.Camera.Inbox, "inbox", c.Camera.Inbox, "Directory the spool camera watches for new frames")
	fs.StringVar(&c.Camera.URL, "snapshot-url", c.Camera.URL, "Snapshot endpoint of the snapshot camera")
	fs.StringVar(&c.Camera.SpoolDir, "spool-dir", c.Camera.SpoolDir, "Directory the snapshot camera writes frames to")
	fs.IntVar(&c.Camera.MaxWidth, "max-width", c.Camera.MaxWidth, "Downscale snapshot frames wider than this (0 = keep)")
	return f
}

// Resolve loads the config file, if one was given, and applies every flag
// that was set explicitly on top of it. fs must have been parsed.
func (f *Flags) Resolve(fs *flag.FlagSet) (Config, error) {
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f.ResolveChanged(func(name string) bool { return set[name] })
}

// ResolveChanged is Resolve for flag sets that track explicit flags
// themselves, such as a cobra command whose flags wrap fs.
func (f *Flags) ResolveChanged(changed func(name string) bool) (Config, error) {
	cfg := Default()
	if f.path != "" {
		var err error
		if cfg, err = Load(f.path); err != nil {
			return Config{}, err
		}
	}

	for name, apply := range overrides {
		if changed(name) {
			apply(&cfg, f.cfg)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
