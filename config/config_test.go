package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mhbvr/shutter/camera/snapshot"
	"github.com/mhbvr/shutter/camera/spool"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
db:
  type: sqlite
  path: /var/lib/shutter/photos.db
host:
  native: false
camera:
  type: snapshot
  url: http://cam.local/snapshot.jpg
  spool_dir: /var/spool/shutter
  max_width: 1920
  timeout: 3s
provisional_entries: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, DBConfig{Type: "sqlite", Path: "/var/lib/shutter/photos.db"}, cfg.DB)
	assert.False(t, cfg.Host.Native)
	assert.Equal(t, "/photos", cfg.Host.PhotoPrefix)
	assert.Equal(t, CameraSnapshot, cfg.Camera.Type)
	assert.Equal(t, 1920, cfg.Camera.MaxWidth)
	assert.Equal(t, 3*time.Second, cfg.Camera.Timeout)
	assert.True(t, cfg.ProvisionalEntries)
	assert.Equal(t, "photos", cfg.IndexKey)
	assert.NoError(t, cfg.Validate())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("db:\n  kind: bolt\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.DB.Path = "/tmp/photos"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown db", mutate: func(c *Config) { c.DB.Type = "mysql" }, wantErr: "unknown database type"},
		{name: "no db path", mutate: func(c *Config) { c.DB.Path = "" }, wantErr: "database path"},
		{name: "no index key", mutate: func(c *Config) { c.IndexKey = "" }, wantErr: "index key"},
		{name: "no inbox", mutate: func(c *Config) { c.Camera.Inbox = "" }, wantErr: "inbox"},
		{name: "snapshot without url", mutate: func(c *Config) { c.Camera.Type = CameraSnapshot }, wantErr: "URL"},
		{name: "unknown camera", mutate: func(c *Config) { c.Camera.Type = "usb" }, wantErr: "unknown camera type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestFlags_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shutter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-db-type", "bolt", "-max-width", "640"}))

	cfg, err := flags.Resolve(fs)
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.DB.Type)
	assert.Equal(t, "/var/lib/shutter/photos.db", cfg.DB.Path)
	assert.Equal(t, 640, cfg.Camera.MaxWidth)
	assert.Equal(t, "http://cam.local/snapshot.jpg", cfg.Camera.URL)
	assert.False(t, cfg.Host.Native)
}

func TestFlags_NoFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-db", "/tmp/photos"}))

	cfg, err := flags.Resolve(fs)
	require.NoError(t, err)
	assert.Equal(t, "filetree", cfg.DB.Type)
	assert.Equal(t, "/tmp/photos", cfg.DB.Path)
	assert.True(t, cfg.Host.Native)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	flags = RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))
	_, err = flags.Resolve(fs)
	assert.Error(t, err)
}

func TestFlags_ResolveChanged(t *testing.T) {
	gfs := flag.NewFlagSet("library", flag.ContinueOnError)
	flags := RegisterFlags(gfs)

	pfs := pflag.NewFlagSet("ctl", pflag.ContinueOnError)
	pfs.AddGoFlagSet(gfs)
	require.NoError(t, pfs.Parse([]string{"--db", "/tmp/photos", "--native=false", "--db-type", "pebble"}))

	cfg, err := flags.ResolveChanged(pfs.Changed)
	require.NoError(t, err)
	assert.Equal(t, "pebble", cfg.DB.Type)
	assert.Equal(t, "/tmp/photos", cfg.DB.Path)
	assert.False(t, cfg.Host.Native)
	assert.Equal(t, "photos", cfg.IndexKey)
}

func TestOpenCamera(t *testing.T) {
	cfg := Default()
	cfg.Camera.Inbox = t.TempDir()
	cam, err := cfg.OpenCamera()
	require.NoError(t, err)
	assert.IsType(t, &spool.Camera{}, cam)

	cfg.Camera = CameraConfig{Type: CameraSnapshot, URL: "http://cam.local/snap", SpoolDir: t.TempDir()}
	cam, err = cfg.OpenCamera()
	require.NoError(t, err)
	assert.IsType(t, &snapshot.Camera{}, cam)
}

func TestOpenLibrary(t *testing.T) {
	cfg := Default()
	cfg.DB = DBConfig{Type: "bolt", Path: filepath.Join(t.TempDir(), "photos.db")}
	cfg.Camera.Inbox = t.TempDir()

	lib, store, err := cfg.OpenLibrary()
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, lib.Native())
	assert.Empty(t, lib.Snapshot())
}
