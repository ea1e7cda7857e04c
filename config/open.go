package config

import (
	"fmt"

	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/camera/snapshot"
	"github.com/mhbvr/shutter/camera/spool"
	"github.com/mhbvr/shutter/db"
	"github.com/mhbvr/shutter/library"
)

// OpenCamera builds the configured camera.
func (c Config) OpenCamera() (shutter.Camera, error) {
	switch c.Camera.Type {
	case CameraSpool:
		return spool.New(c.Camera.Inbox, c.Camera.Settle)
	case CameraSnapshot:
		return snapshot.New(snapshot.Config{
			URL:      c.Camera.URL,
			SpoolDir: c.Camera.SpoolDir,
			MaxWidth: c.Camera.MaxWidth,
			Timeout:  c.Camera.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown camera type: %s", c.Camera.Type)
	}
}

// LibraryOptions translates the config into library options.
func (c Config) LibraryOptions() []library.Option {
	opts := []library.Option{
		library.WithNativeHost(c.Host.Native),
		library.WithIndexKey(c.IndexKey),
		library.WithProvisionalEntries(c.ProvisionalEntries),
	}
	if c.Host.Native {
		opts = append(opts, library.WithResolver(library.NativeResolver{Prefix: c.Host.PhotoPrefix}))
	}
	return opts
}

// OpenLibrary opens the store and camera and returns a library on top of
// them. Closing the returned store is up to the caller.
func (c Config) OpenLibrary() (*library.Library, shutter.Store, error) {
	store, err := db.Open(c.DB.Type, c.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", c.DB.Type, err)
	}

	cam, err := c.OpenCamera()
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to open camera: %w", err)
	}

	return library.New(store, cam, c.LibraryOptions()...), store, nil
}
