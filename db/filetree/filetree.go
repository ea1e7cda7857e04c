package filetree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mhbvr/shutter"
	"github.com/spf13/afero"
	bolt "go.etcd.io/bbolt"
)

const (
	metaBucket = "meta"
	metaFile   = "meta"
	dataDir    = "data"
)

var _ shutter.Store = (*FileTreeDB)(nil)

// FileTreeDB implements shutter.Store using bbolt for the index and a flat
// directory of files for photos
type FileTreeDB struct {
	metaPath string
	data     afero.Fs
	db       *bolt.DB
}

// New creates a FileTreeDB rooted at dbDir on the local filesystem
func New(dbDir string) (*FileTreeDB, error) {
	dataPath := filepath.Join(dbDir, dataDir)
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return NewWithFs(dbDir, afero.NewBasePathFs(afero.NewOsFs(), dataPath))
}

// NewWithFs keeps the index in dbDir and the photos in data
func NewWithFs(dbDir string, data afero.Fs) (*FileTreeDB, error) {
	metaPath := filepath.Join(dbDir, metaFile)

	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := bolt.Open(metaPath, 0644, &bolt.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &FileTreeDB{
		metaPath: metaPath,
		data:     data,
		db:       db,
	}, nil
}

func (w *FileTreeDB) Close() error {
	return w.db.Close()
}

// validName rejects anything that would escape the flat data directory
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}

func (w *FileTreeDB) WriteBlob(_ context.Context, name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if err := afero.WriteFile(w.data, name, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write photo file: %w", err)
	}
	return name, nil
}

func (w *FileTreeDB) ReadBlob(_ context.Context, path string) ([]byte, error) {
	if err := validName(path); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(w.data, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("photo %s: %w", path, shutter.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read photo file %s: %w", path, err)
	}
	return data, nil
}

func (w *FileTreeDB) DeleteBlob(_ context.Context, path string) error {
	if err := validName(path); err != nil {
		return err
	}
	if err := w.data.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("photo %s: %w", path, shutter.ErrNotFound)
		}
		return fmt.Errorf("failed to remove photo file %s: %w", path, err)
	}
	return nil
}

func (w *FileTreeDB) ListBlobs(_ context.Context) ([]string, error) {
	infos, err := afero.ReadDir(w.data, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var names []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (w *FileTreeDB) Get(_ context.Context, key string) (string, error) {
	var value string
	err := w.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(metaBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", metaBucket)
		}

		v := bucket.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("key %s: %w", key, shutter.ErrNotFound)
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (w *FileTreeDB) Set(_ context.Context, key, value string) error {
	err := w.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(metaBucket)).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to update meta database: %w", err)
	}
	return nil
}
