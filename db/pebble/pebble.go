package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/mhbvr/shutter"
)

const (
	metaPrefix  = "meta:"
	photoPrefix = "photo:"
)

var _ shutter.Store = (*PebbleDB)(nil)

// PebbleDB implements shutter.Store using Pebble key-value storage
type PebbleDB struct {
	db *pebble.DB
}

// New opens (or creates) a PebbleDB in the dbPath directory
func New(dbPath string) (*PebbleDB, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}

	return &PebbleDB{
		db: db,
	}, nil
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

func (p *PebbleDB) metaKey(key string) []byte {
	return []byte(metaPrefix + key)
}

func (p *PebbleDB) photoKey(name string) []byte {
	return []byte(photoPrefix + name)
}

// get copies the value since it's only valid until closer.Close()
func (p *PebbleDB) get(key []byte) ([]byte, error) {
	data, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", key, shutter.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer closer.Close()

	value := make([]byte, len(data))
	copy(value, data)
	return value, nil
}

func (p *PebbleDB) WriteBlob(_ context.Context, name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("blob name cannot be empty")
	}
	if err := p.db.Set(p.photoKey(name), data, pebble.Sync); err != nil {
		return "", fmt.Errorf("failed to set photo data: %w", err)
	}
	return name, nil
}

func (p *PebbleDB) ReadBlob(_ context.Context, path string) ([]byte, error) {
	return p.get(p.photoKey(path))
}

func (p *PebbleDB) DeleteBlob(_ context.Context, path string) error {
	key := p.photoKey(path)
	if _, err := p.get(key); err != nil {
		return err
	}
	if err := p.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete photo %s: %w", path, err)
	}
	return nil
}

func (p *PebbleDB) Get(_ context.Context, key string) (string, error) {
	value, err := p.get(p.metaKey(key))
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (p *PebbleDB) Set(_ context.Context, key, value string) error {
	if err := p.db.Set(p.metaKey(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}

func (p *PebbleDB) ListBlobs(_ context.Context) ([]string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(photoPrefix),
		UpperBound: []byte(photoPrefix + "\xff"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[len(photoPrefix):]))
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}

	return names, nil
}
