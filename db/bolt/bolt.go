package bolt

import (
	"context"
	"fmt"

	"github.com/mhbvr/shutter"
	bolt "go.etcd.io/bbolt"
)

const (
	metaBucket  = "meta"
	photoBucket = "photos"
)

var _ shutter.Store = (*BoltDB)(nil)

// BoltDB implements shutter.Store using single bbolt file for everything.
// The index lives in the meta bucket, photo bytes in the photos bucket.
type BoltDB struct {
	db *bolt.DB
}

// New opens (or creates) a BoltDB at dbPath
func New(dbPath string) (*BoltDB, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(photoBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltDB{
		db: db,
	}, nil
}

func (w *BoltDB) Close() error {
	return w.db.Close()
}

func (w *BoltDB) WriteBlob(_ context.Context, name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("blob name cannot be empty")
	}

	err := w.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(photoBucket)).Put([]byte(name), data); err != nil {
			return fmt.Errorf("failed to update photo bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func (w *BoltDB) ReadBlob(_ context.Context, path string) ([]byte, error) {
	var data []byte
	err := w.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(photoBucket)).Get([]byte(path))
		if value == nil {
			return fmt.Errorf("photo %s: %w", path, shutter.ErrNotFound)
		}
		// value is only valid for the life of the transaction
		data = make([]byte, len(value))
		copy(data, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *BoltDB) DeleteBlob(_ context.Context, path string) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(photoBucket))
		if bucket.Get([]byte(path)) == nil {
			return fmt.Errorf("photo %s: %w", path, shutter.ErrNotFound)
		}
		if err := bucket.Delete([]byte(path)); err != nil {
			return fmt.Errorf("failed to delete photo %s: %w", path, err)
		}
		return nil
	})
}

func (w *BoltDB) ListBlobs(_ context.Context) ([]string, error) {
	var names []string
	err := w.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(photoBucket)).Cursor()
		for key, _ := cursor.First(); key != nil; key, _ = cursor.Next() {
			names = append(names, string(key))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (w *BoltDB) Get(_ context.Context, key string) (string, error) {
	var value string
	err := w.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(metaBucket)).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("key %s: %w", key, shutter.ErrNotFound)
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (w *BoltDB) Set(_ context.Context, key, value string) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(metaBucket)).Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("failed to update meta bucket: %w", err)
		}
		return nil
	})
}
