// Package db opens one of the shutter.Store backends by name.
package db

import (
	"fmt"

	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/db/bolt"
	"github.com/mhbvr/shutter/db/filetree"
	"github.com/mhbvr/shutter/db/pebble"
	"github.com/mhbvr/shutter/db/sqlite"
)

// Types lists the accepted values for Open's dbType.
var Types = []string{"filetree", "bolt", "pebble", "sqlite"}

// Open opens the backend named by dbType. dbPath is a directory for
// filetree and pebble and a file for bolt and sqlite.
func Open(dbType, dbPath string) (shutter.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path must not be empty")
	}

	switch dbType {
	case "filetree":
		return filetree.New(dbPath)
	case "bolt":
		return bolt.New(dbPath)
	case "pebble":
		return pebble.New(dbPath)
	case "sqlite":
		return sqlite.New(dbPath)
	default:
		return nil, fmt.Errorf("unknown database type: %s (must be 'filetree', 'bolt', 'pebble' or 'sqlite')", dbType)
	}
}
