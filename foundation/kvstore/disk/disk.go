// Package disk implements the kvstore.Store interface by storing each key
// in its own file inside a folder.
package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ardanlabs/blockfeed/foundation/kvstore"
)

// Disk represents the serialization implementation for reading and storing
// values in their own separate files on disk. This implements the
// kvstore.Store interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use, creating the folder if needed.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each write and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Get reads the contents of the file for the specified key.
func (d *Disk) Get(key string) ([]byte, error) {
	if err := kvstore.ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.getPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}

	return data, nil
}

// Set writes the value to a temporary file and renames it into place so a
// reader never sees a partial write.
func (d *Disk) Set(key string, value []byte) error {
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}

	f, err := os.CreateTemp(d.dbPath, key+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, d.getPath(key))
}

// Delete removes the file for the key. Deleting a missing key is not an error.
func (d *Disk) Delete(key string) error {
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}

	if err := os.Remove(d.getPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// getPath forms the path to the specified key.
func (d *Disk) getPath(key string) string {
	return filepath.Join(d.dbPath, key+".json")
}
