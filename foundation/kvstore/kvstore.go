// Package kvstore defines the key/value persistence used for durable client
// side caching. Implementations live in the memory, disk and sqlite packages.
package kvstore

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a key has never been written or was deleted.
var ErrNotFound = errors.New("key not found")

// Store represents the behavior required to persist opaque values by key.
// Writes are synchronous and last-writer-wins.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateKey checks the key is usable by every implementation, including
// the disk store which maps keys to file names.
func ValidateKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
