// Package storage provides the key-value persistence used by the local
// project store and the theme layer.
package storage

import (
	"errors"
)

// KV is a string key-value store. A missing key is reported through ok,
// not as an error.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// ErrInvalidKey is returned for empty keys and keys that cannot name a file.
var ErrInvalidKey = errors.New("invalid storage key")
