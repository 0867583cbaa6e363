package storage

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var ErrUnsupportedStore = errors.New("unsupported store backend")

// CheckKind accepts the backend names NewStore understands. An empty kind
// means DefaultStoreKind.
func CheckKind(kind string) error {
	switch kind {
	case "", KindMemory, KindSQLite:
		return nil
	}
	return fmt.Errorf("%w: %q (want %s)", ErrUnsupportedStore, kind, strings.Join([]string{KindMemory, KindSQLite}, "|"))
}

// NewStore builds the backend named by kind. path is only read by sqlite.
func NewStore(kind, path string) (Store, error) {
	if err := CheckKind(kind); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = DefaultStoreKind()
	}
	if kind == KindMemory {
		return NewMemoryStore(), nil
	}
	if path == "" {
		return nil, errors.New("sqlite store requires a database path")
	}
	return newSQLiteStore(path)
}

// CloseIfSupported releases backends that hold a connection. The memory
// store holds none.
func CloseIfSupported(store Store) error {
	if store == nil {
		return nil
	}
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
