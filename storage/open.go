package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Open returns the database for the named backend: "memory", "leveldb" or
// "bolt". Disk backends create the parent directory of path.
func Open(backend, path string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "memory":
		return NewMemDB(), nil
	case "leveldb":
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		return NewLevelDB(path)
	case "bolt":
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		return NewBoltDB(path, nil)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("storage: path required")
	}
	return os.MkdirAll(dir, 0o755)
}
