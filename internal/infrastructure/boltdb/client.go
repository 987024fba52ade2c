package boltdb

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Open creates the parent directory and opens the Bolt file shared by the local
// record tier and the write buffer.
func Open(path string, logger *zap.Logger) (*bolt.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	logger.Info("opened bolt database", zap.String("path", path))
	return db, nil
}

// Close closes db and logs the result.
func Close(db *bolt.DB, logger *zap.Logger) error {
	if db == nil {
		return nil
	}
	err := db.Close()
	if logger != nil && err == nil {
		logger.Info("bolt database closed")
	}
	return err
}
