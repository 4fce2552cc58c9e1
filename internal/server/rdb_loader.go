package server

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"redisd/internal/rdbload"
	"redisd/internal/store"
)

// loadSnapshot restores the keyspace from the configured snapshot file
// at startup. A missing file is not an error: it simply means this is
// the instance's first run. Per-record past-expiry entries are already
// dropped by rdbload.Load; only future expiries need carrying over.
func loadSnapshot(st *store.Store, cfg *Config) error {
	path := filepath.Join(cfg.Dir, cfg.DBFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[RDB] no snapshot found at %s", path)
			return nil
		}
		return err
	}

	start := time.Now()
	records, err := rdbload.Load(data)
	if err != nil {
		return err
	}
	loader := &snapshotLoader{store: st}
	if err := loader.applyRecords(records); err != nil {
		return err
	}
	log.Printf("[RDB] loaded %d keys from %s in %v", len(records), path, time.Since(start))
	return nil
}
