package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/log"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

const (
	visitedKeyPrefix = "visited:"   // Prefix for raw URL keys in DB
	visitedDBDir     = "visited_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements the VisitedStore interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	path     string       // Empty when running in memory
	keyCount atomic.Int64 // Cached key count for O(1) VisitedCount
}

// NewBadgerStore opens a fresh visited DB for one crawl run
// With an empty stateDir the DB lives in memory; otherwise any existing state for the domain is removed first, since crawls never resume
func NewBadgerStore(stateDir, siteDomain string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}
	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))

	var opts badger.Options
	if stateDir == "" {
		logger.Info("Initializing in-memory visited URL database")
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbDirName := utils.SanitizeFilename(siteDomain) + "_" + visitedDBDir
		store.path = filepath.Join(stateDir, dbDirName)

		if err := os.RemoveAll(store.path); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", store.path, err)
		}
		if err := os.MkdirAll(store.path, 0755); err != nil {
			return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, store.path, err)
		}
		logger.Infof("Initializing visited URL database at: %s", store.path)
		opts = badger.DefaultOptions(store.path)
	}
	opts = opts.
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database: %w", utils.ErrDatabase, err)
	}
	return store, nil
}

// Path returns the on-disk DB directory, or "" for an in-memory store
func (s *BadgerStore) Path() string { return s.path }

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Two transactions racing on the same key conflict at commit; the retry then sees the winner's write.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// TryMarkVisited implements the VisitedStore interface
func (s *BadgerStore) TryMarkVisited(rawURL string) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("%w: visited DB not initialized", utils.ErrDatabase)
	}
	key := []byte(visitedKeyPrefix + rawURL)

	var added bool
	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false // Reset on retry
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, []byte{})); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet // nil when the key already exists
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in TryMarkVisited: %v", err)
		if errors.Is(err, utils.ErrDatabase) {
			return false, err
		}
		return false, fmt.Errorf("%w: marking key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// VisitedCount implements the VisitedStore interface
func (s *BadgerStore) VisitedCount() int {
	return int(s.keyCount.Load())
}

// VisitedURLs implements the VisitedStore interface. Badger iterates keys in byte order.
func (s *BadgerStore) VisitedURLs() ([]string, error) {
	urls := make([]string, 0, s.keyCount.Load())
	prefix := []byte(visitedKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			urls = append(urls, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: iterating visited keys: %w", utils.ErrDatabase, err)
	}
	return urls, nil
}

// WriteVisitedLog implements the VisitedStore interface.
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	urls, err := s.VisitedURLs()
	if err != nil {
		return err
	}
	if err := writeLines(filePath, urls); err != nil {
		s.log.Errorf("Failed writing visited log '%s': %v", filePath, err)
		return err
	}
	s.log.Infof("Wrote %d URLs to visited log: %s", len(urls), filePath)
	return nil
}

// RunGC runs BadgerDB's value log garbage collection periodically until ctx is done
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() || s.path == "" {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements the VisitedStore interface
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing visited DB: %v", err)
		return fmt.Errorf("%w: closing visited DB: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Visited DB closed.")
	return nil
}
