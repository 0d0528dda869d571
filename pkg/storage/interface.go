package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// VisitedStore is the crawl's dedup gate: the set of raw URLs already dispatched for fetch
type VisitedStore interface {
	// TryMarkVisited atomically inserts rawURL and reports whether it was absent
	// Exactly one concurrent caller gets true for a given URL
	TryMarkVisited(rawURL string) (bool, error)

	// VisitedCount returns the number of URLs marked so far
	VisitedCount() int

	// VisitedURLs returns every marked URL in lexical order
	VisitedURLs() ([]string, error)

	// WriteVisitedLog writes every marked URL, one per line, to filePath
	WriteVisitedLog(filePath string) error

	// Close releases the store's resources
	Close() error
}

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Open builds the VisitedStore for the named backend
// For BackendBadger an empty stateDir selects Badger's in-memory mode
func Open(backend, stateDir, siteDomain string, logger *logrus.Entry) (VisitedStore, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBadger:
		return NewBadgerStore(stateDir, siteDomain, logger)
	default:
		return nil, fmt.Errorf("%w: unknown visited store backend '%s'", utils.ErrConfigValidation, backend)
	}
}
