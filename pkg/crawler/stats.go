package crawler

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Stats are the final counters of one crawl
type Stats struct {
	Spawned           int64            // Every spawn attempt, including the seed
	Fetched           int64            // Extractor calls
	Completed         int64            // Tasks that reached Completed
	DroppedDepth      int64            // Spawns beyond MaxDepth
	DroppedDuplicate  int64            // Tasks whose URL was already visited
	DroppedStoreError int64            // Tasks dropped because the visited store failed
	Rejected          int64            // Spawns refused at the pending limit
	Panics            int64            // Tasks that panicked
	EdgesAdded        int64            // Edges newly added to the graph
	EventsDropped     int64            // Edge events the renderer never saw
	FetchErrors       map[string]int64 // Fetch failures keyed by utils.CategorizeError category
}

// TotalFetchErrors sums FetchErrors
func (s Stats) TotalFetchErrors() int64 {
	var total int64
	for _, n := range s.FetchErrors {
		total += n
	}
	return total
}

// AsMap flattens the scalar counters for metadata export
func (s Stats) AsMap() map[string]int64 {
	return map[string]int64{
		"spawned":             s.Spawned,
		"fetched":             s.Fetched,
		"completed":           s.Completed,
		"dropped_depth":       s.DroppedDepth,
		"dropped_duplicate":   s.DroppedDuplicate,
		"dropped_store_error": s.DroppedStoreError,
		"rejected":            s.Rejected,
		"panics":              s.Panics,
		"edges_added":         s.EdgesAdded,
		"events_dropped":      s.EventsDropped,
		"fetch_errors":        s.TotalFetchErrors(),
	}
}

// FetchErrorCategories returns the recorded categories in lexical order
func (s Stats) FetchErrorCategories() []string {
	out := make([]string, 0, len(s.FetchErrors))
	for k := range s.FetchErrors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// counters is the live, concurrently updated form of Stats
type counters struct {
	spawned           atomic.Int64
	fetched           atomic.Int64
	completed         atomic.Int64
	droppedDepth      atomic.Int64
	droppedDuplicate  atomic.Int64
	droppedStoreError atomic.Int64
	rejected          atomic.Int64
	panics            atomic.Int64
	edgesAdded        atomic.Int64

	fetchErrMu  sync.Mutex
	fetchErrors map[string]int64
}

func (c *counters) recordFetchError(category string) {
	c.fetchErrMu.Lock()
	if c.fetchErrors == nil {
		c.fetchErrors = make(map[string]int64)
	}
	c.fetchErrors[category]++
	c.fetchErrMu.Unlock()
}

func (c *counters) fetchErrorTotal() int64 {
	c.fetchErrMu.Lock()
	defer c.fetchErrMu.Unlock()
	var total int64
	for _, n := range c.fetchErrors {
		total += n
	}
	return total
}

func (c *counters) snapshot(eventsDropped int64) Stats {
	c.fetchErrMu.Lock()
	byCategory := make(map[string]int64, len(c.fetchErrors))
	for k, v := range c.fetchErrors {
		byCategory[k] = v
	}
	c.fetchErrMu.Unlock()

	return Stats{
		Spawned:           c.spawned.Load(),
		Fetched:           c.fetched.Load(),
		Completed:         c.completed.Load(),
		DroppedDepth:      c.droppedDepth.Load(),
		DroppedDuplicate:  c.droppedDuplicate.Load(),
		DroppedStoreError: c.droppedStoreError.Load(),
		Rejected:          c.rejected.Load(),
		Panics:            c.panics.Load(),
		EdgesAdded:        c.edgesAdded.Load(),
		EventsDropped:     eventsDropped,
		FetchErrors:       byCategory,
	}
}
