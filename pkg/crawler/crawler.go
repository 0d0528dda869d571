// FILE: pkg/crawler/crawler.go
package crawler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/site-mapper/pkg/config"
	"github.com/Sriram-PR/site-mapper/pkg/fetch"
	"github.com/Sriram-PR/site-mapper/pkg/graph"
	"github.com/Sriram-PR/site-mapper/pkg/models"
	"github.com/Sriram-PR/site-mapper/pkg/parse"
	"github.com/Sriram-PR/site-mapper/pkg/queue"
	"github.com/Sriram-PR/site-mapper/pkg/render"
	"github.com/Sriram-PR/site-mapper/pkg/storage"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// ErrAlreadyRun is returned when Run is called a second time on the same Crawler
var ErrAlreadyRun = errors.New("crawler has already been run")

// Result is everything a finished crawl hands back to the caller
type Result struct {
	RunID      string
	Seed       string
	Domain     string // host[:port] of the seed
	Root       string // NodeID of the seed
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      Stats
	Graph      graph.Snapshot
	Visited    []string // Raw URLs that passed the visited gate, sorted
}

// Duration returns the wall time of the crawl
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Crawler runs one same-domain crawl from a seed URL and owns every piece of its mutable state
type Crawler struct {
	log       *logrus.Entry
	cfg       *config.AppConfig
	extractor fetch.Extractor
	store     storage.VisitedStore
	renderer  render.Renderer

	// Per-run state, set up by Run
	domain   string
	graph    *graph.Graph
	pq       *queue.TaskQueue
	notifier *render.Notifier
	sem      *semaphore.Weighted // Bounds queued plus in-flight tasks
	pending  atomic.Int64        // Spawned but not yet terminal, plus one token held by Run while seeding
	counters counters
	ran      atomic.Bool
}

// New creates a Crawler. The caller owns store and closes it after Run returns.
// renderer may be nil.
func New(
	cfg *config.AppConfig,
	extractor fetch.Extractor,
	store storage.VisitedStore,
	renderer render.Renderer,
	baseLogger *logrus.Entry,
) *Crawler {
	if renderer == nil {
		renderer = render.Nop{}
	}
	return &Crawler{
		log:       baseLogger,
		cfg:       cfg,
		extractor: extractor,
		store:     store,
		renderer:  renderer,
		graph:     graph.New(),
	}
}

// Run crawls from seed until every spawned task, including transitively spawned ones, is terminal.
// ctx is only the parent of each per-fetch timeout: cancelling it makes the remaining fetches fail fast
// and the crawl drain, it does not abandon queued tasks.
func (c *Crawler) Run(ctx context.Context, seed string) (*Result, error) {
	if c.ran.Swap(true) {
		return nil, ErrAlreadyRun
	}

	seedURL, err := parse.ParseSeed(seed)
	if err != nil {
		return nil, err
	}

	workers := max(c.cfg.MaxWorkers, 1)
	pendingLimit := max(c.cfg.MaxPendingTasks, workers)

	res := &Result{
		RunID:     uuid.NewString(),
		Seed:      seedURL.String(),
		Domain:    seedURL.Host,
		Root:      parse.NodeID(seedURL.String()),
		StartedAt: time.Now(),
	}
	c.domain = res.Domain
	c.log = c.log.WithFields(logrus.Fields{"run_id": res.RunID, "domain": res.Domain})
	c.pq = queue.NewTaskQueue(c.log)
	c.sem = semaphore.NewWeighted(int64(pendingLimit))
	c.notifier = render.NewNotifier(c.renderer, c.cfg.EventBuffer, c.log)

	c.log.WithFields(logrus.Fields{
		"seed":              res.Seed,
		"max_depth":         c.cfg.MaxDepth,
		"max_links":         c.cfg.MaxLinksPerPage,
		"max_pending_tasks": pendingLimit,
	}).Infof("Crawl starting with %d worker(s)...", workers)

	// The seed is a node even if its page yields nothing
	c.graph.AddNode(res.Root)

	var g errgroup.Group
	for i := 1; i <= workers; i++ {
		workerLog := c.log.WithField("worker_id", i)
		g.Go(func() error {
			c.worker(ctx, workerLog)
			return nil
		})
	}

	progDone := make(chan struct{})
	progStopped := make(chan struct{})
	go c.reportProgress(progDone, progStopped)

	// Run holds one pending token while seeding so the queue cannot close before the seed is counted
	c.pending.Add(1)
	c.spawn(models.Task{URL: res.Seed, Depth: 0}, c.log)
	c.release()

	_ = g.Wait()
	close(progDone)
	<-progStopped

	res.FinishedAt = time.Now()
	res.Graph = c.graph.Snapshot()

	if err := c.notifier.Close(res.Graph); err != nil {
		c.log.Warnf("Renderer failed to finish: %v", err)
	}

	visited, err := c.store.VisitedURLs()
	if err != nil {
		c.log.WithField("category", utils.CategorizeError(err)).Warnf("Could not list visited URLs: %v", err)
	}
	res.Visited = visited
	res.Stats = c.counters.snapshot(c.notifier.Dropped())

	summaryLog := c.log.WithField("seed", res.Seed)
	summaryLog.Info("========================================================================")
	summaryLog.Info("CRAWL FINISHED")
	summaryLog.Infof("Duration:         %v", res.Duration())
	summaryLog.Infof("Final Stats: Nodes: %d, Edges: %d, Fetched: %d, Fetch errors: %d, Visited: %d",
		len(res.Graph.Nodes), len(res.Graph.Edges), res.Stats.Fetched, res.Stats.TotalFetchErrors(), c.store.VisitedCount())
	summaryLog.Infof("Dropped: depth=%d duplicate=%d store_error=%d rejected=%d panics=%d",
		res.Stats.DroppedDepth, res.Stats.DroppedDuplicate, res.Stats.DroppedStoreError,
		res.Stats.Rejected, res.Stats.Panics)
	summaryLog.Infof("Render events: delivered=%d dropped=%d", c.notifier.Delivered(), res.Stats.EventsDropped)
	summaryLog.Info("========================================================================")

	return res, nil
}

// worker pops tasks until the queue is closed and drained
func (c *Crawler) worker(ctx context.Context, workerLog *logrus.Entry) {
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		task, ok := c.pq.Pop()
		if !ok {
			return
		}
		c.processTask(ctx, task, workerLog)
	}
}

// spawn admits a task into the pool or drops it. It never blocks.
func (c *Crawler) spawn(task models.Task, log *logrus.Entry) bool {
	c.counters.spawned.Add(1)
	taskLog := log.WithFields(logrus.Fields{"child_url": task.URL, "child_depth": task.Depth})

	if task.Depth > c.cfg.MaxDepth {
		c.counters.droppedDepth.Add(1)
		taskLog.WithField("reason", models.DropReasonDepth).Trace("Task dropped")
		return false
	}
	if !c.sem.TryAcquire(1) {
		c.counters.rejected.Add(1)
		taskLog.WithFields(logrus.Fields{
			"reason":   models.DropReasonBackpressure,
			"category": utils.CategorizeError(utils.ErrPendingLimit),
		}).Warnf("Task rejected: %v", utils.ErrPendingLimit)
		return false
	}

	c.pending.Add(1)
	if !c.pq.Add(task) {
		// Queue only closes once pending reaches zero, so this means a bookkeeping bug
		taskLog.Error("Queue closed while tasks were still pending")
		c.sem.Release(1)
		c.release()
		return false
	}
	return true
}

// release marks one pending unit terminal and closes the queue when nothing is left
func (c *Crawler) release() {
	if c.pending.Add(-1) == 0 {
		c.log.Debug("No pending tasks left, closing queue")
		c.pq.Close()
	}
}

// processTask takes one dispatched task to a terminal state
func (c *Crawler) processTask(ctx context.Context, task models.Task, workerLog *logrus.Entry) {
	taskLog := workerLog.WithFields(logrus.Fields{"url": task.URL, "depth": task.Depth})
	startTime := time.Now()
	state := models.TaskStatePending
	c.advance(&state, models.TaskStateDispatched, taskLog)

	defer func() {
		if r := recover(); r != nil {
			c.counters.panics.Add(1)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"duration":    time.Since(startTime).String(),
				"stage":       "PanicRecovery",
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in processTask")
			if !state.IsTerminal() {
				c.advance(&state, models.TaskStateDropped, taskLog)
			}
		}
		// Children were counted before this decrement
		c.sem.Release(1)
		c.release()
	}()

	first, err := c.store.TryMarkVisited(task.URL)
	if err != nil {
		c.counters.droppedStoreError.Add(1)
		c.advance(&state, models.TaskStateDropped, taskLog)
		taskLog.WithFields(logrus.Fields{
			"reason":   models.DropReasonStoreError,
			"category": utils.CategorizeError(err),
		}).Errorf("Visited check failed, dropping task: %v", err)
		return
	}
	if !first {
		c.counters.droppedDuplicate.Add(1)
		c.advance(&state, models.TaskStateDropped, taskLog)
		taskLog.WithField("reason", models.DropReasonDuplicate).Trace("Task dropped")
		return
	}

	c.advance(&state, models.TaskStateFetching, taskLog)
	result := c.extractor.FetchLinks(ctx, task.URL, c.domain)
	c.counters.fetched.Add(1)
	if result.Err != nil {
		category := utils.CategorizeError(result.Err)
		c.counters.recordFetchError(category)
		taskLog.WithFields(logrus.Fields{
			"category": category,
			"links":    len(result.Links),
		}).Warnf("Fetch error: %v", result.Err)
	}

	src := parse.NodeID(task.URL)
	newEdges := 0
	for _, link := range result.Links {
		dst := parse.NodeID(link)
		if c.graph.AddEdgeIfAbsent(src, dst) {
			newEdges++
			c.counters.edgesAdded.Add(1)
			c.notifier.Publish(models.EdgeEvent{Source: src, Target: dst, Depth: task.Depth, At: time.Now()})
		}
		c.spawn(models.Task{URL: link, Depth: task.Depth + 1}, taskLog)
	}

	c.advance(&state, models.TaskStateCompleted, taskLog)
	c.counters.completed.Add(1)
	taskLog.WithFields(logrus.Fields{
		"links":     len(result.Links),
		"new_edges": newEdges,
		"duration":  time.Since(startTime).String(),
	}).Debug("Task completed")
}

func (c *Crawler) advance(state *models.TaskState, next models.TaskState, taskLog *logrus.Entry) {
	if !state.CanTransition(next) {
		taskLog.Errorf("Illegal task transition %s -> %s", *state, next)
	}
	*state = next
}

// reportProgress logs the "Crawl Progress" line every ProgressInterval until done is closed
func (c *Crawler) reportProgress(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	if c.cfg.ProgressInterval <= 0 {
		<-done
		return
	}
	ticker := time.NewTicker(c.cfg.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.log.WithFields(logrus.Fields{
				"visited":     c.store.VisitedCount(),
				"queue_len":   c.pq.Len(),
				"pending":     c.pending.Load(),
				"fetched":     c.counters.fetched.Load(),
				"nodes":       c.graph.NodeCount(),
				"edges":       c.graph.EdgeCount(),
				"rejected":    c.counters.rejected.Load(),
				"fetch_fails": c.counters.fetchErrorTotal(),
			}).Info("Crawl Progress")
		}
	}
}
