package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-mapper/pkg/config"
	"github.com/Sriram-PR/site-mapper/pkg/fetch"
	"github.com/Sriram-PR/site-mapper/pkg/graph"
	"github.com/Sriram-PR/site-mapper/pkg/models"
	"github.com/Sriram-PR/site-mapper/pkg/storage"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

const siteHost = "site.test"

func page(p string) string { return "http://" + siteHost + "/" + p }

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.ProgressInterval = 0
	cfg.OutputFormats = nil
	return &cfg
}

// fakeSite is an in-memory Extractor that counts calls per URL
type fakeSite struct {
	pages  map[string][]string
	errs   map[string]error
	panics map[string]bool
	delay  time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func newFakeSite(pages map[string][]string) *fakeSite {
	return &fakeSite{
		pages:  pages,
		errs:   make(map[string]error),
		panics: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func (f *fakeSite) FetchLinks(ctx context.Context, rawURL, domain string) fetch.Result {
	f.mu.Lock()
	f.calls[rawURL]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics[rawURL] {
		panic("boom: " + rawURL)
	}
	if err := ctx.Err(); err != nil {
		return fetch.Result{Err: &fetch.FetchError{URL: rawURL, Kind: fetch.KindTimeout, Err: err}}
	}
	if err := f.errs[rawURL]; err != nil {
		return fetch.Result{Err: err}
	}
	return fetch.Result{Links: f.pages[rawURL]}
}

func (f *fakeSite) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeSite) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// recorder is a Renderer that keeps every event it sees
type recorder struct {
	mu       sync.Mutex
	events   []models.EdgeEvent
	finished []graph.Snapshot
}

func (r *recorder) EdgeAdded(ev models.EdgeEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Finish(snap graph.Snapshot) error {
	r.mu.Lock()
	r.finished = append(r.finished, snap)
	r.mu.Unlock()
	return nil
}

// failingStore fails TryMarkVisited for one URL
type failingStore struct {
	storage.VisitedStore
	failURL string
}

func (s *failingStore) TryMarkVisited(rawURL string) (bool, error) {
	if rawURL == s.failURL {
		return false, fmt.Errorf("%w: write conflict on '%s'", utils.ErrDatabase, rawURL)
	}
	return s.VisitedStore.TryMarkVisited(rawURL)
}

// runCrawl runs c and fails the test if the crawl does not terminate
func runCrawl(t *testing.T, ctx context.Context, c *Crawler, seed string) *Result {
	t.Helper()
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Run(ctx, seed)
		done <- outcome{res, err}
	}()
	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.NotNil(t, out.res)
		return out.res
	case <-time.After(10 * time.Second):
		t.Fatal("crawl did not terminate")
		return nil
	}
}

func edges(pairs ...string) []graph.Edge {
	out := make([]graph.Edge, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, graph.Edge{From: pairs[i], To: pairs[i+1]})
	}
	return out
}

func TestRun_SingleWorkerDepthOne(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c")},
		page("b"): {page("d")},
		page("c"): {page("d")},
		page("d"): {page("e")},
	})
	cfg := testConfig()
	cfg.MaxDepth = 1
	cfg.MaxWorkers = 1

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), nil, testLogger()), page("a"))

	assert.Equal(t, []string{"/a", "/b", "/c", "/d"}, res.Graph.Nodes)
	assert.Equal(t, edges("/a", "/b", "/a", "/c", "/b", "/d", "/c", "/d"), res.Graph.Edges)
	assert.Equal(t, 3, site.totalCalls())
	assert.Zero(t, site.callCount(page("d")), "d is beyond MaxDepth")
	assert.Equal(t, int64(3), res.Stats.Fetched)
	assert.Equal(t, int64(2), res.Stats.DroppedDepth, "d spawned at depth 2 by both b and c")
	assert.Equal(t, []string{page("a"), page("b"), page("c")}, res.Visited)
	assert.Equal(t, "/a", res.Root)
	assert.Equal(t, siteHost, res.Domain)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRun_DiamondFetchesEachURLOnce(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c"), page("d")},
		page("b"): {page("e"), page("a")},
		page("c"): {page("e"), page("b")},
		page("d"): {page("e"), page("c")},
		page("e"): {page("a"), page("b"), page("c"), page("d")},
	})
	site.delay = 2 * time.Millisecond
	cfg := testConfig()
	cfg.MaxDepth = 10
	cfg.MaxWorkers = 16

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), nil, testLogger()), page("a"))

	for _, p := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, 1, site.callCount(page(p)), "page %s", p)
	}
	assert.Len(t, res.Graph.Nodes, 5)
	assert.Len(t, res.Graph.Edges, 13)
	assert.Len(t, res.Visited, 5)
	assert.Equal(t, int64(5), res.Stats.Fetched)
	assert.Equal(t, res.Stats.Spawned,
		res.Stats.Completed+res.Stats.DroppedDuplicate+res.Stats.DroppedDepth+res.Stats.Rejected,
		"every spawn reaches exactly one terminal state")
}

func TestRun_RacingWorkersFetchSharedLinkOnce(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("b"), page("b"), page("b"), page("b")},
	})
	site.delay = 5 * time.Millisecond
	cfg := testConfig()
	cfg.MaxWorkers = 8

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), nil, testLogger()), page("a"))

	assert.Equal(t, 1, site.callCount(page("b")))
	assert.Equal(t, []string{"/a", "/b"}, res.Graph.Nodes)
	assert.Equal(t, edges("/a", "/b"), res.Graph.Edges)
	assert.Equal(t, int64(4), res.Stats.DroppedDuplicate)
}

func TestRun_ChildDepthIsParentPlusOne(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b")},
		page("b"): {page("c")},
		page("c"): {page("d")},
		page("d"): {page("e")},
	})
	cfg := testConfig()
	cfg.MaxDepth = 2
	cfg.MaxWorkers = 4
	rec := &recorder{}

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), rec, testLogger()), page("a"))

	assert.Equal(t, 1, site.callCount(page("c")))
	assert.Zero(t, site.callCount(page("d")))
	assert.Zero(t, site.callCount(page("e")))
	assert.Equal(t, []string{"/d"}, res.Graph.Successors("/c"), "edges of the deepest fetched page are kept")
	assert.Equal(t, int64(1), res.Stats.DroppedDepth)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	depthBySource := make(map[string]int)
	for _, ev := range rec.events {
		depthBySource[ev.Source] = ev.Depth
	}
	assert.Equal(t, map[string]int{"/a": 0, "/b": 1, "/c": 2}, depthBySource)
}

func TestRun_MaxDepthZeroFetchesOnlySeed(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page(""): {page("x"), page("y")},
	})
	cfg := testConfig()
	cfg.MaxDepth = 0

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), nil, testLogger()), page(""))

	assert.Equal(t, 1, site.totalCalls())
	assert.Equal(t, []string{"/", "/x", "/y"}, res.Graph.Nodes)
	assert.Equal(t, int64(2), res.Stats.DroppedDepth)
}

func TestRun_FetchErrorIsLeaf(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c")},
		page("b"): {page("never")},
		page("c"): {page("d")},
	})
	site.errs[page("b")] = &fetch.FetchError{
		URL:        page("b"),
		Kind:       fetch.KindStatus,
		StatusCode: http.StatusNotFound,
		Err:        fmt.Errorf("%w: status 404 Not Found", utils.ErrClientHTTPError),
	}
	cfg := testConfig()

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), nil, testLogger()), page("a"))

	assert.Equal(t, map[string]int64{"HTTP_404": 1}, res.Stats.FetchErrors)
	assert.Equal(t, int64(1), res.Stats.TotalFetchErrors())
	assert.Empty(t, res.Graph.Successors("/b"))
	assert.NotContains(t, res.Graph.Nodes, "/never")
	assert.Contains(t, res.Graph.Nodes, "/d")
	assert.Equal(t, int64(4), res.Stats.Completed, "a failed fetch still completes the task")
}

func TestRun_OffDomainOnlySeedYieldsSingleNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="https://elsewhere.example/one">1</a>
			<a href="http://another.example/two">2</a>
			<a href="mailto:someone@example.com">mail</a>
		</body></html>`)
	}))
	defer srv.Close()

	cfg := testConfig()
	log := testLogger()
	client := fetch.NewClient(cfg.HTTPClientSettings, 2*time.Second, log)
	extractor := fetch.NewHTTPExtractor(client, fetch.ExtractorOptions{
		UserAgent:       cfg.UserAgent,
		Timeout:         2 * time.Second,
		MaxLinksPerPage: cfg.MaxLinksPerPage,
	}, log)

	res := runCrawl(t, context.Background(), New(cfg, extractor, storage.NewMemoryStore(), nil, log), srv.URL)

	assert.Equal(t, []string{"/"}, res.Graph.Nodes)
	assert.Empty(t, res.Graph.Edges)
	assert.Equal(t, int64(1), res.Stats.Fetched)
	assert.Zero(t, res.Stats.TotalFetchErrors())
}

func TestRun_HTTPSiteEndToEnd(t *testing.T) {
	pages := map[string]string{
		"/":      `<a href="/docs">docs</a><a href="/about">about</a>`,
		"/docs":  `<a href="/about">about</a><a href="/docs/intro">intro</a>`,
		"/about": `<a href="/">home</a>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body>%s</body></html>", body)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxDepth = 3
	log := testLogger()
	extractor := fetch.NewHTTPExtractor(fetch.NewClient(cfg.HTTPClientSettings, 2*time.Second, log), fetch.ExtractorOptions{
		UserAgent:       cfg.UserAgent,
		Timeout:         2 * time.Second,
		MaxLinksPerPage: cfg.MaxLinksPerPage,
	}, log)

	res := runCrawl(t, context.Background(), New(cfg, extractor, storage.NewMemoryStore(), nil, log), srv.URL+"/")

	assert.Equal(t, []string{"/", "/about", "/docs", "/docs/intro"}, res.Graph.Nodes)
	assert.Equal(t, edges(
		"/", "/about",
		"/", "/docs",
		"/about", "/",
		"/docs", "/about",
		"/docs", "/docs/intro",
	), res.Graph.Edges)
	assert.Equal(t, map[string]int64{"HTTP_404": 1}, res.Stats.FetchErrors)
}

func TestRun_ErrorPageLinksAreFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<a href="/gone">gone</a>`)
		case "/home":
			fmt.Fprint(w, `<p>home</p>`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<h1>Not here</h1><a href="/home">home</a>`)
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxDepth = 3
	log := testLogger()
	extractor := fetch.NewHTTPExtractor(fetch.NewClient(cfg.HTTPClientSettings, 2*time.Second, log), fetch.ExtractorOptions{
		UserAgent:       cfg.UserAgent,
		Timeout:         2 * time.Second,
		MaxLinksPerPage: cfg.MaxLinksPerPage,
	}, log)

	res := runCrawl(t, context.Background(), New(cfg, extractor, storage.NewMemoryStore(), nil, log), srv.URL+"/")

	assert.Equal(t, edges(
		"/", "/gone",
		"/gone", "/home",
	), res.Graph.Edges)
	assert.Equal(t, map[string]int64{"HTTP_404": 1}, res.Stats.FetchErrors)
	assert.Equal(t, int64(3), res.Stats.Fetched)
}

func TestRun_StoreErrorDropsTask(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c")},
		page("b"): {page("x")},
	})
	store := &failingStore{VisitedStore: storage.NewMemoryStore(), failURL: page("b")}
	cfg := testConfig()

	res := runCrawl(t, context.Background(), New(cfg, site, store, nil, testLogger()), page("a"))

	assert.Zero(t, site.callCount(page("b")), "never fetch when the gate cannot prove first visit")
	assert.Equal(t, 1, site.callCount(page("c")))
	assert.Equal(t, int64(1), res.Stats.DroppedStoreError)
	assert.Contains(t, res.Graph.Nodes, "/b", "edge to b was recorded before the drop")
	assert.NotContains(t, res.Graph.Nodes, "/x")
}

func TestRun_PanicInTaskIsRecovered(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c")},
		page("c"): {page("d")},
	})
	site.panics[page("b")] = true
	cfg := testConfig()
	cfg.MaxWorkers = 2

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), nil, testLogger()), page("a"))

	assert.Equal(t, int64(1), res.Stats.Panics)
	assert.Equal(t, 1, site.callCount(page("d")), "other tasks keep running")
	assert.Equal(t, int64(3), res.Stats.Completed)
}

func TestRun_PendingLimitRejectsWithoutBlocking(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c")},
	})
	cfg := testConfig()
	cfg.MaxWorkers = 1
	cfg.MaxPendingTasks = 1

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), nil, testLogger()), page("a"))

	assert.Equal(t, int64(2), res.Stats.Rejected, "seed holds the only slot while spawning")
	assert.Equal(t, 1, site.totalCalls())
	assert.Equal(t, edges("/a", "/b", "/a", "/c"), res.Graph.Edges, "edges are recorded even when the child is rejected")
}

func TestRun_PublishesEveryNewEdge(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c"), page("b")},
		page("b"): {page("c"), page("a")},
		page("c"): {page("a")},
	})
	cfg := testConfig()
	cfg.MaxWorkers = 3
	rec := &recorder{}

	res := runCrawl(t, context.Background(), New(cfg, site, storage.NewMemoryStore(), rec, testLogger()), page("a"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.finished, 1)
	assert.Equal(t, res.Graph, rec.finished[0])
	assert.Len(t, rec.events, len(res.Graph.Edges), "one event per distinct edge")
	assert.Equal(t, int64(len(res.Graph.Edges)), res.Stats.EdgesAdded)
	assert.Zero(t, res.Stats.EventsDropped)
	for _, ev := range rec.events {
		assert.Contains(t, res.Graph.Edges, graph.Edge{From: ev.Source, To: ev.Target})
	}
}

func TestRun_CanceledContextDrains(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b")},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runCrawl(t, ctx, New(testConfig(), site, storage.NewMemoryStore(), nil, testLogger()), page("a"))

	assert.Equal(t, []string{"/a"}, res.Graph.Nodes)
	assert.Equal(t, map[string]int64{"System_ContextCanceled": 1}, res.Stats.FetchErrors)
}

func TestRun_BadgerVisitedStore(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b"), page("c")},
		page("b"): {page("c")},
	})
	store, err := storage.Open(storage.BackendBadger, t.TempDir(), siteHost, testLogger())
	require.NoError(t, err)
	defer store.Close()
	cfg := testConfig()
	cfg.MaxWorkers = 4

	res := runCrawl(t, context.Background(), New(cfg, site, store, nil, testLogger()), page("a"))

	assert.Equal(t, []string{page("a"), page("b"), page("c")}, res.Visited)
	assert.Equal(t, 1, site.callCount(page("c")))
	assert.Equal(t, 3, store.VisitedCount())
}

func TestRun_IndependentCrawlersDoNotShareState(t *testing.T) {
	site := newFakeSite(map[string][]string{
		page("a"): {page("b")},
	})
	cfg := testConfig()

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := New(cfg, site, storage.NewMemoryStore(), nil, testLogger()).Run(context.Background(), page("a"))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, results[0].Graph, results[1].Graph)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
	assert.Equal(t, 2, site.callCount(page("a")), "each crawler has its own visited set")
}

func TestRun_RejectsSecondRun(t *testing.T) {
	site := newFakeSite(nil)
	c := New(testConfig(), site, storage.NewMemoryStore(), nil, testLogger())

	_ = runCrawl(t, context.Background(), c, page("a"))
	_, err := c.Run(context.Background(), page("a"))
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRun_InvalidSeed(t *testing.T) {
	for _, seed := range []string{"", "ftp://site.test/", "not a url", "/relative/path"} {
		t.Run(seed, func(t *testing.T) {
			c := New(testConfig(), newFakeSite(nil), storage.NewMemoryStore(), nil, testLogger())
			_, err := c.Run(context.Background(), seed)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
		})
	}
}

func TestStats_AsMap(t *testing.T) {
	s := Stats{Fetched: 3, Rejected: 1, FetchErrors: map[string]int64{"HTTP_404": 2, "Network_Timeout": 1}}
	m := s.AsMap()
	assert.Equal(t, int64(3), m["fetched"])
	assert.Equal(t, int64(1), m["rejected"])
	assert.Equal(t, int64(3), m["fetch_errors"])
	assert.Equal(t, []string{"HTTP_404", "Network_Timeout"}, s.FetchErrorCategories())
}
