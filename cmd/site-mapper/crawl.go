package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/site-mapper/pkg/config"
	"github.com/Sriram-PR/site-mapper/pkg/crawler"
	"github.com/Sriram-PR/site-mapper/pkg/export"
	"github.com/Sriram-PR/site-mapper/pkg/fetch"
	applog "github.com/Sriram-PR/site-mapper/pkg/log"
	"github.com/Sriram-PR/site-mapper/pkg/parse"
	"github.com/Sriram-PR/site-mapper/pkg/render"
	"github.com/Sriram-PR/site-mapper/pkg/storage"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

const (
	seedPrompt       = "Enter URL: "
	badgerGCInterval = 10 * time.Minute
	shutdownGrace    = 30 * time.Second
)

// crawlFlags holds command-line overrides; each applies only when set
type crawlFlags struct {
	maxDepth        int
	maxLinks        int
	workers         int
	timeout         string
	userAgent       string
	visitedStore    string
	stateDir        string
	outputDir       string
	formats         []string
	writeVisitedLog bool
	noProgress      bool
}

// NewCrawlCmd creates the crawl command
func NewCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Crawl a site and export its link graph",
		Long: `Crawl a site starting from seed-url, following at most max_links_per_page
same-host links per page up to max_depth hops, then export the graph.

When seed-url is omitted it is read from standard input.`,
		Example: `  site-mapper crawl https://example.com
  site-mapper crawl https://example.com --max-depth 3 --format yaml,sqlite
  MAX_WORKERS=10 site-mapper crawl --config config.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.maxDepth, "max-depth", config.DefaultMaxDepth, "Maximum hop depth from the seed")
	f.IntVar(&flags.maxLinks, "max-links", config.DefaultMaxLinksPerPage, "Maximum links followed per page")
	f.IntVar(&flags.workers, "workers", config.DefaultMaxWorkers, "Number of concurrent workers")
	f.StringVar(&flags.timeout, "timeout", "", "Per-fetch timeout in seconds or as a duration (e.g. 2500ms)")
	f.StringVar(&flags.userAgent, "user-agent", "", "User-Agent header")
	f.StringVar(&flags.visitedStore, "store", "", "Visited store backend (memory, badger)")
	f.StringVar(&flags.stateDir, "state-dir", "", "Directory for the badger visited store (empty = in-memory)")
	f.StringVar(&flags.outputDir, "output-dir", "", "Base directory for exports")
	f.StringSliceVar(&flags.formats, "format", nil, "Export formats (yaml, tsv, tree, sqlite)")
	f.BoolVar(&flags.writeVisitedLog, "write-visited-log", false, "Write the visited URL list next to the exports")
	f.BoolVar(&flags.noProgress, "no-progress", false, "Disable the terminal progress spinner")

	return cmd
}

// apply copies every flag the user set onto appCfg
func (cf *crawlFlags) apply(cmd *cobra.Command, appCfg *config.AppConfig) error {
	f := cmd.Flags()
	if f.Changed("max-depth") {
		appCfg.MaxDepth = cf.maxDepth
	}
	if f.Changed("max-links") {
		appCfg.MaxLinksPerPage = cf.maxLinks
	}
	if f.Changed("workers") {
		appCfg.MaxWorkers = cf.workers
	}
	if f.Changed("timeout") {
		timeout, err := config.ParseTimeout(cf.timeout)
		if err != nil {
			return err
		}
		appCfg.Timeout = timeout
	}
	if f.Changed("user-agent") {
		appCfg.UserAgent = cf.userAgent
	}
	if f.Changed("store") {
		appCfg.VisitedStore = cf.visitedStore
	}
	if f.Changed("state-dir") {
		appCfg.StateDir = cf.stateDir
	}
	if f.Changed("output-dir") {
		appCfg.OutputBaseDir = cf.outputDir
	}
	if f.Changed("format") {
		appCfg.OutputFormats = cf.formats
	}
	if f.Changed("write-visited-log") {
		appCfg.WriteVisitedLog = cf.writeVisitedLog
	}
	return nil
}

// readSeed prompts on out and reads one line from in
func readSeed(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, seedPrompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("%w: reading seed URL: %w", utils.ErrConfigValidation, err)
	}
	return strings.TrimSpace(line), nil
}

func runCrawl(cmd *cobra.Command, args []string, flags *crawlFlags) error {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("loglevel")

	var flagErr error
	appCfg, warnings, err := loadAppConfig(configPath, logLevel, func(c *config.AppConfig) {
		flagErr = flags.apply(cmd, c)
	})
	if flagErr != nil {
		return flagErr
	}
	if err != nil {
		return err
	}

	baseLog, logCloser, err := applog.NewLogger(appCfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logCloser.Close()
	for _, w := range warnings {
		baseLog.Warn(w)
	}

	// --- Seed ---
	var seed string
	if len(args) == 1 {
		seed = args[0]
	} else {
		seed, err = readSeed(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}
	seedURL, err := parse.ParseSeed(seed)
	if err != nil {
		return err
	}
	log := logrus.NewEntry(baseLog).WithField("domain", seedURL.Host)
	logAppConfig(appCfg, log)

	// --- Context & Signal Handling ---
	crawlCtx, cancelCrawl := context.WithCancel(cmd.Context())
	defer cancelCrawl()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Failing remaining fetches and draining...", sig)
			cancelCrawl()
		case <-crawlCtx.Done():
			return
		}
		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(shutdownGrace):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	// --- Components ---
	store, err := storage.Open(appCfg.VisitedStore, appCfg.StateDir, seedURL.Host, log)
	if err != nil {
		return fmt.Errorf("failed to initialize visited store: %w", err)
	}
	defer store.Close()
	if bs, ok := store.(*storage.BadgerStore); ok {
		go bs.RunGC(crawlCtx, badgerGCInterval)
	}

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, appCfg.Timeout, log)
	extractor := fetch.NewHTTPExtractor(httpClient, fetch.ExtractorOptions{
		UserAgent:         appCfg.UserAgent,
		Timeout:           appCfg.Timeout,
		MaxLinksPerPage:   appCfg.MaxLinksPerPage,
		MaxPageSizeBytes:  appCfg.MaxPageSizeBytes,
		RequestsPerSecond: appCfg.RequestsPerSecond,
		RequestsBurst:     appCfg.RequestsBurst,
	}, log)

	renderers := []render.Renderer{render.NewLogRenderer(log)}
	if !flags.noProgress {
		renderers = append(renderers, render.NewProgressRenderer(cmd.ErrOrStderr()))
	}

	// --- Crawl ---
	res, err := crawler.New(appCfg, extractor, store, render.Multi(renderers...), log).Run(crawlCtx, seedURL.String())
	if err != nil {
		return err
	}

	// --- Export ---
	var exportErrs []error
	var written []string
	outputs := export.NewManager(appCfg, res.Domain, log)
	if !outputs.Enabled() {
		log.Info("No outputs configured, skipping export")
	} else {
		written, err = outputs.Write(res)
		if err != nil {
			exportErrs = append(exportErrs, err)
		}
	}
	if appCfg.WriteVisitedLog {
		visitedPath := outputs.Path(export.VisitedLogFile)
		if err := outputs.Prepare(); err != nil {
			exportErrs = append(exportErrs, err)
		} else if err := store.WriteVisitedLog(visitedPath); err != nil {
			log.Errorf("Error writing final visited log: %v", err)
			exportErrs = append(exportErrs, err)
		} else {
			written = append(written, visitedPath)
		}
	}

	if len(written) > 0 {
		log.WithField("files", len(written)).Infof("Exports written to %s", outputs.Dir())
	}
	printSummary(cmd.OutOrStdout(), res, written)
	if crawlCtx.Err() != nil {
		log.Warn("Crawl interrupted; exported graph is partial.")
	}
	return errors.Join(exportErrs...)
}

// printSummary writes the human-readable result to out
func printSummary(out io.Writer, res *crawler.Result, written []string) {
	fmt.Fprintf(out, "Mapped %s: %d nodes, %d edges (%d pages fetched, %d fetch errors) in %v\n",
		res.Seed, len(res.Graph.Nodes), len(res.Graph.Edges), res.Stats.Fetched,
		res.Stats.TotalFetchErrors(), res.Duration().Round(time.Millisecond))
	for _, category := range res.Stats.FetchErrorCategories() {
		fmt.Fprintf(out, "  %-28s %d\n", category, res.Stats.FetchErrors[category])
	}
	for _, path := range written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Entry) {
	log.Infof("Config: MaxDepth:%d, MaxLinksPerPage:%d, Workers:%d, MaxPending:%d",
		appCfg.MaxDepth, appCfg.MaxLinksPerPage, appCfg.MaxWorkers, appCfg.MaxPendingTasks)
	log.Infof("Config Fetch: Timeout:%v, UserAgent:'%s', RPS:%g, MaxPageSize:%d bytes",
		appCfg.Timeout, appCfg.UserAgent, appCfg.RequestsPerSecond, appCfg.MaxPageSizeBytes)
	log.Infof("Config Storage: VisitedStore:%s, StateDir:'%s', OutputDir:'%s', Formats:%v",
		appCfg.VisitedStore, appCfg.StateDir, appCfg.OutputBaseDir, appCfg.OutputFormats)
	log.Infof("Config HTTP Client: MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout,
		appCfg.HTTPClientSettings.DialerTimeout)
}
