// Package coordinator owns the scrape run: accumulated results, filename
// deduplication, the download pool, and the Idle/Running state machine that
// drives the page agent through scrape, download, paginate cycles.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagegrab/internal/downloader"
	"pagegrab/internal/metrics"
	"pagegrab/pkg/agent"
	"pagegrab/pkg/config"
	"pagegrab/pkg/download"
	"pagegrab/pkg/errors"
	"pagegrab/pkg/logger"
	"pagegrab/pkg/protocol"
	"pagegrab/pkg/ratelimit"
)

// AgentFactory builds a fresh page agent for each run, mirroring the
// per-document-load lifetime of the agent side.
type AgentFactory func() agent.Agent

// Summary is the frozen outcome of a completed run, queryable until the next
// start resets it.
type Summary struct {
	RunID            string
	StartURL         string
	Pages            int
	Thumbnails       int
	Destinations     int
	DownloadsOK      int
	DownloadsFailed  int
	RejectedPayloads int
	Duration         time.Duration
}

// runState is the mutable accumulation for one run. It is only touched from
// the single goroutine driving the run, so it needs no locking.
type runState struct {
	thumbnails   []string
	destinations []string
	pages        int
	rejected     int
	submitFailed int
}

// Coordinator is the background half of the scrape cycle. At most one scrape
// runs at a time; a start request while one is running is refused without
// disturbing it.
type Coordinator struct {
	cfg      *config.Config
	startURL string
	newAgent AgentFactory
	fetcher  download.Fetcher
	storage  downloader.ImageStorage
	metrics  *metrics.Metrics
	logger   logger.Logger

	mu          sync.Mutex
	running     bool
	lastSummary *Summary
}

// New creates a coordinator. Nothing starts until Start is called.
func New(
	cfg *config.Config,
	startURL string,
	newAgent AgentFactory,
	fetcher download.Fetcher,
	storage downloader.ImageStorage,
	m *metrics.Metrics,
	log logger.Logger,
) *Coordinator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Coordinator{
		cfg:      cfg,
		startURL: startURL,
		newAgent: newAgent,
		fetcher:  fetcher,
		storage:  storage,
		metrics:  m,
		logger:   log,
	}
}

// Running reports whether a scrape is currently in progress.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Summary returns the outcome of the most recently completed run, or nil if
// none has completed yet.
func (c *Coordinator) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSummary == nil {
		return nil
	}
	s := *c.lastSummary
	return &s
}

// Start runs one complete scrape cycle and blocks until it finishes. A call
// while a run is in progress is refused with ErrAlreadyRunning and leaves the
// active run untouched.
func (c *Coordinator) Start(ctx context.Context) (*Summary, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Warn("Scrape already running, ignoring start request")
		return nil, errors.ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	runID := uuid.New().String()
	log := c.logger.WithField("run_id", runID)
	started := time.Now()

	if c.metrics != nil {
		c.metrics.RunsTotal.Inc()
	}
	log.WithField("url", c.startURL).Info("Starting scrape run")

	state := &runState{}
	gate := download.NewGate()

	limiter := ratelimit.NewTokenBucket(c.cfg.RateLimit.RequestsPerMinute, time.Minute)
	pool := downloader.NewWorkerPool(
		c.cfg.Download.ConcurrentDownloads,
		c.fetcher,
		c.storage,
		limiter,
		log,
	)
	pool.Start()

	// Tally download outcomes as they stream in. Failures are logged and
	// counted, never fatal to the run.
	var downloadsOK, downloadsFailed int
	var tallyWG sync.WaitGroup
	tallyWG.Add(1)
	go func() {
		defer tallyWG.Done()
		for result := range pool.Results() {
			if result.Success {
				downloadsOK++
			} else {
				downloadsFailed++
				log.WithError(result.Error).WithField("url", result.Job.URL).Warn("Download failed")
			}
			if c.metrics != nil {
				c.metrics.IncDownload(result.Success)
			}
		}
	}()

	directives := make(chan protocol.Directive)
	events := make(chan protocol.Event)

	// agentDone is closed when the agent goroutine returns, so both the
	// drive loop and the teardown below can observe it.
	agentDone := make(chan struct{})
	var agentErr error

	ag := c.newAgent()
	go func() {
		agentErr = ag.Run(ctx, directives, events)
		close(agentDone)
	}()

	driveErr := c.drive(ctx, log, state, gate, pool, directives, events, agentDone)

	// Closing the directive channel releases the agent if it is still
	// waiting for an instruction.
	close(directives)
	<-agentDone
	if driveErr == nil {
		driveErr = agentErr
	}

	pool.Stop()
	tallyWG.Wait()

	downloadsFailed += state.submitFailed

	summary := &Summary{
		RunID:            runID,
		StartURL:         c.startURL,
		Pages:            state.pages,
		Thumbnails:       len(state.thumbnails),
		Destinations:     len(state.destinations),
		DownloadsOK:      downloadsOK,
		DownloadsFailed:  downloadsFailed,
		RejectedPayloads: state.rejected,
		Duration:         time.Since(started),
	}

	c.mu.Lock()
	c.lastSummary = summary
	c.mu.Unlock()

	log.InfoWithFields("Scrape run finished", map[string]interface{}{
		"pages":            summary.Pages,
		"thumbnails":       summary.Thumbnails,
		"downloads_ok":     summary.DownloadsOK,
		"downloads_failed": summary.DownloadsFailed,
		"rejected":         summary.RejectedPayloads,
		"duration":         summary.Duration,
	})

	return summary, driveErr
}

// drive is the explicit loop that replaces the original recursive
// scrape-paginate round trips: issue begin, then for every payload received
// accumulate and download, then issue advance, until the agent reports the
// pages exhausted or the page budget runs out.
func (c *Coordinator) drive(
	ctx context.Context,
	log logger.Logger,
	state *runState,
	gate *download.Gate,
	pool *downloader.WorkerPool,
	directives chan<- protocol.Directive,
	events <-chan protocol.Event,
	agentDone <-chan struct{},
) error {
	if err := c.send(ctx, directives, agentDone, protocol.Directive{Kind: protocol.DirectiveBegin}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-agentDone:
			// Agent terminated without a completion event; its error, if
			// any, is picked up by the caller.
			return nil
		case ev := <-events:
			switch ev.Kind {
			case protocol.EventScrapedData:
				c.receivePayload(log, state, gate, pool, ev.Payload)

				if state.pages >= c.cfg.Scrape.MaxPages {
					log.WithField("max_pages", c.cfg.Scrape.MaxPages).Info("Page budget reached, stopping run")
					return nil
				}
				if err := c.send(ctx, directives, agentDone, protocol.Directive{Kind: protocol.DirectiveAdvance}); err != nil {
					return err
				}

			case protocol.EventScrapeComplete:
				return nil
			}
		}
	}
}

// receivePayload validates, accumulates, and queues downloads for one page's
// payload. A malformed payload is rejected and logged but never aborts the
// run; the caller still advances so the agent is not left stalled. Filename
// claims happen here, sequentially, in message-arrival order; only the
// fetches themselves run concurrently in the pool.
func (c *Coordinator) receivePayload(
	log logger.Logger,
	state *runState,
	gate *download.Gate,
	pool *downloader.WorkerPool,
	payload protocol.Payload,
) {
	if err := payload.Validate(); err != nil {
		state.rejected++
		if c.metrics != nil {
			c.metrics.PayloadsRejected.Inc()
		}
		log.WithError(err).Warn("Rejecting malformed payload")
		return
	}

	state.pages++
	state.thumbnails = append(state.thumbnails, payload.Thumbnails...)
	state.destinations = append(state.destinations, payload.Destinations...)
	if c.metrics != nil {
		c.metrics.PagesScraped.Inc()
	}

	for _, thumbnail := range payload.Thumbnails {
		filename := gate.Claim(thumbnail)
		job := downloader.DownloadJob{
			URL:      thumbnail,
			Filename: filename,
			Page:     state.pages,
		}
		if err := pool.Submit(job); err != nil {
			state.submitFailed++
			log.WithError(err).WithField("url", thumbnail).Warn("Failed to queue download")
		}
	}

	log.DebugWithFields("Payload accumulated", map[string]interface{}{
		"page":       state.pages,
		"images":     payload.Len(),
		"total":      len(state.thumbnails),
		"queue_size": pool.QueueSize(),
	})
}

// send delivers a directive unless the run is cancelled or the agent has
// already terminated.
func (c *Coordinator) send(
	ctx context.Context,
	directives chan<- protocol.Directive,
	agentDone <-chan struct{},
	d protocol.Directive,
) error {
	select {
	case directives <- d:
		return nil
	case <-agentDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
