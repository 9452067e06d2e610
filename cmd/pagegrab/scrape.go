package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pagegrab/internal/metrics"
	"pagegrab/pkg/agent"
	"pagegrab/pkg/config"
	"pagegrab/pkg/coordinator"
	"pagegrab/pkg/download"
	"pagegrab/pkg/logger"
	"pagegrab/pkg/storage"
)

var (
	// Scrape command flags
	outputDir           string
	concurrent          int
	rateLimit           int
	maxPages            int
	settleDelay         time.Duration
	scrollDelay         time.Duration
	maxScrollIterations int
	pageLoadTimeout     time.Duration
	headless            bool
	noSandbox           bool
	chromePath          string
	metricsAddr         string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape all images from a paginated gallery page",
	Long: `Navigate to the given URL in a headless browser, scroll until all
lazy-loaded content has rendered, collect every image and its link
destination, then follow next-page controls until the gallery is
exhausted or the page budget runs out.

Downloaded images keep their original filenames; collisions get a
numeric suffix before the extension (photo.jpg, photo_1.jpg, ...).`,
	Example: `  # Scrape with default settings
  pagegrab scrape https://example.com/gallery

  # Custom output directory and more parallel downloads
  pagegrab scrape https://example.com/gallery --output ./shots --concurrent 5

  # Slow site: longer settle delay, fewer pages
  pagegrab scrape https://example.com/gallery --settle-delay 5s --max-pages 10

  # Expose Prometheus metrics while running
  pagegrab scrape https://example.com/gallery --metrics-addr :9464`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads (default: ./downloads)")
	scrapeCmd.Flags().IntVar(&concurrent, "concurrent", 3, "number of concurrent downloads")
	scrapeCmd.Flags().IntVar(&rateLimit, "rate-limit", 60, "download requests per minute")
	scrapeCmd.Flags().IntVar(&maxPages, "max-pages", 50, "maximum number of pages to visit")
	scrapeCmd.Flags().DurationVar(&settleDelay, "settle-delay", 2*time.Second, "wait after page load before scraping")
	scrapeCmd.Flags().DurationVar(&scrollDelay, "scroll-delay", 2*time.Second, "wait between lazy-load scroll cycles")
	scrapeCmd.Flags().IntVar(&maxScrollIterations, "max-scroll-iterations", 20, "hard cap on scroll cycles per page")
	scrapeCmd.Flags().DurationVar(&pageLoadTimeout, "timeout", 30*time.Second, "page load timeout")
	scrapeCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	scrapeCmd.Flags().BoolVar(&noSandbox, "no-sandbox", false, "disable the Chrome sandbox (for containers)")
	scrapeCmd.Flags().StringVar(&chromePath, "chrome-path", "", "path to the Chrome/Chromium binary")
	scrapeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
}

func runScrape(cmd *cobra.Command, args []string) error {
	startURL := strings.TrimSpace(args[0])
	parsed, err := url.ParseRequestURI(startURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid start URL %q: must be an absolute http(s) URL", startURL)
	}

	// Build flags map from command line
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if cmd.Flags().Changed("concurrent") {
		flags["concurrent"] = concurrent
	}
	if cmd.Flags().Changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}
	if cmd.Flags().Changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if cmd.Flags().Changed("settle-delay") {
		flags["settle-delay"] = settleDelay
	}
	if cmd.Flags().Changed("scroll-delay") {
		flags["scroll-delay"] = scrollDelay
	}
	if cmd.Flags().Changed("max-scroll-iterations") {
		flags["max-scroll-iterations"] = maxScrollIterations
	}
	if cmd.Flags().Changed("timeout") {
		flags["timeout"] = pageLoadTimeout
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if noSandbox {
		flags["no-sandbox"] = true
	}
	if chromePath != "" {
		flags["chrome-path"] = chromePath
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("pagegrab starting")

	store, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			log.WithField("addr", cfg.Metrics.Addr).Info("Serving metrics")
			if err := m.Serve(cfg.Metrics.Addr); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	fetcher := download.NewHTTPFetcher(cfg.Download.DownloadTimeout, cfg.Browser.UserAgent)

	coord := coordinator.New(cfg, startURL,
		func() agent.Agent {
			return agent.NewChromeAgent(cfg, startURL, log, m)
		},
		fetcher, store, m, log,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := coord.Start(ctx)
	if err != nil {
		log.WithError(err).Error("Scrape failed")
		return err
	}

	fmt.Printf("\nScrape complete: %d pages, %d images found\n", summary.Pages, summary.Thumbnails)
	fmt.Printf("Downloads: %d succeeded, %d failed\n", summary.DownloadsOK, summary.DownloadsFailed)
	if summary.RejectedPayloads > 0 {
		fmt.Printf("Rejected payloads: %d\n", summary.RejectedPayloads)
	}
	fmt.Printf("Saved to: %s (took %s)\n", store.ImageDir(), summary.Duration.Round(time.Millisecond))

	return nil
}
