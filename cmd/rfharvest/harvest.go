package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rfharvest/pkg/auth"
	"rfharvest/pkg/browse"
	"rfharvest/pkg/catalog"
	"rfharvest/pkg/config"
	"rfharvest/pkg/download"
	"rfharvest/pkg/harvest"
	"rfharvest/pkg/logger"
	"rfharvest/pkg/ratelimit"
	"rfharvest/pkg/store"
	"rfharvest/pkg/ui"
	"rfharvest/pkg/universe"
)

var (
	// Harvest command flags
	termsFlag  string
	maxPages   int
	apiKeyFlag string
	dbPath     string
	resultsDir string
	headless   bool
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Crawl search terms and download new datasets",
	Long: `Crawl the Universe search interface for each configured term, record
newly discovered projects, and download their dataset archives.

Already-recorded projects are skipped. Projects whose download fails stay
recorded and are retried by the recovery sweep at the end of the run (and
by the next run).`,
	Example: `  # Harvest the default terms
  rfharvest harvest

  # Harvest specific terms, five pages each
  rfharvest harvest --terms "bottle,traffic sign" --max-pages 5

  # Record only, browser visible for debugging
  rfharvest harvest --headless=false`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarvest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	addHarvestFlags(harvestCmd)
}

func addHarvestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&termsFlag, "terms", "t", "", "comma-separated search terms")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum result pages per term")
	cmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "Roboflow API key")
	cmd.Flags().StringVar(&dbPath, "database", "", "path to the SQLite database")
	cmd.Flags().StringVar(&resultsDir, "results", "", "directory for downloaded datasets")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
}

func runHarvest(cmd *cobra.Command) error {
	flags := make(map[string]interface{})
	if termsFlag != "" {
		flags["terms"] = termsFlag
	}
	if maxPages > 0 {
		flags["max-pages"] = maxPages
	}
	if apiKeyFlag != "" {
		flags["api-key"] = apiKeyFlag
	}
	if dbPath != "" {
		flags["database"] = dbPath
	}
	if resultsDir != "" {
		flags["results"] = resultsDir
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Configuration error: %v", err)
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging: %v", err)
		return err
	}
	log := logger.GetLogger()

	// Credential resolution: flag/env/config first, then stored credentials
	if cfg.API.Key == "" {
		if manager, err := auth.NewManager(); err == nil {
			if cred, err := manager.RetrieveDefault(); err == nil {
				cfg.API.Key = cred.APIKey
			}
		}
	}

	terms := resolveTerms(cfg)
	if len(terms) == 0 {
		ui.PrintError("No search terms given")
		return fmt.Errorf("no search terms")
	}

	// Store unreachable is the one fatal startup condition
	records, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		ui.PrintError("Cannot open record store: %v", err)
		return err
	}
	defer records.Close()

	engine := browse.NewEngine(browse.Options{
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
	}, log)
	if err := engine.Start(); err != nil {
		ui.PrintError("Cannot start browser: %v", err)
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := catalog.NewClient(catalog.Options{
		BaseURL:         cfg.API.BaseURL,
		APIKey:          cfg.API.Key,
		Timeout:         cfg.API.Timeout,
		DownloadTimeout: cfg.API.DownloadTimeout,
		MaxRetries:      cfg.API.MaxRetries,
	}, log)

	if client.HasKey() {
		if !client.CheckKey(ctx) {
			ui.PrintWarning("API key could not be verified; downloads may fail")
		}
	} else {
		ui.PrintWarning("No API key configured; datasets will be recorded but not downloaded")
	}

	extractor := universe.NewExtractor(cfg.Search.BaseURL, log)
	crawler := universe.NewCrawler(engine, extractor, records, universe.CrawlerConfig{
		BaseURL:           cfg.Search.BaseURL,
		MaxPages:          cfg.Search.MaxPages,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		SelectorTimeout:   cfg.Browser.SelectorTimeout,
		SettleDelay:       cfg.Browser.SettleDelay,
	}, log)

	fetcher := download.NewOrchestrator(client, cfg.Output.ResultsDir, log)
	pacing := ratelimit.NewTokenBucket(1, cfg.Pacing.DownloadDelay)

	coordinator := harvest.NewCoordinator(crawler, records, fetcher, pacing, harvest.Config{
		DownloadsEnabled: client.HasKey(),
		TermDelay:        cfg.Pacing.TermDelay,
	}, log)

	ui.PrintInfo("Search terms", strings.Join(terms, ", "))
	ui.PrintInfo("Results directory", cfg.Output.ResultsDir)

	summary, err := coordinator.Run(ctx, terms)
	if err != nil {
		// Operator interrupt: report partial progress, exit non-zero
		printSummary(summary)
		ui.PrintError("Harvest interrupted: %v", err)
		return err
	}

	printSummary(summary)
	ui.PrintSuccess("Harvest complete")
	return nil
}

func printSummary(summary *harvest.Summary) {
	if summary == nil {
		return
	}
	ui.PrintInfo("Projects found", fmt.Sprintf("%d", summary.Found))
	ui.PrintInfo("Newly recorded", fmt.Sprintf("%d", summary.Saved))
	ui.PrintInfo("Datasets downloaded", fmt.Sprintf("%d", summary.Downloaded))
}

// resolveTerms returns the search terms for this run: explicit flag or
// environment first, then an interactive prompt, then the default set
func resolveTerms(cfg *config.Config) []string {
	if cfg.Search.TermsExplicit {
		return cfg.Search.Terms
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		if terms := promptForTerms(cfg.Search.Terms); len(terms) > 0 {
			return terms
		}
	}

	return cfg.Search.Terms
}

// promptForTerms asks the operator for a comma-separated term list.
// An empty answer keeps the defaults.
func promptForTerms(defaults []string) []string {
	fmt.Printf("Search terms (comma-separated) [%s]: ", strings.Join(defaults, ", "))

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return defaults
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return defaults
	}

	var terms []string
	for _, t := range strings.Split(line, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
