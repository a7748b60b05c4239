package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"crawlops/pkg/config"
	"crawlops/pkg/export"
	"crawlops/pkg/extract"
	"crawlops/pkg/fetch"
	"crawlops/pkg/models"
	"crawlops/pkg/orchestrate"
	"crawlops/pkg/storage"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-reports":
		runListReports(os.Args[2:])
	case "list-sessions":
		runListSessions(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("crawlops %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `crawlops - bounded web content crawler

Usage:
  crawlops <command> [options]

Commands:
  crawl          Run a crawl from a seed URL or policy file
  validate       Validate configuration and policy files
  list-reports   List stored crawl reports
  list-sessions  List saved authentication sessions
  mcp-server     Start MCP server for AI tool integration
  version        Show version info

Run 'crawlops <command> -h' for command-specific help.`)
}

// setupLogger creates a configured logrus.Logger from the level flag and
// the config file's format setting.
func setupLogger(logLevelStr, format string) *logrus.Logger {
	log := logrus.New()
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// splitList parses a comma-separated flag value into trimmed parts
func splitList(value string) []string {
	var parts []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to YAML config file (optional, defaults apply)")
	policyFile := fs.String("policy", "", "Path to YAML crawl policy file")
	seedURL := fs.String("url", "", "Seed URL to crawl")
	maxDepth := fs.Int("depth", -1, "Maximum link depth from the seed, 0 for seed only (default 2)")
	maxPages := fs.Int("pages", 0, "Maximum number of pages to fetch (default 100)")
	scope := fs.String("scope", "", "Domain scope: default, host_only, subdomains")
	include := fs.String("include", "", "Comma-separated regex patterns a URL must match")
	exclude := fs.String("exclude", "", "Comma-separated regex patterns that exclude a URL")
	delay := fs.Float64("delay", 0, "Per-host politeness delay in seconds (default 1.0)")
	ignoreRobots := fs.Bool("ignore-robots", false, "Skip robots.txt checks")
	crawlPDFs := fs.Bool("pdf", false, "Follow links to PDF files and extract their content")
	seedSitemap := fs.Bool("sitemap", false, "Also enqueue URLs from robots.txt sitemaps")
	sessionDomain := fs.String("session", "", "Use the saved session stored for this domain")
	formats := fs.String("formats", "", "Comma-separated export formats: json, markdown, html, text")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: crawlops crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  crawlops crawl -url https://docs.example.com -depth 3 -formats json,markdown\n")
		fmt.Fprintf(os.Stderr, "  crawlops crawl -policy crawl.yaml -config config.yaml\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *policyFile == "" && *seedURL == "" {
		fmt.Fprintln(os.Stderr, "Error: one of -url or -policy is required")
		fs.Usage()
		os.Exit(1)
	}

	policy, err := buildPolicy(*policyFile, *seedURL, *maxDepth, *maxPages, *scope,
		*include, *exclude, *delay, *ignoreRobots, *crawlPDFs, *seedSitemap, *sessionDomain, *formats)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	executeCrawl(*configFile, policy, *logLevel)
}

// buildPolicy assembles the effective crawl policy from an optional policy
// file plus flag overrides. Flags win over file values.
func buildPolicy(policyFile, seedURL string, maxDepth, maxPages int, scope,
	include, exclude string, delay float64, ignoreRobots, crawlPDFs, seedSitemap bool,
	sessionDomain, formats string) (*config.CrawlPolicy, error) {

	policy := &config.CrawlPolicy{}
	if policyFile != "" {
		loaded, _, err := config.LoadCrawlPolicy(policyFile)
		if err != nil {
			return nil, err
		}
		policy = loaded
	}

	if seedURL != "" {
		policy.URL = seedURL
	}
	if maxDepth >= 0 {
		policy.MaxDepth = &maxDepth
	}
	if maxPages > 0 {
		policy.MaxPages = maxPages
	}
	if scope != "" {
		policy.Scope = scope
	}
	if include != "" {
		policy.IncludePatterns = splitList(include)
	}
	if exclude != "" {
		policy.ExcludePatterns = splitList(exclude)
	}
	if delay > 0 {
		policy.DelaySeconds = delay
	}
	if ignoreRobots {
		policy.IgnoreRobots = true
	}
	if crawlPDFs {
		policy.CrawlPDFLinks = true
	}
	if seedSitemap {
		policy.SeedFromSitemap = true
	}
	if sessionDomain != "" {
		policy.SessionDomain = sessionDomain
	}
	if formats != "" {
		policy.ExportFormats = splitList(formats)
	}

	return policy, nil
}

// executeCrawl runs one crawl to completion and writes exports
func executeCrawl(configFile string, policy *config.CrawlPolicy, logLevelStr string) {
	appCfg, cfgWarnings, err := config.LoadAppConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log := setupLogger(logLevelStr, appCfg.LogFormat)
	for _, w := range cfgWarnings {
		log.Warn(w)
	}

	policyWarnings, err := policy.Validate()
	if err != nil {
		log.Fatalf("Policy error: %v", err)
	}
	for _, w := range policyWarnings {
		log.Warn(w)
	}

	if appCfg.EnableTokenCounting {
		if err := extract.InitTokenizer(""); err != nil {
			log.Warnf("Token counting disabled: %v", err)
			appCfg.EnableTokenCounting = false
		}
	}

	// --- Global context & signal handling ---
	crawlCtx, cancelCrawl := context.WithCancel(context.Background())
	defer cancelCrawl()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancelCrawl()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	defer signal.Stop(sigChan)

	// --- Storage ---
	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "store"))
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()

	go store.RunGC(crawlCtx, 10*time.Minute)

	// --- Saved session ---
	var session *models.Session
	if policy.SessionDomain != "" {
		session, err = store.LoadSession(policy.SessionDomain)
		if err != nil {
			log.Fatalf("Failed to resolve session for '%s': %v", policy.SessionDomain, err)
		}
		log.Infof("Using saved session '%s' for domain %s", session.Name, session.Domain)
	}

	// --- Browser ---
	var browser fetch.Strategy
	var browserStrategy *fetch.BrowserStrategy
	if !appCfg.DisableBrowser {
		browserStrategy = fetch.NewBrowserStrategy(appCfg, log)
		browser = browserStrategy
		defer browserStrategy.Close()
	}

	// --- Runner ---
	runner := orchestrate.NewRunner(appCfg, browser, log)
	go runner.RunEviction(crawlCtx)

	runID := uuid.New().String()
	log.Infof("Starting crawl %s: seed=%s depth=%d pages=%d scope=%s",
		runID, policy.URL, policy.DepthLimit(), policy.MaxPages, policy.Scope)

	report, err := runner.Run(crawlCtx, runID, policy, session)

	// --- Persist & export ---
	if report != nil {
		if saveErr := store.SaveReport(report); saveErr != nil {
			log.Errorf("Failed to persist report: %v", saveErr)
		}

		writer := export.NewWriter(appCfg.OutputDir, log)
		paths, exportErr := writer.WriteAll(report, policy.ExportFormats)
		if exportErr != nil {
			log.Errorf("Export failed: %v", exportErr)
		}
		for _, p := range paths {
			log.Infof("Wrote %s", p)
		}

		printSummary(os.Stdout, report)
	}

	// --- Exit ---
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Crawl cancelled gracefully.")
			os.Exit(0)
		}
		log.Errorf("Crawl finished with error: %v", err)
		os.Exit(1)
	}

	log.Info("Crawl completed successfully.")
	os.Exit(0)
}

// printSummary writes a human-readable crawl summary
func printSummary(w io.Writer, report *models.CrawlReport) {
	fmt.Fprintf(w, "\nCrawl %s\n", report.ID)
	fmt.Fprintf(w, "  Seed:      %s\n", report.SeedURL)
	fmt.Fprintf(w, "  Pages:     %d crawled, %d failed\n",
		report.Summary.SuccessfulPages, report.Summary.FailedPages)
	fmt.Fprintf(w, "  Words:     %d\n", report.Summary.TotalWords)
	if report.Summary.TotalTokens > 0 {
		fmt.Fprintf(w, "  Tokens:    %d\n", report.Summary.TotalTokens)
	}
	fmt.Fprintf(w, "  Max depth: %d\n", report.Summary.MaxDepthReached)
	fmt.Fprintf(w, "  Duration:  %v\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file")
	policyFile := fs.String("policy", "", "Path to crawl policy file (optional)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: crawlops validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, *policyFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, policyPath string, stdout, stderr io.Writer) int {
	_, warnings, err := config.LoadAppConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	fmt.Fprintln(stdout, "OK: application configuration is valid")

	if policyPath != "" {
		policy, policyWarnings, err := config.LoadCrawlPolicy(policyPath)
		for _, w := range policyWarnings {
			fmt.Fprintf(stdout, "WARN: %s\n", w)
		}
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "OK: crawl policy for '%s' is valid\n", policy.URL)
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListReports handles the list-reports subcommand
func runListReports(args []string) {
	fs := flag.NewFlagSet("list-reports", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: crawlops list-reports [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doListReports(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doListReports lists stored reports and writes output to provided
// writers. Returns exit code (0 = success, 1 = error).
func doListReports(configPath string, stdout, stderr io.Writer) int {
	store, code := openStore(configPath, stderr)
	if code != 0 {
		return code
	}
	defer store.Close()

	reports, err := store.ListReports()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(reports) == 0 {
		fmt.Fprintln(stdout, "No stored reports.")
		return 0
	}

	fmt.Fprintf(stdout, "Stored reports (%d):\n\n", len(reports))
	for _, r := range reports {
		fmt.Fprintf(stdout, "  %s\n", r.ID)
		fmt.Fprintf(stdout, "    Seed: %s\n", r.SeedURL)
		fmt.Fprintf(stdout, "    Pages: %d ok, %d failed\n",
			r.Summary.SuccessfulPages, r.Summary.FailedPages)
		fmt.Fprintf(stdout, "    Finished: %s\n", r.FinishedAt.Format(time.RFC3339))
		fmt.Fprintln(stdout)
	}
	return 0
}

// runListSessions handles the list-sessions subcommand
func runListSessions(args []string) {
	fs := flag.NewFlagSet("list-sessions", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: crawlops list-sessions [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doListSessions(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doListSessions lists saved sessions without printing credential values.
// Returns exit code (0 = success, 1 = error).
func doListSessions(configPath string, stdout, stderr io.Writer) int {
	store, code := openStore(configPath, stderr)
	if code != 0 {
		return code
	}
	defer store.Close()

	sessions, err := store.ListSessions()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "No saved sessions.")
		return 0
	}

	now := time.Now().UTC()
	fmt.Fprintf(stdout, "Saved sessions (%d):\n\n", len(sessions))
	for _, s := range sessions {
		name := s.Name
		if name == "" {
			name = "default"
		}
		fmt.Fprintf(stdout, "  %s/%s\n", s.Domain, name)
		fmt.Fprintf(stdout, "    Cookies: %d, Tokens: %d\n", len(s.Cookies), len(s.Tokens))
		if !s.ExpiresAt.IsZero() {
			state := "active"
			if s.Expired(now) {
				state = "expired"
			}
			fmt.Fprintf(stdout, "    Expires: %s (%s)\n", s.ExpiresAt.Format(time.RFC3339), state)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}

// openStore loads the config and opens the badger store for read-mostly
// subcommands. Returns a non-zero exit code on failure.
func openStore(configPath string, stderr io.Writer) (*storage.BadgerStore, int) {
	appCfg, _, err := config.LoadAppConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return nil, 1
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "store"))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening state store: %v\n", err)
		return nil, 1
	}
	return store, 0
}
