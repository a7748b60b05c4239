package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"crawlops/pkg/config"
	"crawlops/pkg/extract"
	"crawlops/pkg/mcp"
	"crawlops/pkg/storage"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: crawlops mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport (for Claude Desktop)
  crawlops mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  crawlops mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  start_crawl     Start a background crawl from a seed URL
  get_job_status  Poll a running crawl job
  stop_crawl      Stop a running crawl, keeping pages fetched so far
  get_page        Fetch a single URL as markdown
  save_session    Save authentication state for a domain
  list_sessions   List saved sessions
  delete_session  Delete sessions for a domain
  get_report      Get a stored crawl report
  list_reports    List stored crawl reports
  delete_report   Delete a stored crawl report
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doMcpServer(*configFile, *transport, *port, *logLevel, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, transport string, port int, logLevel string, stdout, stderr io.Writer) int {
	// MCP protocol uses stdout, logs go to stderr
	log := logrus.New()
	log.SetOutput(stderr)
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", logLevel)
		return 1
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	appCfg, warnings, err := config.LoadAppConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	if appCfg.EnableTokenCounting {
		if err := extract.InitTokenizer(""); err != nil {
			log.Warnf("Token counting disabled: %v", err)
			appCfg.EnableTokenCounting = false
		}
	}

	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "store"))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening state store: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go store.RunGC(ctx, 10*time.Minute)

	serverCfg := &mcp.ServerConfig{
		AppConfig: appCfg,
		Store:     store,
		Transport: transport,
		Port:      port,
		Logger:    log,
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
		cancel()
	}()

	log.Infof("Starting MCP server (transport: %s)", transport)

	if err := server.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}

	return 0
}
