package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"crawlops/pkg/config"
	"crawlops/pkg/fetch"
	"crawlops/pkg/storage"
)

const (
	serverName    = "crawlops"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig *config.AppConfig
	Store     storage.Store
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server exposes crawl orchestration, session management, and report
// retrieval as MCP tools.
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	browser    *fetch.BrowserStrategy
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	var browser *fetch.BrowserStrategy
	if !cfg.AppConfig.DisableBrowser {
		browser = fetch.NewBrowserStrategy(cfg.AppConfig, cfg.Logger)
	}

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
		browser:   browser,
	}
	if browser != nil {
		s.jobManager = NewJobManager(cfg.AppConfig, cfg.Store, browser, cfg.Logger)
	} else {
		s.jobManager = NewJobManager(cfg.AppConfig, cfg.Store, nil, cfg.Logger)
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	startCrawlTool := mcp.NewTool("start_crawl",
		mcp.WithDescription("Start a bounded breadth-first crawl from a seed URL. Returns immediately with a job ID."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Seed URL to crawl (http or https)"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum link depth from the seed (default: 2)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of pages to fetch (default: 100)"),
		),
		mcp.WithString("scope",
			mcp.Description("Domain scope: 'default' (registrable domain), 'host_only', or 'subdomains'"),
		),
		mcp.WithArray("include_patterns",
			mcp.Description("Regex patterns a URL must match to be crawled"),
		),
		mcp.WithArray("exclude_patterns",
			mcp.Description("Regex patterns that exclude a URL from the crawl"),
		),
		mcp.WithBoolean("respect_robots_txt",
			mcp.Description("Honor robots.txt rules (default: true)"),
		),
		mcp.WithBoolean("ignore_robots",
			mcp.Description("Force robots.txt off, overriding respect_robots_txt"),
		),
		mcp.WithNumber("delay_seconds",
			mcp.Description("Per-host politeness delay between requests (default: 1.0)"),
		),
		mcp.WithString("auth_type",
			mcp.Description("Authentication: 'none', 'bearer', 'basic', or 'custom'"),
		),
		mcp.WithString("auth_token",
			mcp.Description("Token for bearer/custom auth"),
		),
		mcp.WithString("auth_username",
			mcp.Description("Username for basic auth"),
		),
		mcp.WithString("auth_password",
			mcp.Description("Password for basic auth"),
		),
		mcp.WithObject("custom_headers",
			mcp.Description("Extra request headers, applied after auth headers"),
		),
		mcp.WithString("user_agent_suffix",
			mcp.Description("Appended to the User-Agent header"),
		),
		mcp.WithString("session_domain",
			mcp.Description("Use the saved session stored for this domain"),
		),
		mcp.WithBoolean("seed_from_sitemap",
			mcp.Description("Also enqueue URLs advertised by robots.txt sitemaps"),
		),
		mcp.WithBoolean("crawl_pdf_links",
			mcp.Description("Follow links to PDF files and extract their text and links"),
		),
		mcp.WithArray("export_formats",
			mcp.Description("Artifacts to write when the crawl finishes: json, markdown, html, text"),
		),
	)
	s.mcpServer.AddTool(startCrawlTool, s.handleStartCrawl)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_crawl"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	stopCrawlTool := mcp.NewTool("stop_crawl",
		mcp.WithDescription("Stop a running crawl job. Pages fetched so far are kept."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_crawl"),
		),
	)
	s.mcpServer.AddTool(stopCrawlTool, s.handleStopCrawl)

	getPageTool := mcp.NewTool("get_page",
		mcp.WithDescription("Fetch a single URL and return its extracted content as markdown"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to fetch"),
		),
	)
	s.mcpServer.AddTool(getPageTool, s.handleGetPage)

	saveSessionTool := mcp.NewTool("save_session",
		mcp.WithDescription("Save authentication state (cookies, tokens, user agent) for a domain"),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Domain the session applies to"),
		),
		mcp.WithString("name",
			mcp.Description("Session name, for keeping several per domain (default: 'default')"),
		),
		mcp.WithObject("cookies",
			mcp.Description("Cookie name/value pairs"),
		),
		mcp.WithObject("tokens",
			mcp.Description("Token name/value pairs, applied as request headers"),
		),
		mcp.WithString("user_agent",
			mcp.Description("User-Agent to use with this session"),
		),
		mcp.WithNumber("expires_in_hours",
			mcp.Description("Hours until the session expires (default: never)"),
		),
		mcp.WithString("notes",
			mcp.Description("Free-form notes"),
		),
	)
	s.mcpServer.AddTool(saveSessionTool, s.handleSaveSession)

	listSessionsTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List saved sessions across all domains (values are not returned)"),
	)
	s.mcpServer.AddTool(listSessionsTool, s.handleListSessions)

	deleteSessionTool := mcp.NewTool("delete_session",
		mcp.WithDescription("Delete all saved sessions for a domain"),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Domain whose sessions should be removed"),
		),
	)
	s.mcpServer.AddTool(deleteSessionTool, s.handleDeleteSession)

	getReportTool := mcp.NewTool("get_report",
		mcp.WithDescription("Get a stored crawl report by run ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The run ID (same as the job ID)"),
		),
		mcp.WithBoolean("include_pages",
			mcp.Description("Include the full per-page results and combined views (default: false)"),
		),
	)
	s.mcpServer.AddTool(getReportTool, s.handleGetReport)

	listReportsTool := mcp.NewTool("list_reports",
		mcp.WithDescription("List stored crawl reports, most recent first"),
	)
	s.mcpServer.AddTool(listReportsTool, s.handleListReports)

	deleteReportTool := mcp.NewTool("delete_report",
		mcp.WithDescription("Delete a stored crawl report"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The run ID of the report to delete"),
		),
	)
	s.mcpServer.AddTool(deleteReportTool, s.handleDeleteReport)

	s.log.Infof("Registered %d MCP tools", 10)
}

// Run starts the MCP server with the configured transport, and the job
// manager's background maintenance.
func (s *Server) Run(ctx context.Context) error {
	go s.jobManager.RunEviction(ctx)

	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	if s.browser != nil {
		s.browser.Close()
	}
	return nil
}
