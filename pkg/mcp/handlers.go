package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"crawlops/pkg/config"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// handleStartCrawl handles the start_crawl tool
func (s *Server) handleStartCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var policy config.CrawlPolicy
	if err := request.BindArguments(&policy); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if policy.URL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	job, err := s.jobManager.StartJob(&policy)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start crawl: %v", err)), nil
	}

	result := map[string]interface{}{
		"status":     "started",
		"message":    "Crawl started successfully",
		"job_id":     job.ID,
		"url":        policy.URL,
		"max_depth":  policy.DepthLimit(),
		"max_pages":  policy.MaxPages,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	snapshot := job.Status()
	result := map[string]interface{}{
		"job_id":        job.ID,
		"url":           job.SeedURL,
		"status":        snapshot.State.String(),
		"pages_crawled": snapshot.PagesCrawled,
		"pages_failed":  snapshot.PagesFailed,
		"queue_size":    snapshot.QueueSize,
		"started_at":    job.StartedAt.Format(time.RFC3339),
	}
	if snapshot.CurrentURL != "" {
		result["current_url"] = snapshot.CurrentURL
		result["current_depth"] = snapshot.CurrentDepth
	}
	if snapshot.Error != "" {
		result["error"] = snapshot.Error
	}

	completedAt, errorMessage, exportPaths := job.Result()
	if !completedAt.IsZero() {
		result["completed_at"] = completedAt.Format(time.RFC3339)
		result["duration_seconds"] = completedAt.Sub(job.StartedAt).Seconds()
		if snapshot.State == models.CrawlStateCompleted || snapshot.State == models.CrawlStateStopped {
			result["report_id"] = job.ID
		}
	}
	if errorMessage != "" {
		result["error_message"] = errorMessage
	}
	if len(exportPaths) > 0 {
		result["export_paths"] = exportPaths
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStopCrawl handles the stop_crawl tool
func (s *Server) handleStopCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	stopped := s.jobManager.StopJob(jobID)
	result := map[string]interface{}{
		"job_id":  jobID,
		"stopped": stopped,
	}
	if !stopped {
		result["message"] = "Job already finished"
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetPage handles the get_page tool. The single-page fetch goes
// through the same strategy pipeline as a crawl, browser first when
// available.
func (s *Server) handleGetPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	startTime := time.Now()

	page, err := s.jobManager.runner.FetchPage(ctx, urlStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch URL: %v", err)), nil
	}

	result := map[string]interface{}{
		"url":           page.URL,
		"title":         page.Title,
		"content":       page.Markdown,
		"word_count":    page.WordCount,
		"links":         page.Links,
		"method":        page.Method.String(),
		"status_code":   page.StatusCode,
		"fetch_time_ms": time.Since(startTime).Milliseconds(),
	}
	if page.TokenCount > 0 {
		result["token_count"] = page.TokenCount
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// sessionArgs mirrors the save_session tool arguments
type sessionArgs struct {
	Domain         string            `json:"domain"`
	Name           string            `json:"name,omitempty"`
	Cookies        map[string]string `json:"cookies,omitempty"`
	Tokens         map[string]string `json:"tokens,omitempty"`
	UserAgent      string            `json:"user_agent,omitempty"`
	ExpiresInHours float64           `json:"expires_in_hours,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

// handleSaveSession handles the save_session tool
func (s *Server) handleSaveSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args sessionArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Domain == "" {
		return mcp.NewToolResultError("domain parameter is required"), nil
	}

	session := &models.Session{
		Domain:    args.Domain,
		Name:      args.Name,
		Cookies:   args.Cookies,
		Tokens:    args.Tokens,
		UserAgent: args.UserAgent,
		Notes:     args.Notes,
	}
	if args.ExpiresInHours > 0 {
		session.ExpiresAt = time.Now().UTC().Add(time.Duration(args.ExpiresInHours * float64(time.Hour)))
	}

	if err := s.cfg.Store.SaveSession(session); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save session: %v", err)), nil
	}

	result := map[string]interface{}{
		"status": "saved",
		"domain": session.Domain,
		"name":   sessionName(session),
	}
	if !session.ExpiresAt.IsZero() {
		result["expires_at"] = session.ExpiresAt.Format(time.RFC3339)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListSessions handles the list_sessions tool. Cookie and token
// values stay in the store; only counts are reported.
func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.cfg.Store.ListSessions()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}

	now := time.Now().UTC()
	items := make([]map[string]interface{}, 0, len(sessions))
	for i := range sessions {
		session := &sessions[i]
		item := map[string]interface{}{
			"domain":       session.Domain,
			"name":         sessionName(session),
			"cookie_count": len(session.Cookies),
			"token_count":  len(session.Tokens),
			"updated_at":   session.UpdatedAt.Format(time.RFC3339),
			"expired":      session.Expired(now),
		}
		if session.UserAgent != "" {
			item["user_agent"] = session.UserAgent
		}
		if !session.ExpiresAt.IsZero() {
			item["expires_at"] = session.ExpiresAt.Format(time.RFC3339)
		}
		if session.Notes != "" {
			item["notes"] = session.Notes
		}
		items = append(items, item)
	}

	result := map[string]interface{}{
		"sessions":       items,
		"total_sessions": len(items),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleDeleteSession handles the delete_session tool
func (s *Server) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := request.GetString("domain", "")
	if domain == "" {
		return mcp.NewToolResultError("domain parameter is required"), nil
	}

	deleted, err := s.cfg.Store.DeleteSession(domain)
	if err != nil {
		if errors.Is(err, utils.ErrSessionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no sessions stored for '%s'", domain)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete sessions: %v", err)), nil
	}

	result := map[string]interface{}{
		"status":  "deleted",
		"domain":  domain,
		"deleted": deleted,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetReport handles the get_report tool
func (s *Server) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	includePages := request.GetBool("include_pages", false)

	report, err := s.cfg.Store.GetReport(id)
	if err != nil {
		if errors.Is(err, utils.ErrReportNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("report '%s' not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load report: %v", err)), nil
	}

	if !includePages {
		report.Pages = nil
		report.CombinedText = ""
		report.CombinedMarkdown = ""
		report.CombinedHTML = ""
	}

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// handleListReports handles the list_reports tool
func (s *Server) handleListReports(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reports, err := s.cfg.Store.ListReports()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reports: %v", err)), nil
	}

	items := make([]map[string]interface{}, 0, len(reports))
	for _, report := range reports {
		items = append(items, map[string]interface{}{
			"id":               report.ID,
			"seed_url":         report.SeedURL,
			"success":          report.Success,
			"total_pages":      report.Summary.TotalPages,
			"successful_pages": report.Summary.SuccessfulPages,
			"finished_at":      report.FinishedAt.Format(time.RFC3339),
		})
	}

	result := map[string]interface{}{
		"reports":       items,
		"total_reports": len(items),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleDeleteReport handles the delete_report tool
func (s *Server) handleDeleteReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	if err := s.cfg.Store.DeleteReport(id); err != nil {
		if errors.Is(err, utils.ErrReportNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("report '%s' not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete report: %v", err)), nil
	}

	result := map[string]interface{}{
		"status": "deleted",
		"id":     id,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

func sessionName(session *models.Session) string {
	if session.Name == "" {
		return "default"
	}
	return session.Name
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
