package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/ledger/internal/api/middleware"
	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/jobs"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/rs/zerolog"
)

// CommandRunner parses, previews and applies natural-language instructions.
type CommandRunner interface {
	Parse(ctx context.Context, text string) (*command.Parsed, error)
	Plan(ops []command.Operation) []command.PlanItem
	Execute(ctx context.Context, text string) (*command.Parsed, command.Result, error)
}

// CommandsHandler handles instruction endpoints.
type CommandsHandler struct {
	runner    CommandRunner
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewCommandsHandler creates a new commands handler. publisher may be nil, which
// disables asynchronous execution.
func NewCommandsHandler(runner CommandRunner, publisher jobs.Publisher, log zerolog.Logger) *CommandsHandler {
	return &CommandsHandler{
		runner:    runner,
		publisher: publisher,
		log:       log,
	}
}

type commandRequest struct {
	Text   string `json:"text"`
	DryRun bool   `json:"dry_run"`
	Async  bool   `json:"async"`
}

// RunCommand handles POST /api/commands
func (h *CommandsHandler) RunCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()

	switch {
	case req.DryRun:
		parsed, err := h.runner.Parse(ctx, req.Text)
		if err != nil {
			h.writeCommandError(w, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"dry_run":    true,
			"operations": parsed.Operations,
			"warnings":   parsed.Warnings,
			"plan":       h.runner.Plan(parsed.Operations),
		})

	case req.Async:
		if h.publisher == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Asynchronous commands are not enabled")
			return
		}
		job := &jobs.CommandJob{Text: req.Text}
		if err := h.publisher.PublishCommand(ctx, job); err != nil {
			h.log.Error().Err(err).Msg("Failed to enqueue command job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue command")
			return
		}
		h.log.Info().Str("job_id", job.JobID).Msg("Command job enqueued")
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"job_id": job.JobID,
			"status": string(job.Status),
		})

	default:
		parsed, res, err := h.runner.Execute(ctx, req.Text)
		if err != nil {
			h.writeCommandError(w, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"operations": parsed.Operations,
			"result":     res,
		})
	}
}

// writeCommandError maps model failures to status codes.
func (h *CommandsHandler) writeCommandError(w http.ResponseWriter, err error) {
	var parseErr *llm.ParseError
	switch {
	case errors.Is(err, llm.ErrDisabled), errors.Is(err, llm.ErrNotConfigured):
		middleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &parseErr):
		h.log.Warn().Err(parseErr.Err).Str("raw", parseErr.Raw).Msg("Unparsable model response")
		middleware.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error":        "Model response could not be parsed",
			"raw_response": parseErr.Raw,
		})
	default:
		h.log.Error().Err(err).Msg("Command failed")
		middleware.WriteError(w, http.StatusBadGateway, "Model call failed")
	}
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
