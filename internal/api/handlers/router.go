package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/api/middleware"
	"github.com/dvloznov/ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// Deps wires the API handlers. Commands, Publisher and Jobs may be nil.
type Deps struct {
	Store     RecordStore
	Tagger    Tagger
	AutoTag   bool
	Commands  CommandRunner
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	Log       zerolog.Logger
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// NewRouter registers every endpoint and wraps the mux in the standard middleware.
func NewRouter(d Deps) http.Handler {
	records := NewRecordsHandler(d.Store, d.Tagger, d.AutoTag, d.Log)
	summary := NewSummaryHandler(d.Store, d.Log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			records.ListRecords(w, r)
		case http.MethodPost:
			records.CreateRecord(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/records/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/records/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Record ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			records.GetRecord(w, r, id)
		case http.MethodPatch, http.MethodPut:
			records.UpdateRecord(w, r, id)
		case http.MethodDelete:
			records.DeleteRecord(w, r, id)
		default:
			methodNotAllowed(w)
		}
	})

	for path, h := range map[string]http.HandlerFunc{
		"/api/summary/monthly": summary.Monthly,
		"/api/summary/tags":    summary.Tags,
		"/api/summary/totals":  summary.Totals,
	} {
		h := h
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h(w, r)
		})
	}

	if d.Tagger != nil {
		tags := NewTagsHandler(d.Tagger)
		mux.HandleFunc("/api/tags/suggest", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			tags.Suggest(w, r)
		})
	}

	if d.Commands != nil {
		commands := NewCommandsHandler(d.Commands, d.Publisher, d.Log)
		mux.HandleFunc("/api/commands", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			commands.RunCommand(w, r)
		})
	}

	if d.Jobs != nil {
		jobsHandler := NewJobsHandler(d.Jobs, d.Log)
		mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			jobsHandler.ListJobs(w, r)
		})
		mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		})
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"records": len(d.Store.List()),
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery(d.Log),
		middleware.Logger(d.Log),
		middleware.CORS,
	)
}
