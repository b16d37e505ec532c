package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dvloznov/ledger/internal/analytics"
	"github.com/dvloznov/ledger/internal/api/middleware"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/rs/zerolog"
)

// Lister returns a snapshot of all records.
type Lister interface {
	List() []ledger.Record
}

// SummaryHandler serves the analytics endpoints.
type SummaryHandler struct {
	records Lister
	log     zerolog.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(records Lister, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{records: records, log: log}
}

// window reads start, end and kind query parameters.
func (h *SummaryHandler) window(w http.ResponseWriter, r *http.Request) ([]ledger.Record, bool) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return analytics.Filter(h.records.List(), analytics.Window{Start: f.Start, End: f.End, Kind: f.Kind}), true
}

// Monthly handles GET /api/summary/monthly
func (h *SummaryHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	records, ok := h.window(w, r)
	if !ok {
		return
	}
	months := analytics.Monthly(records)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"months": months,
		"count":  len(months),
	})
}

// Tags handles GET /api/summary/tags
func (h *SummaryHandler) Tags(w http.ResponseWriter, r *http.Request) {
	records, ok := h.window(w, r)
	if !ok {
		return
	}
	tags := analytics.Tags(records)
	if tags == nil {
		tags = []analytics.TagSummary{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tags":  tags,
		"count": len(tags),
	})
}

// Totals handles GET /api/summary/totals
func (h *SummaryHandler) Totals(w http.ResponseWriter, r *http.Request) {
	records, ok := h.window(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, analytics.Total(records))
}

// TagsHandler serves tag suggestions.
type TagsHandler struct {
	tagger Tagger
}

// NewTagsHandler creates a new tags handler.
func NewTagsHandler(tagger Tagger) *TagsHandler {
	return &TagsHandler{tagger: tagger}
}

// Suggest handles POST /api/tags/suggest
func (h *TagsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		Kind        string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tags := h.tagger.Suggest(r.Context(), req.Description, ledger.Kind(strings.ToUpper(req.Kind)))
	if tags == nil {
		tags = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}
