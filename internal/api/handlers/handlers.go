package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/api/middleware"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RecordStore is the store surface the HTTP API uses.
type RecordStore interface {
	Add(ctx context.Context, r ledger.Record) (string, error)
	Get(id string) (ledger.Record, bool)
	List() []ledger.Record
	Update(ctx context.Context, id string, p ledger.Patch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(f ledger.Filter) []ledger.Record
}

// Tagger suggests labels for a description.
type Tagger interface {
	Suggest(ctx context.Context, description string, kind ledger.Kind) []string
}

// RecordsHandler handles record endpoints.
type RecordsHandler struct {
	store   RecordStore
	tagger  Tagger
	autoTag bool
	log     zerolog.Logger
}

// NewRecordsHandler creates a new records handler. tagger may be nil.
func NewRecordsHandler(store RecordStore, tagger Tagger, autoTag bool, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		store:   store,
		tagger:  tagger,
		autoTag: autoTag,
		log:     log,
	}
}

// ListRecords handles GET /api/records
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := h.store.Search(filter)
	if records == nil {
		records = []ledger.Record{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// CreateRecord handles POST /api/records
func (h *RecordsHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec ledger.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec.ID = ""
	if rec.Kind == "" {
		rec.Kind = ledger.KindExpense
	}
	if len(rec.Tags) == 0 && h.autoTag && h.tagger != nil {
		rec.Tags = h.tagger.Suggest(r.Context(), rec.Description, rec.Kind)
		rec.AutoLabeled = len(rec.Tags) > 0
	}

	id, err := h.store.Add(r.Context(), rec)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to add record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save record")
		return
	}

	created, _ := h.store.Get(id)
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// GetRecord handles GET /api/records/{id}
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := h.store.Get(id)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Record not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rec)
}

// patchRequest carries only the fields a client wants to change.
type patchRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Kind        *ledger.Kind     `json:"kind"`
	Timestamp   *string          `json:"timestamp"`
	Description *string          `json:"description"`
	Tags        *[]string        `json:"tags"`
	Recurring   *bool            `json:"recurring"`
}

func (p patchRequest) toPatch() (ledger.Patch, error) {
	patch := ledger.Patch{
		Amount:      p.Amount,
		Kind:        p.Kind,
		Description: p.Description,
		Tags:        p.Tags,
		Recurring:   p.Recurring,
	}
	if p.Timestamp != nil {
		ts, err := ledger.ParseTimestamp(*p.Timestamp)
		if err != nil {
			return ledger.Patch{}, fmt.Errorf("invalid timestamp %q", *p.Timestamp)
		}
		patch.Timestamp = &ts
	}
	if p.Tags != nil {
		manual := false
		patch.AutoLabeled = &manual
	}
	return patch, nil
}

// UpdateRecord handles PATCH /api/records/{id}
func (h *RecordsHandler) UpdateRecord(w http.ResponseWriter, r *http.Request, id string) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		h.log.Error().Err(err).Str("record_id", id).Msg("Failed to update record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save record")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Record not found")
		return
	}

	updated, _ := h.store.Get(id)
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteRecord handles DELETE /api/records/{id}
func (h *RecordsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request, id string) {
	ok, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("record_id", id).Msg("Failed to delete record")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save ledger")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseFilter reads start, end, kind, min, max, q and repeated tag parameters.
// A date-only end covers the whole day.
func parseFilter(query url.Values) (ledger.Filter, error) {
	var f ledger.Filter

	if s := query.Get("start"); s != "" {
		t, err := ledger.ParseTimestamp(s)
		if err != nil {
			return f, errors.New("invalid start, use YYYY-MM-DD or RFC3339")
		}
		f.Start = &t
	}
	if s := query.Get("end"); s != "" {
		t, err := ledger.ParseTimestamp(s)
		if err != nil {
			return f, errors.New("invalid end, use YYYY-MM-DD or RFC3339")
		}
		if len(s) == len(time.DateOnly) {
			_, t = ledger.DayRange(t)
		}
		f.End = &t
	}
	if s := query.Get("kind"); s != "" {
		f.Kind = ledger.Kind(strings.ToUpper(s))
	}
	for _, bound := range []struct {
		key  string
		dest **decimal.Decimal
	}{{"min", &f.MinAmount}, {"max", &f.MaxAmount}} {
		if s := query.Get(bound.key); s != "" {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return f, fmt.Errorf("invalid %s amount %q", bound.key, s)
			}
			*bound.dest = &d
		}
	}
	f.Description = query.Get("q")
	f.Tags = query["tag"]

	return f, nil
}
