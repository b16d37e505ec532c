// Package command turns free-text instructions into ledger operations and applies them.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger is the subset of the store the interpreter needs.
type Ledger interface {
	Add(ctx context.Context, r ledger.Record) (string, error)
	Get(id string) (ledger.Record, bool)
	Update(ctx context.Context, id string, p ledger.Patch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(f ledger.Filter) []ledger.Record
}

// Tagger suggests labels for a description.
type Tagger interface {
	Suggest(ctx context.Context, description string, kind ledger.Kind) []string
}

// Config holds interpreter toggles.
type Config struct {
	// AutoTag fills in tags for ADDs without tags, and for UPDATEs that change the
	// description of an untagged record.
	AutoTag bool
}

// Parsed is the normalized model output for one instruction.
type Parsed struct {
	Operations []Operation              `json:"operations"`
	Warnings   []CoercionWarning        `json:"warnings,omitempty"`
	Raw        []map[string]interface{} `json:"-"`
}

// Failure reports an operation that could not be applied.
type Failure struct {
	Operation int    `json:"operation"`
	Type      OpType `json:"type"`
	Error     string `json:"error"`
}

// Result tallies the records touched by Apply.
type Result struct {
	Added    []string          `json:"added"`
	Updated  []string          `json:"updated"`
	Deleted  []string          `json:"deleted"`
	Warnings []CoercionWarning `json:"warnings,omitempty"`
	Failures []Failure         `json:"failures,omitempty"`
}

// PlanItem previews what one operation would touch.
type PlanItem struct {
	Operation int      `json:"operation"`
	Type      OpType   `json:"type"`
	Targets   []string `json:"targets,omitempty"`
	Count     int      `json:"count"`
}

// Interpreter parses instructions with a model and applies them to a Ledger.
type Interpreter struct {
	model  llm.Model
	store  Ledger
	tagger Tagger
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time
}

// New creates an Interpreter. tagger may be nil to disable auto-tagging.
func New(model llm.Model, store Ledger, tagger Tagger, cfg Config, log zerolog.Logger) *Interpreter {
	return &Interpreter{
		model:  model,
		store:  store,
		tagger: tagger,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Parse asks the model to translate text into operations and normalizes them.
func (i *Interpreter) Parse(ctx context.Context, text string) (*Parsed, error) {
	now := i.now()

	raw, err := i.model.Generate(ctx, llm.Request{
		System: []string{systemPrompt, fewShotPrompt, dateContext(now)},
		Prompt: text,
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}

	items, err := decodeOperations(raw)
	if err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}

	ops, warnings := Normalize(items, now)
	for _, w := range warnings {
		i.log.Warn().Int("operation", w.Operation).Str("field", w.Field).Str("input", w.Input).Str("applied", w.Applied).Msg("Coerced operation field")
	}
	i.log.Info().Int("operations", len(ops)).Int("warnings", len(warnings)).Msg("Instruction parsed")

	return &Parsed{Operations: ops, Warnings: warnings, Raw: items}, nil
}

// decodeOperations extracts the outermost JSON object and reads its operations list.
func decodeOperations(raw string) ([]map[string]interface{}, error) {
	body, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Operations []map[string]interface{} `json:"operations"`
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, &llm.ParseError{Raw: raw, Err: err}
	}
	return payload.Operations, nil
}

// Apply executes ops in order. Each operation is independent: a failure is
// recorded and the remaining operations still run.
func (i *Interpreter) Apply(ctx context.Context, ops []Operation) Result {
	res := Result{
		Added:   []string{},
		Updated: []string{},
		Deleted: []string{},
	}

	for _, op := range ops {
		var err error
		switch op.Type {
		case OpAdd:
			err = i.applyAdd(ctx, op, &res)
		case OpUpdate:
			err = i.applyUpdate(ctx, op, &res)
		case OpDelete:
			err = i.applyDelete(ctx, op, &res)
		default:
			err = fmt.Errorf("unknown operation type %q", op.Type)
		}
		if err != nil {
			i.log.Error().Err(err).Int("operation", op.Index).Str("type", string(op.Type)).Msg("Operation failed")
			res.Failures = append(res.Failures, Failure{Operation: op.Index, Type: op.Type, Error: err.Error()})
		}
	}

	i.log.Info().
		Int("added", len(res.Added)).
		Int("updated", len(res.Updated)).
		Int("deleted", len(res.Deleted)).
		Int("failed", len(res.Failures)).
		Msg("Operations applied")

	return res
}

// Execute parses text and applies the result.
func (i *Interpreter) Execute(ctx context.Context, text string) (*Parsed, Result, error) {
	parsed, err := i.Parse(ctx, text)
	if err != nil {
		return nil, Result{}, err
	}
	res := i.Apply(ctx, parsed.Operations)
	res.Warnings = parsed.Warnings
	return parsed, res, nil
}

// Plan resolves the targets of each operation against the current ledger without
// changing it. Targets are resolved independently, so an UPDATE that would match a
// record added earlier in the same list is not counted.
func (i *Interpreter) Plan(ops []Operation) []PlanItem {
	items := make([]PlanItem, 0, len(ops))
	for _, op := range ops {
		item := PlanItem{Operation: op.Index, Type: op.Type}
		switch op.Type {
		case OpAdd:
			item.Count = 1
		case OpUpdate, OpDelete:
			for _, r := range i.resolve(op) {
				item.Targets = append(item.Targets, r.ID)
			}
			item.Count = len(item.Targets)
		}
		items = append(items, item)
	}
	return items
}

func (i *Interpreter) applyAdd(ctx context.Context, op Operation, res *Result) error {
	rec := ledger.Record{
		ID:        uuid.New().String(),
		Amount:    decimal.Zero,
		Kind:      ledger.KindExpense,
		Timestamp: i.now(),
	}
	if op.Amount != nil {
		rec.Amount = *op.Amount
	}
	if op.Kind != nil {
		rec.Kind = *op.Kind
	}
	if op.Timestamp != nil {
		rec.Timestamp = *op.Timestamp
	}
	if op.Description != nil {
		rec.Description = *op.Description
	}
	if op.Recurring != nil {
		rec.Recurring = *op.Recurring
	}
	if op.Tags != nil {
		rec.Tags = append([]string{}, (*op.Tags)...)
	}

	if len(rec.Tags) == 0 && i.autoTag() {
		rec.Tags = i.tagger.Suggest(ctx, rec.Description, rec.Kind)
		rec.AutoLabeled = len(rec.Tags) > 0
	}

	id, err := i.store.Add(ctx, rec)
	if err != nil {
		return err
	}
	res.Added = append(res.Added, id)
	return nil
}

func (i *Interpreter) applyUpdate(ctx context.Context, op Operation, res *Result) error {
	for _, target := range i.resolve(op) {
		patch := op.patch()

		if op.Tags == nil && op.Description != nil && len(target.Tags) == 0 && i.autoTag() {
			kind := target.Kind
			if op.Kind != nil {
				kind = *op.Kind
			}
			if tags := i.tagger.Suggest(ctx, *op.Description, kind); len(tags) > 0 {
				autoLabeled := true
				patch.Tags = &tags
				patch.AutoLabeled = &autoLabeled
			}
		}

		if patch.IsEmpty() {
			continue
		}

		ok, err := i.store.Update(ctx, target.ID, patch)
		if err != nil {
			return err
		}
		if ok {
			res.Updated = append(res.Updated, target.ID)
		}
	}
	return nil
}

func (i *Interpreter) applyDelete(ctx context.Context, op Operation, res *Result) error {
	for _, target := range i.resolve(op) {
		ok, err := i.store.Delete(ctx, target.ID)
		if err != nil {
			return err
		}
		if ok {
			res.Deleted = append(res.Deleted, target.ID)
		}
	}
	return nil
}

// resolve returns the records an UPDATE or DELETE targets: the record named by id,
// or every record matching a non-empty filter.
func (i *Interpreter) resolve(op Operation) []ledger.Record {
	if op.ID != "" {
		if r, ok := i.store.Get(op.ID); ok {
			return []ledger.Record{r}
		}
		return nil
	}
	if op.Filter != nil && !op.Filter.IsEmpty() {
		return i.store.Search(op.Filter.LedgerFilter())
	}
	return nil
}

func (i *Interpreter) autoTag() bool {
	return i.cfg.AutoTag && i.tagger != nil
}

// patch builds the store patch from the fields present in op.
func (op Operation) patch() ledger.Patch {
	var p ledger.Patch
	p.Amount = op.Amount
	p.Kind = op.Kind
	p.Timestamp = op.Timestamp
	p.Description = op.Description
	p.Recurring = op.Recurring
	if op.Tags != nil {
		tags := append([]string{}, (*op.Tags)...)
		p.Tags = &tags
		autoLabeled := false
		p.AutoLabeled = &autoLabeled
	}
	return p
}
