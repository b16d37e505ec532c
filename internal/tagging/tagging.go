// Package tagging suggests category labels for a transaction description.
package tagging

import (
	"context"
	"strings"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/rs/zerolog"
)

const (
	// MaxTags caps the number of suggested labels.
	MaxTags = 3
	// IncomeLabel is suggested for income that matches no rule.
	IncomeLabel = "income"
)

// Rule maps a label to the keywords that trigger it.
type Rule struct {
	Label    string
	Keywords []string
}

// DefaultRules is checked in order; earlier labels come first in suggestions.
var DefaultRules = []Rule{
	{Label: "food", Keywords: []string{"餐", "午餐", "晚餐", "早餐", "饭", "外卖", "美团", "饿了么", "奶茶", "咖啡", "星巴克",
		"takeout", "take-out", "lunch", "dinner", "breakfast", "meal", "restaurant", "coffee", "starbucks", "milk tea"}},
	{Label: "housing", Keywords: []string{"房租", "租金", "rent", "landlord"}},
	{Label: "utilities", Keywords: []string{"水电", "电费", "水费", "燃气", "煤气", "electricity", "water bill", "gas bill", "utility"}},
	{Label: "transport", Keywords: []string{"地铁", "公交", "打车", "滴滴", "网约车", "高铁", "火车", "机票",
		"subway", "metro", "bus fare", "taxi", "uber", "didi", "train", "flight"}},
	{Label: "shopping", Keywords: []string{"购物", "京东", "淘宝", "拼多多", "shopping", "amazon", "taobao"}},
	{Label: "fitness", Keywords: []string{"健身", "运动", "gym", "fitness", "workout"}},
	{Label: "medical", Keywords: []string{"医院", "药", "hospital", "pharmacy", "medicine", "clinic", "doctor"}},
	{Label: "salary", Keywords: []string{"工资", "薪资", "薪水", "发薪", "salary", "payroll", "wage"}},
	{Label: "side-job", Keywords: []string{"兼职", "外快", "side job", "freelance", "part-time"}},
}

const suggestPrompt = "You label personal finance transactions.\n" +
	"Reply with at most 3 short category labels for the description, separated by commas.\n" +
	"Reply with the labels only, no explanation."

// Config toggles the optional model step.
type Config struct {
	UseModel bool
}

// Suggester suggests tags from ordered keyword rules, optionally augmented by a model.
type Suggester struct {
	rules []Rule
	cfg   Config
	model llm.Model
	log   zerolog.Logger
}

// New creates a Suggester with DefaultRules. model may be nil when cfg.UseModel is false.
func New(cfg Config, model llm.Model, log zerolog.Logger) *Suggester {
	return NewWithRules(DefaultRules, cfg, model, log)
}

// NewWithRules creates a Suggester with a custom rule table.
func NewWithRules(rules []Rule, cfg Config, model llm.Model, log zerolog.Logger) *Suggester {
	return &Suggester{
		rules: rules,
		cfg:   cfg,
		model: model,
		log:   log,
	}
}

// Suggest returns at most MaxTags labels for description. kind may be empty.
// Model failures are logged and never returned.
func (s *Suggester) Suggest(ctx context.Context, description string, kind ledger.Kind) []string {
	tags := s.matchRules(description)

	if len(tags) == 0 && kind == ledger.KindIncome {
		tags = append(tags, IncomeLabel)
	}

	if s.cfg.UseModel && s.model != nil && strings.TrimSpace(description) != "" {
		for _, label := range s.suggestWithModel(ctx, description) {
			if !contains(tags, label) {
				tags = append(tags, label)
			}
		}
	}

	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	return tags
}

func (s *Suggester) matchRules(description string) []string {
	text := strings.ToLower(description)
	if text == "" {
		return nil
	}

	var tags []string
	for _, rule := range s.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				tags = append(tags, rule.Label)
				break
			}
		}
	}
	return tags
}

func (s *Suggester) suggestWithModel(ctx context.Context, description string) []string {
	reply, err := s.model.Generate(ctx, llm.Request{
		System: []string{suggestPrompt},
		Prompt: description,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Model tag suggestion failed, using rule-based tags")
		return nil
	}
	return SplitLabels(reply)
}

// SplitLabels splits a model reply on ASCII and full-width commas.
func SplitLabels(reply string) []string {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '，' || r == '\n'
	})

	var out []string
	for _, f := range fields {
		if label := strings.TrimSpace(f); label != "" {
			out = append(out, label)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
