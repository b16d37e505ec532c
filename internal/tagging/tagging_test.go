package tagging

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/rs/zerolog"
)

// MockModel is a mock implementation of llm.Model for testing.
type MockModel struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
	calls        int
}

func (m *MockModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.calls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

func TestSuggest_Rules(t *testing.T) {
	s := New(Config{}, nil, zerolog.New(io.Discard))

	tests := []struct {
		name        string
		description string
		kind        ledger.Kind
		want        []string
	}{
		{name: "takeout is food", description: "ordered takeout", want: []string{"food"}},
		{name: "case-insensitive", description: "STARBUCKS latte", want: []string{"food"}},
		{name: "chinese keyword", description: "滴滴打车回家", want: []string{"transport"}},
		{name: "one label per category", description: "午餐 外卖 咖啡", want: []string{"food"}},
		{name: "table order kept", description: "地铁 then 午餐", want: []string{"food", "transport"}},
		{name: "empty income gets default", description: "", kind: ledger.KindIncome, want: []string{IncomeLabel}},
		{name: "unmatched income gets default", description: "gift from aunt", kind: ledger.KindIncome, want: []string{IncomeLabel}},
		{name: "matched income keeps rule", description: "兼职 translation", kind: ledger.KindIncome, want: []string{"side-job"}},
		{name: "unmatched expense", description: "misc", kind: ledger.KindExpense, want: nil},
		{name: "empty no kind", description: "", want: nil},
		{
			name:        "capped at three",
			description: "rent, electricity, taxi, gym and lunch",
			want:        []string{"food", "housing", "utilities"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Suggest(context.Background(), tt.description, tt.kind)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Suggest(%q, %q) = %v, want %v", tt.description, tt.kind, got, tt.want)
			}
		})
	}
}

func TestSuggest_ModelAugments(t *testing.T) {
	model := &MockModel{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "food，coffee, treats,  ,extra", nil
		},
	}
	s := New(Config{UseModel: true}, model, zerolog.New(io.Discard))

	got := s.Suggest(context.Background(), "星巴克", ledger.KindExpense)
	want := []string{"food", "coffee", "treats"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest = %v, want %v", got, want)
	}
}

func TestSuggest_ModelFailureFallsBack(t *testing.T) {
	model := &MockModel{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	s := New(Config{UseModel: true}, model, zerolog.New(io.Discard))

	got := s.Suggest(context.Background(), "房租", ledger.KindExpense)
	if !reflect.DeepEqual(got, []string{"housing"}) {
		t.Errorf("Suggest = %v, want [housing]", got)
	}
	if model.calls != 1 {
		t.Errorf("model called %d times, want 1", model.calls)
	}
}

func TestSuggest_ModelOffByDefault(t *testing.T) {
	model := &MockModel{}
	s := New(Config{}, model, zerolog.New(io.Discard))

	s.Suggest(context.Background(), "anything", "")
	if model.calls != 0 {
		t.Errorf("model called %d times with UseModel off", model.calls)
	}
}

func TestSplitLabels(t *testing.T) {
	got := SplitLabels(" 餐饮，交通 , shopping\nmisc ")
	want := []string{"餐饮", "交通", "shopping", "misc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitLabels = %v, want %v", got, want)
	}
}
