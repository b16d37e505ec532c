package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/ledger/internal/events"
	infraBQ "github.com/dvloznov/ledger/internal/infra/bigquery"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type memPersister struct {
	records []ledger.Record
	err     error
}

func (p *memPersister) Load(ctx context.Context) ([]ledger.Record, error) { return p.records, p.err }

func (p *memPersister) Save(ctx context.Context, records []ledger.Record) error {
	p.records = records
	return nil
}

// MockNotionService serves an empty database and records created pages.
type MockNotionService struct {
	CreateErr error
	created   int
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.created++
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("page-%d", m.created))}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (m *MockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	return nil
}

// MockExporter is a mock implementation of Exporter.
type MockExporter struct {
	ExportFunc func(ctx context.Context, records []ledger.Record) (infraBQ.ExportResult, error)
	calls      chan []ledger.Record
}

func (m *MockExporter) Export(ctx context.Context, records []ledger.Record) (infraBQ.ExportResult, error) {
	if m.calls != nil {
		m.calls <- records
	}
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, records)
	}
	return infraBQ.ExportResult{Exported: len(records)}, nil
}

func testRecords() []ledger.Record {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []ledger.Record{
		{ID: "r1", Amount: decimal.NewFromInt(12), Kind: ledger.KindExpense, Timestamp: at, Description: "lunch"},
		{ID: "r2", Amount: decimal.NewFromInt(2000), Kind: ledger.KindIncome, Timestamp: at, Description: "salary"},
	}
}

func TestSync_AllTargets(t *testing.T) {
	notion := &MockNotionService{}
	exporter := &MockExporter{calls: make(chan []ledger.Record, 1)}
	m := New(&memPersister{records: testRecords()}, zerolog.New(io.Discard),
		WithNotion(notion, "db"),
		WithExporter(exporter),
	)

	if !m.Enabled() {
		t.Fatal("expected mirror to be enabled")
	}
	if err := m.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if notion.created != 2 {
		t.Errorf("created %d Notion pages, want 2", notion.created)
	}
	if got := <-exporter.calls; len(got) != 2 {
		t.Errorf("exported %d records, want 2", len(got))
	}
}

func TestSync_FailingTargetDoesNotStopOthers(t *testing.T) {
	notion := &MockNotionService{CreateErr: errors.New("rate limited")}
	exporter := &MockExporter{calls: make(chan []ledger.Record, 1)}
	m := New(&memPersister{records: testRecords()}, zerolog.New(io.Discard),
		WithNotion(notion, "db"),
		WithExporter(exporter),
	)

	err := m.Sync(context.Background())
	if err == nil || !strings.Contains(err.Error(), "notion") {
		t.Fatalf("Sync() error = %v, want notion failure", err)
	}
	select {
	case <-exporter.calls:
	default:
		t.Error("exporter was not called")
	}
}

func TestSync_LoadError(t *testing.T) {
	exporter := &MockExporter{}
	m := New(&memPersister{err: errors.New("disk gone")}, zerolog.New(io.Discard), WithExporter(exporter))

	if err := m.Sync(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}

func TestEnabled_NoTargets(t *testing.T) {
	if New(&memPersister{}, zerolog.New(io.Discard)).Enabled() {
		t.Error("mirror without targets should be disabled")
	}
}

func TestRun_SyncsAfterEvents(t *testing.T) {
	exporter := &MockExporter{calls: make(chan []ledger.Record, 4)}
	m := New(&memPersister{records: testRecords()}, zerolog.New(io.Discard),
		WithExporter(exporter),
		WithDebounce(10*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Hour) }()

	msg := &events.RecordMessage{Event: "record.added", RecordID: "r1"}
	for i := 0; i < 3; i++ {
		if err := m.HandleRecordEvent(ctx, msg); err != nil {
			t.Fatalf("HandleRecordEvent() error = %v", err)
		}
	}

	select {
	case got := <-exporter.calls:
		if len(got) != 2 {
			t.Errorf("exported %d records, want 2", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sync after events")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
