package inmemory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/jobs"
)

// waitForStatus polls the store until the job reaches status or the deadline passes.
func waitForStatus(t *testing.T, store *Store, jobID string, status jobs.JobStatus) *jobs.CommandJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state: %+v", jobID, status, job)
	return nil
}

func startQueue(t *testing.T, handler jobs.JobHandler, opts ...QueueOption) (*Queue, *Store) {
	t.Helper()
	store := NewStore()
	opts = append([]QueueOption{WithBackoff(time.Millisecond)}, opts...)
	q := NewQueue(10, store, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = q.Stop(context.Background())
	})
	return q, store
}

func TestQueue_CompletesJob(t *testing.T) {
	q, store := startQueue(t, func(ctx context.Context, job *jobs.CommandJob) error {
		job.Result = &command.Result{Added: []string{"r1"}}
		return nil
	})

	job := &jobs.CommandJob{Text: "lunch 30"}
	if err := q.PublishCommand(context.Background(), job); err != nil {
		t.Fatalf("PublishCommand: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || !reflect.DeepEqual(done.Result.Added, []string{"r1"}) {
		t.Errorf("result = %+v", done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}
}

func TestQueue_WorkersDoNotWriteCallerJob(t *testing.T) {
	q, store := startQueue(t, func(ctx context.Context, job *jobs.CommandJob) error {
		job.Result = &command.Result{Added: []string{"r1"}}
		return nil
	})

	job := &jobs.CommandJob{Text: "lunch 30"}
	if err := q.PublishCommand(context.Background(), job); err != nil {
		t.Fatalf("PublishCommand: %v", err)
	}
	waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)

	if job.Status != jobs.JobStatusPending || job.StartedAt != nil || job.Result != nil {
		t.Errorf("caller's job was modified by a worker: %+v", job)
	}
}

func TestQueue_RetryPolicy(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		permanent   bool
		wantStatus  jobs.JobStatus
		wantRetries int
		wantCalls   int
	}{
		{name: "transient failure recovers", failures: 1, wantStatus: jobs.JobStatusCompleted, wantRetries: 1, wantCalls: 2},
		{name: "retries exhausted", failures: 10, wantStatus: jobs.JobStatusFailed, wantRetries: 2, wantCalls: 3},
		{name: "permanent failure not retried", failures: 10, permanent: true, wantStatus: jobs.JobStatusFailed, wantRetries: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			calls := 0
			q, store := startQueue(t, func(ctx context.Context, job *jobs.CommandJob) error {
				mu.Lock()
				defer mu.Unlock()
				calls++
				if calls <= tt.failures {
					err := errors.New("model unavailable")
					if tt.permanent {
						return jobs.Permanent(err)
					}
					return err
				}
				return nil
			})

			job := &jobs.CommandJob{Text: "x", MaxRetries: 2}
			if err := q.PublishCommand(context.Background(), job); err != nil {
				t.Fatalf("PublishCommand: %v", err)
			}

			got := waitForStatus(t, store, job.JobID, tt.wantStatus)
			if got.RetryCount != tt.wantRetries {
				t.Errorf("RetryCount = %d, want %d", got.RetryCount, tt.wantRetries)
			}
			mu.Lock()
			if calls != tt.wantCalls {
				t.Errorf("handler called %d times, want %d", calls, tt.wantCalls)
			}
			mu.Unlock()
			if tt.wantStatus == jobs.JobStatusFailed && got.Error != "model unavailable" {
				t.Errorf("Error = %q", got.Error)
			}
		})
	}
}

func TestQueue_SingleWorkerKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q, store := startQueue(t, func(ctx context.Context, job *jobs.CommandJob) error {
		mu.Lock()
		seen = append(seen, job.Text)
		mu.Unlock()
		return nil
	}, WithWorkers(1))

	var last string
	for _, text := range []string{"a", "b", "c", "d"} {
		job := &jobs.CommandJob{Text: text}
		if err := q.PublishCommand(context.Background(), job); err != nil {
			t.Fatalf("PublishCommand: %v", err)
		}
		last = job.JobID
	}
	waitForStatus(t, store, last, jobs.JobStatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(seen, []string{"a", "b", "c", "d"}) {
		t.Errorf("processed in order %v", seen)
	}
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := q.PublishCommand(context.Background(), &jobs.CommandJob{Text: "x"}); err == nil {
		t.Error("expected error publishing to a stopped queue")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
