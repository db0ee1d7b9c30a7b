package worker

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetricsWith(t *testing.T) {
	m := NewWorkerMetricsWith(prometheus.NewRegistry())

	if m.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}
	if m.JobRunsTotal == nil || m.JobDurationSeconds == nil || m.LastSuccessTimestamp == nil {
		t.Error("job metrics not initialized")
	}
	if m.ArticlesIngestedTotal == nil || m.ArticlesDeletedTotal == nil {
		t.Error("article counters not initialized")
	}
	if m.CleanupSkippedTotal == nil {
		t.Error("cleanup skipped counter not initialized")
	}
}

func TestWorkerMetrics_RecordJobRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetricsWith(reg)

	m.RecordJobRun(JobFetch, true, 1.5)
	m.RecordJobRun(JobFetch, true, 2.5)
	m.RecordJobRun(JobFetch, false, 0.5)
	m.RecordJobRun(JobCleanup, false, 0.1)

	if got := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(JobFetch, "success")); got != 2 {
		t.Errorf("expected fetch success count 2, got %f", got)
	}
	if got := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(JobFetch, "failure")); got != 1 {
		t.Errorf("expected fetch failure count 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(JobCleanup, "failure")); got != 1 {
		t.Errorf("expected cleanup failure count 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.LastSuccessTimestamp.WithLabelValues(JobFetch)); got <= 0 {
		t.Errorf("expected fetch last success to be set, got %f", got)
	}
	if got := testutil.ToFloat64(m.LastSuccessTimestamp.WithLabelValues(JobCleanup)); got != 0 {
		t.Errorf("expected cleanup last success unset, got %f", got)
	}
	if n := testutil.CollectAndCount(m.JobDurationSeconds); n != 2 {
		t.Errorf("expected 2 duration series, got %d", n)
	}
}

func TestWorkerMetrics_ArticleCounters(t *testing.T) {
	m := NewWorkerMetricsWith(prometheus.NewRegistry())

	m.RecordArticlesIngested(5)
	m.RecordArticlesIngested(0)
	m.RecordArticlesDeleted(7)

	if got := testutil.ToFloat64(m.ArticlesIngestedTotal); got != 5 {
		t.Errorf("expected 5 ingested, got %f", got)
	}
	if got := testutil.ToFloat64(m.ArticlesDeletedTotal); got != 7 {
		t.Errorf("expected 7 deleted, got %f", got)
	}
}

func TestWorkerMetrics_ConcurrentAccess(t *testing.T) {
	m := NewWorkerMetricsWith(prometheus.NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordJobRun(JobFetch, true, 0.2)
			m.RecordArticlesIngested(1)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(JobFetch, "success")); got != 50 {
		t.Errorf("expected 50 runs, got %f", got)
	}
	if got := testutil.ToFloat64(m.ArticlesIngestedTotal); got != 50 {
		t.Errorf("expected 50 ingested, got %f", got)
	}
}
