package metrics

import "time"

// RecordCycle records the result and duration of one fetch cycle.
func RecordCycle(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	IngestCyclesTotal.WithLabelValues(status).Inc()
	IngestCycleDuration.Observe(duration.Seconds())
}

// RecordRecord records what happened to a single raw record.
func RecordRecord(outcome string) {
	IngestRecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordIngestError records a per-item failure at the given stage.
func RecordIngestError(stage string) {
	IngestErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordSearchResults records how many records a term returned.
func RecordSearchResults(term string, count int) {
	SearchResultsTotal.WithLabelValues(term).Add(float64(count))
}

// RecordEnrichment records the result of an enrichment call.
func RecordEnrichment(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	EnrichmentsTotal.WithLabelValues(status).Inc()
	EnrichmentDuration.Observe(duration.Seconds())
}

// RecordRetention records articles removed by a sweep policy.
func RecordRetention(policy string, deleted int64) {
	RetentionDeletedTotal.WithLabelValues(policy).Add(float64(deleted))
}

// RecordSweepDuration records the duration of one retention sweep.
func RecordSweepDuration(duration time.Duration) {
	RetentionSweepDuration.Observe(duration.Seconds())
}

// RecordContentFetchSuccess records a successful content fetch operation.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a fetch that was unnecessary because
// the record already carried enough text.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}
