package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the triage pipeline.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	pipelineCount map[string]int64
}

// Pipeline counter names.
const (
	CounterClassifications       = "classifications"
	CounterClassificationErrors  = "classification_errors"
	CounterDraftsGenerated       = "drafts_generated"
	CounterDraftTransitions      = "draft_transitions"
	CounterInvalidTransitions    = "invalid_transitions"
	CounterCasebookPromotions    = "casebook_promotions"
	CounterBatchRuns             = "batch_runs"
	CounterStorageSyncFailures   = "storage_sync_failures"
	CounterTicketsIngested       = "tickets_ingested"
	CounterHelpdeskFetchFailures = "helpdesk_fetch_failures"
)

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		pipelineCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Incr bumps a named pipeline counter by n.
func (m *Metrics) Incr(counter string, n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelineCount[counter] += n
}

// Snapshot returns copies of all counters for reporting.
func (m *Metrics) Snapshot() (requests, errors, pipeline map[string]int64) {
	if m == nil {
		return nil, nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	requests = make(map[string]int64, len(m.requestCount))
	for k, v := range m.requestCount {
		requests[k] = v
	}
	errors = make(map[string]int64, len(m.errorCount))
	for k, v := range m.errorCount {
		errors[k] = v
	}
	pipeline = make(map[string]int64, len(m.pipelineCount))
	for k, v := range m.pipelineCount {
		pipeline[k] = v
	}
	return requests, errors, pipeline
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
