package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	assignmentCount map[string]int64
	ruleFailures    map[string]int64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Requests     map[string]int64 `json:"requests"`
	Errors       map[string]int64 `json:"errors"`
	Assignments  map[string]int64 `json:"assignments"`
	RuleFailures map[string]int64 `json:"rule_failures"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		assignmentCount: make(map[string]int64),
		ruleFailures:    make(map[string]int64),
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

// RecordAssignment counts an Assign outcome, keyed by the winning rule type when there is one.
func (m *Metrics) RecordAssignment(outcome, ruleType string) {
	if m == nil {
		return
	}
	key := outcome
	if ruleType != "" {
		key += "|" + ruleType
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignmentCount[key]++
}

// RecordRuleFailure counts a rule that could not run because of an infrastructure error.
func (m *Metrics) RecordRuleFailure(ruleType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleFailures[ruleType]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Requests:     copyCounts(m.requestCount),
		Errors:       copyCounts(m.errorCount),
		Assignments:  copyCounts(m.assignmentCount),
		RuleFailures: copyCounts(m.ruleFailures),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
