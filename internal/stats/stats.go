package stats

import (
	"sort"
	"sync"
	"time"
)

// ErrorDetail describes one failed request.
type ErrorDetail struct {
	Path   string `json:"path"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Summary holds the aggregate latency figures for a run.
type Summary struct {
	Count    int     `json:"count"`
	MeanMs   float64 `json:"mean_ms"`
	MedianMs float64 `json:"median_ms"`
	P95Ms    float64 `json:"p95_ms"`
	MaxMs    float64 `json:"max_ms"`
}

// Snapshot is a cheap copy of the live counters for progress displays.
type Snapshot struct {
	Total   int
	Success int
	Errors  int

	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs int64
}

const errorBodyLimit = 200

// Recorder accumulates results for a single run. Counts only grow; a new run
// gets a new Recorder. Updates are serialized by the mutex, the histogram
// locks separately so live snapshots don't block the recording path.
type Recorder struct {
	mu        sync.Mutex
	success   int
	errors    int
	latencies []float64 // completed exchanges only, ms
	details   []ErrorDetail

	// Service time histogram (microseconds) for live percentiles.
	service *SafeHistogram
}

func NewRecorder() *Recorder {
	return &Recorder{service: NewSafeHistogram()}
}

// RecordSuccess records a completed exchange with status < 400.
func (r *Recorder) RecordSuccess(elapsed time.Duration) {
	r.service.Record(elapsed.Microseconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
	r.latencies = append(r.latencies, float64(elapsed.Microseconds())/1000.0)
}

// RecordHTTPError records a completed exchange with status >= 400. The
// latency still counts, the body is truncated for the error detail.
func (r *Recorder) RecordHTTPError(path string, status int, body string, elapsed time.Duration) {
	r.service.Record(elapsed.Microseconds())

	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
	r.latencies = append(r.latencies, float64(elapsed.Microseconds())/1000.0)
	r.details = append(r.details, ErrorDetail{Path: path, Status: status, Body: body})
}

// RecordTransportError records a request that never completed an HTTP
// exchange. No latency is recorded.
func (r *Recorder) RecordTransportError(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
	r.details = append(r.details, ErrorDetail{Path: path, Err: err.Error()})
}

func (r *Recorder) Success() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success
}

func (r *Recorder) Errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success + r.errors
}

// Latencies returns a copy of the recorded latencies in ms.
func (r *Recorder) Latencies() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.latencies))
	copy(out, r.latencies)
	return out
}

// ErrorDetails returns a copy of the recorded error details, oldest first.
func (r *Recorder) ErrorDetails() []ErrorDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorDetail, len(r.details))
	copy(out, r.details)
	return out
}

// SuccessRate returns the success percentage over all recorded outcomes.
func (r *Recorder) SuccessRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.success + r.errors
	if total == 0 {
		return 0
	}
	return float64(r.success) / float64(total) * 100
}

// ErrorRate returns the error percentage over all recorded outcomes.
func (r *Recorder) ErrorRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.success + r.errors
	if total == 0 {
		return 0
	}
	return float64(r.errors) / float64(total) * 100
}

// Summarize computes mean, median, nearest-rank P95 and max over the
// recorded latencies. It works on a sorted copy and never mutates state.
func (r *Recorder) Summarize() Summary {
	return Summarize(r.Latencies())
}

// Summarize aggregates a latency sequence (ms). Empty input yields a zero
// Summary.
func Summarize(latencies []float64) Summary {
	n := len(latencies)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	// Nearest rank: index into the sorted sequence, no interpolation.
	idx := int(float64(n) * 0.95)
	if idx >= n {
		idx = n - 1
	}

	return Summary{
		Count:    n,
		MeanMs:   sum / float64(n),
		MedianMs: median,
		P95Ms:    sorted[idx],
		MaxMs:    sorted[n-1],
	}
}

// LiveSnapshot reads the counters and histogram percentiles without touching
// the latency slice.
func (r *Recorder) LiveSnapshot() Snapshot {
	r.mu.Lock()
	success, errors := r.success, r.errors
	r.mu.Unlock()

	return Snapshot{
		Total:   success + errors,
		Success: success,
		Errors:  errors,
		P50Ms:   float64(r.service.ValueAtQuantile(50)) / 1000.0,
		P90Ms:   float64(r.service.ValueAtQuantile(90)) / 1000.0,
		P99Ms:   float64(r.service.ValueAtQuantile(99)) / 1000.0,
		MaxMs:   r.service.Max() / 1000,
	}
}
