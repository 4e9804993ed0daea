package driver

import (
	"time"
)

// Config describes the target service and client limits.
type Config struct {
	BaseURL    string            `json:"base_url"`
	TimeoutSec int               `json:"timeout_sec"`
	Insecure   bool              `json:"insecure"` // skip TLS verification
	Headers    map[string]string `json:"headers,omitempty"`
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Request is a single call to issue. Body is marshaled to JSON unless it is
// already a string or []byte.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Result is the recorded outcome of one request. Status 0 means the exchange
// never completed; Body then carries the transport error text.
type Result struct {
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	Body      string        `json:"body,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Timestamp time.Time     `json:"timestamp"`
	Err       error         `json:"-"`
}

// OK reports whether the exchange completed with a non-error status.
func (r Result) OK() bool {
	return r.Err == nil && r.Status > 0 && r.Status < 400
}

// ElapsedMs returns the end-to-end latency in milliseconds.
func (r Result) ElapsedMs() float64 {
	return float64(r.Elapsed.Microseconds()) / 1000.0
}
