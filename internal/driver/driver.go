package driver

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"crmload/internal/stats"
)

// SnapshotChan carries live counter snapshots to progress displays.
type SnapshotChan chan stats.Snapshot

// Driver issues requests against one target service and records every
// outcome. Per-request failures are captured in the Result, never returned
// as errors, so one bad request cannot abort a batch.
type Driver struct {
	cfg    Config
	client *http.Client
	rec    *stats.Recorder
	log    *zap.Logger

	mu      sync.Mutex
	results []Result

	updates SnapshotChan
}

func New(cfg Config, log *zap.Logger, updates SnapshotChan) *Driver {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	if cfg.Insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if log == nil {
		log = zap.NewNop()
	}
	if updates == nil {
		updates = make(SnapshotChan, 10)
	}

	return &Driver{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout(),
			Transport: t,
		},
		rec:     stats.NewRecorder(),
		log:     log,
		updates: updates,
	}
}

func (d *Driver) Recorder() *stats.Recorder { return d.rec }

func (d *Driver) Config() Config { return d.cfg }

// Results returns a copy of every result recorded so far, in completion
// order.
func (d *Driver) Results() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Result, len(d.results))
	copy(out, d.results)
	return out
}

func (d *Driver) keep(res Result) Result {
	d.mu.Lock()
	d.results = append(d.results, res)
	d.mu.Unlock()
	return res
}

// StartTickLoop pushes snapshots onto the updates channel until ctx is done.
func (d *Driver) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.sendUpdate()
			}
		}
	}()
}

func (d *Driver) sendUpdate() {
	select {
	case d.updates <- d.rec.LiveSnapshot():
	default:
		// Drop update if the channel is full, the display acts as backpressure
	}
}

// Do performs one HTTP call and records its outcome. A transport or protocol
// failure yields a synthetic Result with status 0 and the error text as body.
func (d *Driver) Do(ctx context.Context, req Request) Result {
	start := time.Now()

	var raw []byte
	switch b := req.Body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		if err != nil {
			return d.failed(req, start, fmt.Errorf("encode body: %w", err))
		}
	}

	var body io.Reader
	if raw != nil {
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, d.cfg.BaseURL+req.Path, body)
	if err != nil {
		return d.failed(req, start, err)
	}
	if raw != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range d.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return d.failed(req, start, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	elapsed := time.Since(start)

	if readErr != nil {
		return d.failed(req, start, fmt.Errorf("read body: %w", readErr))
	}

	text := string(respBody)
	if resp.StatusCode < 400 {
		d.rec.RecordSuccess(elapsed)
	} else {
		d.rec.RecordHTTPError(req.Path, resp.StatusCode, text, elapsed)
		d.log.Debug("request failed",
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))
	}

	return d.keep(Result{
		Method:    req.Method,
		Path:      req.Path,
		Status:    resp.StatusCode,
		Body:      text,
		Elapsed:   elapsed,
		Timestamp: start,
	})
}

func (d *Driver) failed(req Request, start time.Time, err error) Result {
	d.rec.RecordTransportError(req.Path, err)
	d.log.Debug("transport failure", zap.String("path", req.Path), zap.Error(err))
	return d.keep(Result{
		Method:    req.Method,
		Path:      req.Path,
		Status:    0,
		Body:      err.Error(),
		Timestamp: start,
		Err:       err,
	})
}

// RunBatch dispatches all requests concurrently and waits for every one to
// finish. Results come back in input order; a failed request is recorded and
// does not disturb its siblings. Concurrency is bounded only by batch size.
func (d *Driver) RunBatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			results[i] = d.Do(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return results
}
