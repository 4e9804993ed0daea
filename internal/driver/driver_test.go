package driver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T, handler http.Handler) (*Driver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d := New(Config{BaseURL: srv.URL, TimeoutSec: 5}, nil, nil)
	return d, srv
}

func TestRunBatchReturnsAllResultsInOrder(t *testing.T) {
	d, _ := newTestDriver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Path)
	}))

	const n = 20
	reqs := make([]Request, n)
	for i := range reqs {
		reqs[i] = Request{Method: http.MethodGet, Path: fmt.Sprintf("/p%d", i)}
	}

	results := d.RunBatch(context.Background(), reqs)

	require.Len(t, results, n)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("/p%d", i), res.Path)
		assert.Equal(t, fmt.Sprintf("/p%d", i), res.Body)
		assert.True(t, res.OK())
	}

	rec := d.Recorder()
	assert.Equal(t, n, rec.Success())
	assert.Equal(t, 0, rec.Errors())
	assert.Equal(t, n, rec.Total())
}

func TestRunBatchAlways500(t *testing.T) {
	d, _ := newTestDriver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))

	const n = 10
	reqs := make([]Request, n)
	for i := range reqs {
		reqs[i] = Request{Method: http.MethodGet, Path: "/fail"}
	}

	results := d.RunBatch(context.Background(), reqs)

	require.Len(t, results, n)
	rec := d.Recorder()
	assert.Equal(t, 0, rec.Success())
	assert.Equal(t, n, rec.Errors())
	// completed exchanges still record latency
	assert.Len(t, rec.Latencies(), n)
}

func TestTransportFailureDoesNotAffectSiblings(t *testing.T) {
	d, _ := newTestDriver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	results := d.RunBatch(context.Background(), []Request{
		{Method: http.MethodGet, Path: "/ok"},
		{Method: http.MethodGet, Path: "/boom"},
		{Method: http.MethodGet, Path: "/ok"},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.True(t, results[2].OK())

	assert.False(t, results[1].OK())
	assert.Equal(t, 0, results[1].Status)
	assert.Error(t, results[1].Err)
	assert.NotEmpty(t, results[1].Body)

	rec := d.Recorder()
	assert.Equal(t, 2, rec.Success())
	assert.Equal(t, 1, rec.Errors())
}

func TestDoUnreachableHost(t *testing.T) {
	d := New(Config{BaseURL: "http://127.0.0.1:1", TimeoutSec: 1}, nil, nil)

	res := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})

	assert.Equal(t, 0, res.Status)
	assert.Error(t, res.Err)
	assert.NotEmpty(t, res.Body)
	assert.False(t, res.OK())

	rec := d.Recorder()
	assert.Equal(t, 1, rec.Errors())
	assert.Empty(t, rec.Latencies())
}

func TestDoSendsJSONBodyAndHeaders(t *testing.T) {
	var gotBody string
	var gotAuth, gotContentType string
	d, _ := newTestDriver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))

	res := d.Do(context.Background(), Request{
		Method:  http.MethodPost,
		Path:    "/customers",
		Body:    map[string]string{"name": "acme"},
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})

	assert.True(t, res.OK())
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.JSONEq(t, `{"name":"acme"}`, gotBody)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestDoRecordsHTTPErrorDetail(t *testing.T) {
	d, _ := newTestDriver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	res := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/missing"})

	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.False(t, res.OK())
	assert.Nil(t, res.Err) // completed exchange, not a transport failure

	details := d.Recorder().ErrorDetails()
	require.Len(t, details, 1)
	assert.Equal(t, "/missing", details[0].Path)
	assert.Equal(t, http.StatusNotFound, details[0].Status)
}

func TestResultsRetainsEverything(t *testing.T) {
	d, _ := newTestDriver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/a"})
	d.RunBatch(context.Background(), []Request{
		{Method: http.MethodGet, Path: "/b"},
		{Method: http.MethodGet, Path: "/c"},
	})

	assert.Len(t, d.Results(), 3)
}
