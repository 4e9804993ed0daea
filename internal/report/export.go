package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"crmload/internal/driver"
	"crmload/internal/stats"
)

// ExportAll writes the CSV, raw JSON, summary and timeline files for a run.
func ExportAll(prefix string, results []driver.Result, rec *stats.Recorder) error {
	if err := ExportCSV(results, prefix+".csv"); err != nil {
		return err
	}
	if err := ExportJSON(results, prefix+".json"); err != nil {
		return err
	}
	if err := ExportSummary(rec, prefix+"_summary.json"); err != nil {
		return err
	}
	return ExportTimeline(results, prefix+"_timeline.json")
}

// ExportCSV writes per-request results in a JMeter compatible-ish schema.
func ExportCSV(results []driver.Result, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
		"success", "bytes", "url",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, res := range results {
		msg := "OK"
		if res.Err != nil {
			msg = res.Err.Error()
		}

		record := []string{
			fmt.Sprintf("%d", res.Timestamp.UnixMilli()),
			fmt.Sprintf("%d", res.Elapsed.Milliseconds()),
			res.Method + " " + res.Path,
			strconv.Itoa(res.Status),
			msg,
			strconv.FormatBool(res.OK()),
			strconv.Itoa(len(res.Body)),
			res.Path,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	return nil
}

// ExportJSON dumps the raw results.
func ExportJSON(results []driver.Result, filename string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ExportSummary writes the aggregate counters and latency figures.
func ExportSummary(rec *stats.Recorder, filename string) error {
	sum := rec.Summarize()
	payload := map[string]any{
		"total_requests": rec.Total(),
		"success":        rec.Success(),
		"errors":         rec.Errors(),
		"success_rate":   rec.SuccessRate(),
		"latency":        sum,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// TimeBucket is one second of traffic in the timeline export.
type TimeBucket struct {
	Timestamp int64 `json:"timestamp"`
	Requests  int   `json:"requests"`
	Errors    int   `json:"errors"`
}

// ExportTimeline writes per-second request/error counts.
func ExportTimeline(results []driver.Result, filename string) error {
	buckets := make(map[int64]*TimeBucket)

	for _, res := range results {
		ts := res.Timestamp.Unix()
		b, ok := buckets[ts]
		if !ok {
			b = &TimeBucket{Timestamp: ts}
			buckets[ts] = b
		}
		b.Requests++
		if !res.OK() {
			b.Errors++
		}
	}

	timeline := make([]TimeBucket, 0, len(buckets))
	for _, b := range buckets {
		timeline = append(timeline, *b)
	}
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Timestamp < timeline[j].Timestamp
	})

	data, err := json.MarshalIndent(timeline, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
