package models

import "time"

// TimingRecord is one measured attachment upload.
// Created once per matching upload response and never mutated afterwards.
type TimingRecord struct {
	Timestamp            time.Time `json:"timestamp"`    // Wall-clock start of the upload request
	Instance             string    `json:"instance"`     // Configured instance URL
	FileName             string    `json:"file_name"`    // Display name returned by the upload endpoint
	RequestTimeInSeconds float64   `json:"request_time"` // (responseEnd - requestStart) / 1000
}

// RequestTiming is the browser-reported timing of one request, in the shape
// of a resource timing entry: StartTime is wall clock in ms since the epoch,
// RequestStart and ResponseEnd are ms relative to the request's timing baseline.
type RequestTiming struct {
	StartTime    float64 `json:"startTime"`
	RequestStart float64 `json:"requestStart"`
	ResponseEnd  float64 `json:"responseEnd"`
}

// Duration returns the elapsed request time in seconds
func (t RequestTiming) Duration() float64 {
	return (t.ResponseEnd - t.RequestStart) / 1000
}

// Started returns StartTime as a UTC time.Time
func (t RequestTiming) Started() time.Time {
	return time.UnixMicro(int64(t.StartTime * 1000)).UTC()
}

// RunSummary describes the outcome of one attachment run
type RunSummary struct {
	RunID              string        `json:"run_id"`
	Files              int           `json:"files"`
	TimingsPerFile     int           `json:"timings_per_file"`
	Uploads            int           `json:"uploads"`             // Upload/save cycles completed by the driver
	Records            int           `json:"records"`             // Timing records captured by the observer
	ExtractionFailures int           `json:"extraction_failures"` // Upload responses that produced no record
	Elapsed            time.Duration `json:"elapsed"`
}

// Expected returns the record count a fully successful run produces
func (s RunSummary) Expected() int {
	return s.Files * s.TimingsPerFile
}

// Complete reports whether every upload produced a timing record
func (s RunSummary) Complete() bool {
	return s.Records == s.Expected()
}
