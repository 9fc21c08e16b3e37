// -----------------------------------------------------------------------
// Timing Observer - measures attachment uploads from network events
// -----------------------------------------------------------------------

package timing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/attachtimer/internal/common"
	"github.com/ternarybob/attachtimer/internal/interfaces"
	"github.com/ternarybob/attachtimer/internal/models"
	"golang.org/x/sync/errgroup"
)

// ObserverConfig selects which requests are measured
type ObserverConfig struct {
	Fragment string // URL fragment of upload requests, e.g. "/Content/12/34/SaveAttachments"
	Instance string // Written to every record
}

// trackedRequest is an upload request seen on the wire but not finished yet
type trackedRequest struct {
	url       string
	startTime float64 // wall clock, ms since epoch
	timing    *network.ResourceTiming
}

type sequencedRecord struct {
	seq    int
	record models.TimingRecord
}

// Observer listens to a page's network events and records one TimingRecord per
// finished upload. HandleEvent runs on the event dispatch goroutine, so body
// fetches and extraction happen on tracked goroutines.
type Observer struct {
	ctx    context.Context
	config ObserverConfig
	bodies interfaces.ResponseBodySource
	logger arbor.ILogger

	group errgroup.Group

	mu       sync.Mutex
	requests map[network.RequestID]*trackedRequest
	records  []sequencedRecord
	seq      int
	failures int
	draining bool // set by Wait, no extraction starts afterwards
}

// NewObserver creates an observer. ctx bounds the body fetches it starts.
func NewObserver(ctx context.Context, config ObserverConfig, bodies interfaces.ResponseBodySource, logger arbor.ILogger) *Observer {
	return &Observer{
		ctx:      ctx,
		config:   config,
		bodies:   bodies,
		logger:   logger,
		requests: make(map[network.RequestID]*trackedRequest),
	}
}

// HandleEvent consumes one target event. It never blocks on the browser.
func (o *Observer) HandleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request == nil || !strings.Contains(e.Request.URL, o.config.Fragment) {
			return
		}
		req := &trackedRequest{url: e.Request.URL}
		if e.WallTime != nil {
			req.startTime = float64(e.WallTime.Time().UnixNano()) / float64(time.Millisecond)
		}
		o.mu.Lock()
		o.requests[e.RequestID] = req
		o.mu.Unlock()

	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		o.mu.Lock()
		if req, ok := o.requests[e.RequestID]; ok {
			req.timing = e.Response.Timing
		}
		o.mu.Unlock()

	case *network.EventLoadingFinished:
		o.mu.Lock()
		req, ok := o.requests[e.RequestID]
		if !ok {
			o.mu.Unlock()
			return
		}
		delete(o.requests, e.RequestID)
		if o.draining {
			o.failures++
			o.mu.Unlock()
			o.logger.Warn().
				Str("url", req.url).
				Msg("Upload finished after timing collection stopped, no timing recorded")
			return
		}
		o.seq++
		seq := o.seq

		// Started under mu so Wait never races group.Go
		timing := requestTiming(req, e.Timestamp)
		requestID := e.RequestID
		common.SafeGo(&o.group, o.logger, "collectTiming", func() error {
			o.collect(seq, requestID, req.url, timing)
			return nil
		})
		o.mu.Unlock()

	case *network.EventLoadingFailed:
		o.mu.Lock()
		req, ok := o.requests[e.RequestID]
		delete(o.requests, e.RequestID)
		o.mu.Unlock()
		if ok {
			o.logger.Warn().
				Str("url", req.url).
				Str("error", e.ErrorText).
				Bool("canceled", e.Canceled).
				Msg("Upload request failed, no timing recorded")
		}
	}
}

// collect fetches the response body and appends the extracted record.
// Failures are logged and counted, they never stop the run.
func (o *Observer) collect(seq int, requestID network.RequestID, url string, timing models.RequestTiming) {
	body, err := o.bodies.ResponseBody(o.ctx, requestID)
	if err == nil {
		var record models.TimingRecord
		record, err = Extract(body, timing, o.config.Instance)
		if err == nil {
			o.mu.Lock()
			o.records = append(o.records, sequencedRecord{seq: seq, record: record})
			o.mu.Unlock()

			o.logger.Info().Msgf("%s took %.4f seconds to upload", record.FileName, record.RequestTimeInSeconds)
			return
		}
	}

	o.mu.Lock()
	o.failures++
	o.mu.Unlock()

	o.logger.Warn().
		Err(err).
		Str("url", url).
		Str("request_id", string(requestID)).
		Msg("Failed to extract upload timing")
}

// Wait stops accepting new uploads, then blocks until every started
// extraction finished or ctx is done. Uploads finishing after Wait was called
// are counted as failures. A non-nil error means an extraction panicked or ctx
// expired first.
func (o *Observer) Wait(ctx context.Context) error {
	o.mu.Lock()
	o.draining = true
	o.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- o.group.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for timing extraction: %w", ctx.Err())
	}
}

// Records returns the captured records in the order their responses finished
func (o *Observer) Records() []models.TimingRecord {
	o.mu.Lock()
	sorted := make([]sequencedRecord, len(o.records))
	copy(sorted, o.records)
	o.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].seq < sorted[j].seq })

	records := make([]models.TimingRecord, len(sorted))
	for i, r := range sorted {
		records[i] = r.record
	}
	return records
}

// Failures returns how many finished uploads produced no record
func (o *Observer) Failures() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failures
}

// requestTiming maps CDP timing onto resource-timing fields. Phases the
// browser did not report are -1.
func requestTiming(req *trackedRequest, finished *cdp.MonotonicTime) models.RequestTiming {
	timing := models.RequestTiming{
		StartTime:    req.startTime,
		RequestStart: -1,
		ResponseEnd:  -1,
	}
	if req.timing == nil {
		return timing
	}

	timing.RequestStart = req.timing.SendStart
	if finished != nil {
		finishedSeconds := finished.Time().Sub(*cdp.MonotonicTimeEpoch).Seconds()
		timing.ResponseEnd = (finishedSeconds - req.timing.RequestTime) * 1000
	}
	return timing
}
