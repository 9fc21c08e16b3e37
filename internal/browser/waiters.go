package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/attachtimer/internal/interfaces"
	"github.com/ternarybob/attachtimer/internal/models"
)

// ErrNotFileInput is returned when a file chooser was not opened by an <input type="file">
var ErrNotFileInput = errors.New("file chooser has no backing input element")

// ArmFileChooser starts listening for the next file chooser. Arm it before the
// click that opens the chooser so the event cannot be missed.
func (p *Page) ArmFileChooser(ctx context.Context) (interfaces.PendingFileChooser, error) {
	listenCtx, cancel := context.WithCancel(p.ctx)
	opened := make(chan cdp.BackendNodeID, 1)
	var once sync.Once

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventFileChooserOpened); ok {
			once.Do(func() {
				opened <- e.BackendNodeID
				cancel()
			})
		}
	})

	return &pendingFileChooser{
		page:    p,
		opened:  opened,
		cancel:  cancel,
		timeout: p.timeout,
	}, nil
}

type pendingFileChooser struct {
	page    *Page
	opened  chan cdp.BackendNodeID
	cancel  context.CancelFunc
	timeout time.Duration
}

func (f *pendingFileChooser) SetFiles(ctx context.Context, files ...string) error {
	defer f.cancel()

	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var nodeID cdp.BackendNodeID
	select {
	case nodeID = <-f.opened:
	case <-waitCtx.Done():
		return fmt.Errorf("timed out waiting for file chooser: %w", waitCtx.Err())
	}

	if nodeID == 0 {
		return ErrNotFileInput
	}

	if err := f.page.run(ctx, dom.SetFileInputFiles(files).WithBackendNodeID(nodeID)); err != nil {
		return fmt.Errorf("failed to set files on file chooser: %w", err)
	}
	return nil
}

func (f *pendingFileChooser) Cancel() {
	f.cancel()
}

// ArmResponse starts listening for the first response selected by match.
// Request methods are tracked from requestWillBeSent because responses do not carry them.
func (p *Page) ArmResponse(ctx context.Context, match models.ResponseMatcher) (interfaces.PendingResponse, error) {
	listenCtx, cancel := context.WithCancel(p.ctx)
	resolved := make(chan *models.ObservedResponse, 1)
	var (
		once    sync.Once
		mu      sync.Mutex
		methods = make(map[network.RequestID]string)
	)

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.Request == nil {
				return
			}
			mu.Lock()
			methods[e.RequestID] = e.Request.Method
			mu.Unlock()

		case *network.EventResponseReceived:
			if e.Response == nil {
				return
			}
			mu.Lock()
			method := methods[e.RequestID]
			delete(methods, e.RequestID)
			mu.Unlock()

			if !match.Matches(e.Response.URL, method) {
				return
			}
			once.Do(func() {
				resolved <- &models.ObservedResponse{
					URL:    e.Response.URL,
					Method: method,
					Status: e.Response.Status,
				}
				cancel()
			})
		}
	})

	return &pendingResponse{
		match:    match,
		resolved: resolved,
		cancel:   cancel,
		timeout:  p.timeout,
	}, nil
}

type pendingResponse struct {
	match    models.ResponseMatcher
	resolved chan *models.ObservedResponse
	cancel   context.CancelFunc
	timeout  time.Duration
}

func (r *pendingResponse) Wait(ctx context.Context) (*models.ObservedResponse, error) {
	defer r.cancel()

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	select {
	case resp := <-r.resolved:
		return resp, nil
	case <-waitCtx.Done():
		return nil, fmt.Errorf("timed out waiting for response %s: %w", r.match, waitCtx.Err())
	}
}

func (r *pendingResponse) Cancel() {
	r.cancel()
}
