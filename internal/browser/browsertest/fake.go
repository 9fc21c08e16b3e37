// -----------------------------------------------------------------------
// Fake browser - scripted Page and PageLauncher for package tests
// -----------------------------------------------------------------------

package browsertest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/ternarybob/attachtimer/internal/interfaces"
	"github.com/ternarybob/attachtimer/internal/models"
)

// ErrTimeout is returned by fake waits that were never satisfied
var ErrTimeout = errors.New("fake wait timed out")

// Launcher hands out a single FakePage
type Launcher struct {
	Page     *FakePage
	Err      error
	Launches int
	States   []*models.StorageState
}

var _ interfaces.PageLauncher = (*Launcher)(nil)

func (l *Launcher) Launch(ctx context.Context, state *models.StorageState) (interfaces.Page, error) {
	l.Launches++
	l.States = append(l.States, state)
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Page, nil
}

// FakePage records every action and runs scripted reactions synchronously.
// Actions are recorded as "<verb> <argument>", e.g. "click Save Record".
type FakePage struct {
	BaseURL string
	State   *models.StorageState

	// Errors fails the action with the matching record
	Errors map[string]error
	// OnClick runs after a successful click on the given text
	OnClick map[string]func(p *FakePage) error
	// OnSetFiles runs after files were handed to an open chooser
	OnSetFiles func(p *FakePage, files []string) error

	mu         sync.Mutex
	url        string
	actions    []string
	listeners  []func(ev interface{})
	chooser    *fakeChooser
	responses  []*fakeResponse
	bodies     map[network.RequestID][]byte
	requestSeq int
	closed     int
}

var _ interfaces.Page = (*FakePage)(nil)

// NewFakePage creates a page rooted at baseURL
func NewFakePage(baseURL string) *FakePage {
	return &FakePage{
		BaseURL: baseURL,
		Errors:  map[string]error{},
		OnClick: map[string]func(p *FakePage) error{},
		bodies:  map[network.RequestID][]byte{},
	}
}

func (p *FakePage) record(action string) error {
	p.mu.Lock()
	p.actions = append(p.actions, action)
	err := p.Errors[action]
	p.mu.Unlock()
	return err
}

// Actions returns the recorded actions in order
func (p *FakePage) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Closed returns how many times Close was called
func (p *FakePage) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// URL returns the current location
func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// SetURL changes the current location, as a client-side redirect would
func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

func (p *FakePage) Navigate(ctx context.Context, route string) error {
	if err := p.record("navigate " + route); err != nil {
		return err
	}
	p.SetURL(p.BaseURL + route)
	return nil
}

func (p *FakePage) FillPlaceholder(ctx context.Context, placeholder, value string) error {
	return p.record("fill " + placeholder)
}

func (p *FakePage) ClickText(ctx context.Context, text string) error {
	if err := p.record("click " + text); err != nil {
		return err
	}
	if react := p.OnClick[text]; react != nil {
		return react(p)
	}
	return nil
}

func (p *FakePage) WaitURL(ctx context.Context, pattern *regexp.Regexp) error {
	if err := p.record("wait url " + pattern.String()); err != nil {
		return err
	}
	if url := p.URL(); !pattern.MatchString(url) {
		return fmt.Errorf("waiting for url %s, last url %s: %w", pattern, url, ErrTimeout)
	}
	return nil
}

func (p *FakePage) StorageState(ctx context.Context) (*models.StorageState, error) {
	if err := p.record("storage state"); err != nil {
		return nil, err
	}
	if p.State == nil {
		return &models.StorageState{}, nil
	}
	return p.State, nil
}

func (p *FakePage) Listen(fn func(ev interface{})) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Emit delivers ev to every listener
func (p *FakePage) Emit(ev interface{}) {
	p.mu.Lock()
	listeners := append([]func(ev interface{}){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (p *FakePage) ResponseBody(ctx context.Context, requestID network.RequestID) ([]byte, error) {
	p.mu.Lock()
	body, ok := p.bodies[requestID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no body for request %s", requestID)
	}
	return body, nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

type fakeChooser struct {
	page   *FakePage
	opened bool
}

func (p *FakePage) ArmFileChooser(ctx context.Context) (interfaces.PendingFileChooser, error) {
	if err := p.record("arm file chooser"); err != nil {
		return nil, err
	}
	c := &fakeChooser{page: p}
	p.mu.Lock()
	p.chooser = c
	p.mu.Unlock()
	return c, nil
}

// OpenFileChooser opens the armed chooser, as clicking a file input would
func (p *FakePage) OpenFileChooser() {
	p.mu.Lock()
	if p.chooser != nil {
		p.chooser.opened = true
	}
	p.mu.Unlock()
}

func (c *fakeChooser) SetFiles(ctx context.Context, files ...string) error {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	if err := c.page.record(fmt.Sprintf("set files %v", names)); err != nil {
		return err
	}

	c.page.mu.Lock()
	opened := c.opened
	c.page.chooser = nil
	c.page.mu.Unlock()
	if !opened {
		return fmt.Errorf("waiting for file chooser: %w", ErrTimeout)
	}

	if c.page.OnSetFiles != nil {
		return c.page.OnSetFiles(c.page, files)
	}
	return nil
}

func (c *fakeChooser) Cancel() {}

type fakeResponse struct {
	page     *FakePage
	match    models.ResponseMatcher
	resolved *models.ObservedResponse
}

func (p *FakePage) ArmResponse(ctx context.Context, match models.ResponseMatcher) (interfaces.PendingResponse, error) {
	if err := p.record("arm response " + match.String()); err != nil {
		return nil, err
	}
	r := &fakeResponse{page: p, match: match}
	p.mu.Lock()
	p.responses = append(p.responses, r)
	p.mu.Unlock()
	return r, nil
}

// Respond resolves every armed, unresolved waiter matching the response
func (p *FakePage) Respond(url, method string, status int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.responses {
		if r.resolved == nil && r.match.Matches(url, method) {
			r.resolved = &models.ObservedResponse{URL: url, Method: method, Status: status}
		}
	}
}

func (r *fakeResponse) Wait(ctx context.Context) (*models.ObservedResponse, error) {
	if err := r.page.record("wait response " + r.match.String()); err != nil {
		return nil, err
	}
	r.page.mu.Lock()
	defer r.page.mu.Unlock()
	if r.resolved == nil {
		return nil, fmt.Errorf("waiting for response %s: %w", r.match, ErrTimeout)
	}
	return r.resolved, nil
}

func (r *fakeResponse) Cancel() {}

// Request replays the network events of one finished request and answers armed waiters.
// Timing is reported relative to a shared baseline so the measured duration is
// finished - sendStart milliseconds.
func (p *FakePage) Request(url, method string, body []byte, started time.Time, sendStart, finished float64) network.RequestID {
	const baseline = 1000.0

	p.mu.Lock()
	p.requestSeq++
	id := network.RequestID("req-" + strconv.Itoa(p.requestSeq))
	p.bodies[id] = body
	p.mu.Unlock()

	wall := cdp.TimeSinceEpoch(started)
	done := cdp.MonotonicTime(cdp.MonotonicTimeEpoch.Add(time.Duration((baseline + finished/1000) * float64(time.Second))))

	p.Emit(&network.EventRequestWillBeSent{
		RequestID: id,
		Request:   &network.Request{URL: url, Method: method},
		WallTime:  &wall,
	})
	p.Emit(&network.EventResponseReceived{
		RequestID: id,
		Response: &network.Response{
			URL:    url,
			Status: 200,
			Timing: &network.ResourceTiming{RequestTime: baseline, SendStart: sendStart},
		},
	})
	p.Respond(url, method, 200)
	p.Emit(&network.EventLoadingFinished{RequestID: id, Timestamp: &done})

	return id
}

// ScriptLogin makes the Login button land on the dashboard
func ScriptLogin(p *FakePage) {
	p.OnClick["Login"] = func(p *FakePage) error {
		p.SetURL(p.BaseURL + "/Dashboard")
		return nil
	}
}

// ScriptRecordEditor makes the record editor behave like the real one:
// Add Attachment opens a file chooser, choosing a file uploads it to
// <recordPath>/SaveAttachments and Save Record posts to <recordPath>/Edit.
// The n-th upload takes n*100ms.
func ScriptRecordEditor(p *FakePage, recordPath string) {
	uploads := 0
	p.OnClick["Add Attachment"] = func(p *FakePage) error {
		p.OpenFileChooser()
		return nil
	}
	p.OnSetFiles = func(p *FakePage, files []string) error {
		for _, f := range files {
			uploads++
			body := fmt.Sprintf(`{"data":[{"fileName":{"segments":[{"text":%q}]}}]}`, filepath.Base(f))
			p.Request(p.BaseURL+recordPath+"/SaveAttachments", "POST", []byte(body), time.Now(), 5, 5+float64(uploads*100))
		}
		return nil
	}
	p.OnClick["Save Record"] = func(p *FakePage) error {
		p.Respond(p.BaseURL+recordPath+"/Edit", "POST", 200)
		return nil
	}
}
