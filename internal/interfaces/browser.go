package interfaces

import (
	"context"
	"regexp"

	"github.com/chromedp/cdproto/network"
	"github.com/ternarybob/attachtimer/internal/models"
)

// PageLauncher opens isolated browser sessions
type PageLauncher interface {
	// Launch starts a browser with a single page. A non-nil state is restored
	// (cookies and localStorage) before the first navigation.
	Launch(ctx context.Context, state *models.StorageState) (Page, error)
}

// Page is one browser tab driven by the session establisher and the attachment driver
type Page interface {
	// Navigation and UI actions. Routes resolve against the instance URL.
	Navigate(ctx context.Context, route string) error
	FillPlaceholder(ctx context.Context, placeholder, value string) error
	ClickText(ctx context.Context, text string) error
	WaitURL(ctx context.Context, pattern *regexp.Regexp) error

	// StorageState captures the authenticated session
	StorageState(ctx context.Context) (*models.StorageState, error)

	// Waiters are armed before the action that triggers them
	ArmFileChooser(ctx context.Context) (PendingFileChooser, error)
	ArmResponse(ctx context.Context, match models.ResponseMatcher) (PendingResponse, error)

	// Listen registers fn for every target event for the lifetime of the page.
	// fn runs on the event dispatch goroutine and must not block.
	Listen(fn func(ev interface{}))

	ResponseBodySource

	// Close shuts the browser down. Safe to call more than once.
	Close() error
}

// PendingFileChooser resolves when the page opens a file chooser
type PendingFileChooser interface {
	// SetFiles waits for the chooser and supplies it the given absolute paths
	SetFiles(ctx context.Context, files ...string) error
	Cancel()
}

// PendingResponse resolves with the first response matching its matcher
type PendingResponse interface {
	Wait(ctx context.Context) (*models.ObservedResponse, error)
	Cancel()
}

// ResponseBodySource fetches the body of a finished network request
type ResponseBodySource interface {
	ResponseBody(ctx context.Context, requestID network.RequestID) ([]byte, error)
}
