package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/attachtimer/internal/common"
	"github.com/ternarybob/attachtimer/internal/interfaces"
	"github.com/ternarybob/attachtimer/internal/models"
)

// LauncherConfig holds configuration for launching a browser
type LauncherConfig struct {
	BaseURL       string        `json:"base_url"`
	ExecPath      string        `json:"exec_path"`
	Headless      bool          `json:"headless"`
	NoSandbox     bool          `json:"no_sandbox"`
	WindowWidth   int           `json:"window_width"`
	WindowHeight  int           `json:"window_height"`
	ActionTimeout time.Duration `json:"action_timeout"`
}

// NewLauncherConfig builds a LauncherConfig from the application config
func NewLauncherConfig(config *common.Config) (LauncherConfig, error) {
	timeout, err := config.ActionTimeout()
	if err != nil {
		return LauncherConfig{}, err
	}
	return LauncherConfig{
		BaseURL:       config.Instance.URL,
		ExecPath:      config.Browser.ExecPath,
		Headless:      config.Browser.Headless,
		NoSandbox:     config.Browser.NoSandbox,
		WindowWidth:   config.Browser.WindowWidth,
		WindowHeight:  config.Browser.WindowHeight,
		ActionTimeout: timeout,
	}, nil
}

// Launcher starts chromedp browsers, one page per launch
type Launcher struct {
	config LauncherConfig
	logger arbor.ILogger
}

var _ interfaces.PageLauncher = (*Launcher)(nil)
var _ interfaces.Page = (*Page)(nil)

// NewLauncher creates a new chromedp launcher
func NewLauncher(config LauncherConfig, logger arbor.ILogger) *Launcher {
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = 30 * time.Second
	}
	return &Launcher{
		config: config,
		logger: logger,
	}
}

// Launch starts a fresh browser (new profile, no shared state) and returns its only page
func (l *Launcher) Launch(ctx context.Context, state *models.StorageState) (interfaces.Page, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
		chromedp.Flag("no-sandbox", l.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.config.WindowWidth > 0 && l.config.WindowHeight > 0 {
		allocatorOpts = append(allocatorOpts, chromedp.WindowSize(l.config.WindowWidth, l.config.WindowHeight))
	}
	if l.config.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(l.config.ExecPath))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			l.logger.Debug().Msgf("chromedp: "+format, args...)
		}),
	)

	p := &Page{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		baseURL:         l.config.BaseURL,
		timeout:         l.config.ActionTimeout,
		logger:          l.logger,
	}

	startCtx, startCancel := p.actionContext(ctx)
	defer startCancel()

	// First Run starts the browser. File choosers are intercepted so uploads
	// never open a native dialog.
	if err := chromedp.Run(startCtx,
		network.Enable(),
		page.SetInterceptFileChooserDialog(true),
	); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if state != nil {
		if err := p.restoreState(startCtx, state); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to restore session state: %w", err)
		}
	}

	l.logger.Debug().
		Bool("headless", l.config.Headless).
		Bool("restored_state", state != nil).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser launched")

	return p, nil
}
