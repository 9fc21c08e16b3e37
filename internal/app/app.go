// -----------------------------------------------------------------------
// Application wiring - one login + upload + report run
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/attachtimer/internal/attach"
	"github.com/ternarybob/attachtimer/internal/browser"
	"github.com/ternarybob/attachtimer/internal/common"
	"github.com/ternarybob/attachtimer/internal/interfaces"
	"github.com/ternarybob/attachtimer/internal/models"
	"github.com/ternarybob/attachtimer/internal/report"
	"github.com/ternarybob/attachtimer/internal/session"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	RunID  string

	// Browser
	Launcher interfaces.PageLauncher

	// Session
	SessionStore *session.Store
	Establisher  *session.Establisher

	// Uploads and reporting
	Driver       *attach.Driver
	ReportWriter *report.Writer
}

// New initializes the application with a chromedp launcher
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	launcherConfig, err := browser.NewLauncherConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure browser: %w", err)
	}

	runID := common.NewRunID()
	logger = logger.WithCorrelationId(runID)

	return NewWithLauncher(cfg, logger, runID, browser.NewLauncher(launcherConfig, logger))
}

// NewWithLauncher initializes the application around an existing launcher
func NewWithLauncher(cfg *common.Config, logger arbor.ILogger, runID string, launcher interfaces.PageLauncher) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		RunID:    runID,
		Launcher: launcher,
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().
		Str("run_id", runID).
		Str("auth_state", cfg.Paths.AuthState).
		Str("report", app.ReportWriter.Path()).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initServices() error {
	timeout, err := a.Config.ActionTimeout()
	if err != nil {
		return err
	}

	a.SessionStore = session.NewStore(a.Config.Paths.AuthState)

	a.Establisher = session.NewEstablisher(a.Launcher, a.SessionStore, session.Credentials{
		Username: a.Config.Credentials.Username,
		Password: a.Config.Credentials.Password,
	}, a.Logger)

	a.Driver = attach.NewDriver(attach.DriverConfig{
		Instance:            a.Config.Instance.URL,
		RecordEditPath:      a.Config.RecordEditPath(),
		SaveAttachmentsPath: a.Config.SaveAttachmentsPath(),
		TestFiles:           a.Config.Paths.TestFiles,
		TimingsPerFile:      a.Config.Run.TimingsPerFile,
		DrainTimeout:        timeout,
	}, a.Launcher, a.SessionStore, a.Logger)

	a.ReportWriter = report.NewWriter(a.Config.Paths.ResultsDir, a.Config.Paths.ReportFile, a.Logger)

	return nil
}

// Login establishes and saves the session
func (a *App) Login(ctx context.Context) error {
	if err := a.Establisher.Login(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	return nil
}

// Upload runs the attachment driver on the saved session and writes the report.
// Nothing is written when the driver fails.
func (a *App) Upload(ctx context.Context) (models.RunSummary, error) {
	records, summary, err := a.Driver.Run(ctx)
	summary.RunID = a.RunID
	if err != nil {
		return summary, fmt.Errorf("attachment run failed: %w", err)
	}

	a.logSummary(summary)

	if err := a.ReportWriter.Write(records); err != nil {
		return summary, err
	}
	return summary, nil
}

// Run logs in, uploads every file and writes the report
func (a *App) Run(ctx context.Context) (models.RunSummary, error) {
	if err := a.Login(ctx); err != nil {
		return models.RunSummary{RunID: a.RunID}, err
	}
	return a.Upload(ctx)
}

func (a *App) logSummary(summary models.RunSummary) {
	event := a.Logger.Info()
	if !summary.Complete() {
		event = a.Logger.Warn()
	}
	event.
		Int("files", summary.Files).
		Int("timings_per_file", summary.TimingsPerFile).
		Int("uploads", summary.Uploads).
		Int("records", summary.Records).
		Int("expected", summary.Expected()).
		Int("extraction_failures", summary.ExtractionFailures).
		Dur("elapsed", summary.Elapsed).
		Msg("Attachment run complete")
}
