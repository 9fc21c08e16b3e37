// -----------------------------------------------------------------------
// Attachment Driver - uploads every test file through the record editor
// -----------------------------------------------------------------------

package attach

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/attachtimer/internal/interfaces"
	"github.com/ternarybob/attachtimer/internal/models"
	"github.com/ternarybob/attachtimer/internal/session"
	"github.com/ternarybob/attachtimer/internal/timing"
)

const (
	addAttachmentText = "Add Attachment"
	saveRecordText    = "Save Record"
)

// UploadPattern matches attachment upload endpoints: /Content/<id>/SaveAttachments
// or /Content/<id>/<id>/SaveAttachments
var UploadPattern = regexp.MustCompile(`/Content/(\d+/)?\d+/SaveAttachments`)

// DriverConfig describes one attachment run
type DriverConfig struct {
	Instance            string        // Instance URL, written to every record
	RecordEditPath      string        // e.g. "/Content/12/34/Edit"
	SaveAttachmentsPath string        // e.g. "/Content/12/34/SaveAttachments"
	TestFiles           string        // Directory of files to upload
	TimingsPerFile      int           // Uploads per file
	DrainTimeout        time.Duration // Bound for in-flight timing extraction after the last upload
}

// Driver restores the saved session and uploads each test file through the UI
type Driver struct {
	config   DriverConfig
	launcher interfaces.PageLauncher
	store    *session.Store
	logger   arbor.ILogger
}

// NewDriver creates an attachment driver
func NewDriver(config DriverConfig, launcher interfaces.PageLauncher, store *session.Store, logger arbor.ILogger) *Driver {
	if config.TimingsPerFile < 1 {
		config.TimingsPerFile = 1
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = 30 * time.Second
	}
	return &Driver{
		config:   config,
		launcher: launcher,
		store:    store,
		logger:   logger,
	}
}

// Run uploads every file TimingsPerFile times and returns the timing records in
// the order their responses finished. Any UI or wait failure aborts the run and
// no records are returned. The browser is closed on every path.
func (d *Driver) Run(ctx context.Context) ([]models.TimingRecord, models.RunSummary, error) {
	startTime := time.Now()
	summary := models.RunSummary{TimingsPerFile: d.config.TimingsPerFile}

	files, err := ListFiles(d.config.TestFiles)
	if err != nil {
		return nil, summary, err
	}
	summary.Files = len(files)

	state, err := d.store.Load()
	if err != nil {
		return nil, summary, err
	}

	page, err := d.launcher.Launch(ctx, state)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to launch browser for uploads: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			d.logger.Warn().Err(closeErr).Msg("Failed to close upload browser")
		}
	}()

	observer := timing.NewObserver(ctx, timing.ObserverConfig{
		Fragment: d.config.SaveAttachmentsPath,
		Instance: d.config.Instance,
	}, page, d.logger)
	page.Listen(observer.HandleEvent)

	if err := page.Navigate(ctx, d.config.RecordEditPath); err != nil {
		return nil, summary, fmt.Errorf("failed to open record editor: %w", err)
	}

	d.logger.Info().
		Int("files", len(files)).
		Int("timings_per_file", d.config.TimingsPerFile).
		Str("record", d.config.RecordEditPath).
		Msg("Starting uploads")

	for _, file := range files {
		for i := 0; i < d.config.TimingsPerFile; i++ {
			if err := d.uploadOnce(ctx, page, file); err != nil {
				return nil, summary, fmt.Errorf("upload %d of %s failed: %w", i+1, filepath.Base(file), err)
			}
			summary.Uploads++
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, d.config.DrainTimeout)
	defer cancel()
	if err := observer.Wait(drainCtx); err != nil {
		d.logger.Warn().Err(err).Msg("Timing extraction did not finish cleanly")
	}

	records := observer.Records()
	summary.Records = len(records)
	summary.ExtractionFailures = observer.Failures()
	summary.Elapsed = time.Since(startTime)

	return records, summary, nil
}

// uploadOnce attaches file and saves the record. Waiters are armed before the
// click that triggers them.
func (d *Driver) uploadOnce(ctx context.Context, page interfaces.Page, file string) error {
	chooser, err := page.ArmFileChooser(ctx)
	if err != nil {
		return err
	}
	defer chooser.Cancel()

	upload, err := page.ArmResponse(ctx, models.ResponseMatcher{Pattern: UploadPattern})
	if err != nil {
		return err
	}
	defer upload.Cancel()

	if err := page.ClickText(ctx, addAttachmentText); err != nil {
		return err
	}
	if err := chooser.SetFiles(ctx, file); err != nil {
		return err
	}
	if _, err := upload.Wait(ctx); err != nil {
		return err
	}

	save, err := page.ArmResponse(ctx, models.ResponseMatcher{
		Contains: d.config.RecordEditPath,
		Method:   "POST",
	})
	if err != nil {
		return err
	}
	defer save.Cancel()

	if err := page.ClickText(ctx, saveRecordText); err != nil {
		return err
	}
	if _, err := save.Wait(ctx); err != nil {
		return err
	}

	d.logger.Debug().Str("file", filepath.Base(file)).Msg("Attachment saved")
	return nil
}
