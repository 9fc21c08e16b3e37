package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/attachtimer/internal/models"
)

// TimestampLayout renders record timestamps as UTC ISO-8601 with milliseconds
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Header is the first line of every report
var Header = []string{"timestamp", "instance", "fileName", "requestTimeInSeconds"}

// Writer writes timing records to a CSV file
type Writer struct {
	dir      string
	fileName string
	logger   arbor.ILogger
}

// NewWriter creates a writer for dir/fileName
func NewWriter(dir, fileName string, logger arbor.ILogger) *Writer {
	return &Writer{
		dir:      dir,
		fileName: fileName,
		logger:   logger,
	}
}

// Path returns the report file path
func (w *Writer) Path() string {
	return filepath.Join(w.dir, w.fileName)
}

// Write creates the output directory if needed and replaces the report with
// the header followed by one row per record, in order
func (w *Writer) Write(records []models.TimingRecord) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory %s: %w", w.dir, err)
	}

	path := w.Path()
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	csvWriter := csv.NewWriter(buf)

	if err := csvWriter.Write(Header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for i, record := range records {
		if err := csvWriter.Write(Row(record)); err != nil {
			return fmt.Errorf("failed to write report row %d: %w", i+1, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush report %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close report %s: %w", path, err)
	}

	w.logger.Info().
		Str("path", path).
		Int("records", len(records)).
		Msg("Report written")

	return nil
}

// Row renders one record as report fields
func Row(record models.TimingRecord) []string {
	return []string{
		record.Timestamp.UTC().Format(TimestampLayout),
		record.Instance,
		record.FileName,
		strconv.FormatFloat(record.RequestTimeInSeconds, 'f', 4, 64),
	}
}
