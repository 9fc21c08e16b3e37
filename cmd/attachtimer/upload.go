package main

import (
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the test files with the saved session",
	Long:  `Restores the session saved by login, uploads every test file and writes the CSV report.`,
	RunE:  runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}

	summary, err := application.Upload(cmd.Context())
	if err != nil {
		return err
	}

	application.Logger.Info().
		Str("report", application.ReportWriter.Path()).
		Int("records", summary.Records).
		Msg("Done")
	return nil
}
