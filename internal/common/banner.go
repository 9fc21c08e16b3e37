package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved target
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("AttachTimer", GetVersion())

	recordURL, err := config.ResolveURL(config.RecordEditPath())
	if err != nil {
		recordURL = config.RecordEditPath()
	}

	logger.Info().
		Str("instance", config.Instance.URL).
		Str("record", recordURL).
		Str("test_files", config.Paths.TestFiles).
		Int("timings_per_file", config.Run.TimingsPerFile).
		Msg("Configuration loaded")
}
