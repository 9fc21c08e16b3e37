package timing

import (
	"errors"
	"fmt"

	"github.com/ternarybob/attachtimer/internal/models"
	"github.com/tidwall/gjson"
)

// fileNamePath locates the stored file name in an upload response:
// {"data":[{"fileName":{"segments":[{"text":"report.pdf"}]}}]}
const fileNamePath = "data.0.fileName.segments.0.text"

var (
	// ErrUnexpectedBody is returned when the upload response does not carry a file name
	ErrUnexpectedBody = errors.New("unexpected upload response body")

	// ErrMissingTiming is returned when the browser reported no usable timing for the request
	ErrMissingTiming = errors.New("missing request timing")
)

// Extract builds the timing record for one upload response. It has no side effects.
func Extract(body []byte, timing models.RequestTiming, instance string) (models.TimingRecord, error) {
	if !gjson.ValidBytes(body) {
		return models.TimingRecord{}, fmt.Errorf("%w: not valid JSON", ErrUnexpectedBody)
	}

	fileName := gjson.GetBytes(body, fileNamePath)
	if !fileName.Exists() {
		return models.TimingRecord{}, fmt.Errorf("%w: %s not found", ErrUnexpectedBody, fileNamePath)
	}
	if fileName.Type != gjson.String {
		return models.TimingRecord{}, fmt.Errorf("%w: %s is %s, want string", ErrUnexpectedBody, fileNamePath, fileName.Type)
	}

	// Unavailable timing phases are reported as -1
	if timing.RequestStart < 0 || timing.ResponseEnd < 0 {
		return models.TimingRecord{}, fmt.Errorf("%w: requestStart=%v responseEnd=%v", ErrMissingTiming, timing.RequestStart, timing.ResponseEnd)
	}
	if timing.ResponseEnd < timing.RequestStart {
		return models.TimingRecord{}, fmt.Errorf("%w: responseEnd %v before requestStart %v", ErrMissingTiming, timing.ResponseEnd, timing.RequestStart)
	}

	return models.TimingRecord{
		Timestamp:            timing.Started(),
		Instance:             instance,
		FileName:             fileName.String(),
		RequestTimeInSeconds: timing.Duration(),
	}, nil
}
