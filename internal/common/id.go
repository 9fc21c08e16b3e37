package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique id used to correlate the log lines of one run
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}
