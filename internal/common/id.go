package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique suite-run ID with the "run_" prefix
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewScenarioID generates a unique scenario-execution ID with the "scn_" prefix
func NewScenarioID() string {
	return "scn_" + uuid.New().String()
}
