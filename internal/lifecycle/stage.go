package lifecycle

import (
	"fmt"
	"strings"

	"corrflow/internal/services"
)

// StageStatus represents the lifecycle of a single approval stage.
type StageStatus string

const (
	StageWaiting  StageStatus = "waiting"
	StagePending  StageStatus = "pending"
	StageApproved StageStatus = "approved"
	StageRejected StageStatus = "rejected"
)

var allStageStatuses = []StageStatus{StageWaiting, StagePending, StageApproved, StageRejected}

var stageTransitions = map[StageStatus][]StageStatus{
	StageWaiting: {StagePending},
	StagePending: {StageApproved, StageRejected},
}

// StageStatuses returns every stage status in lifecycle order.
func StageStatuses() []StageStatus {
	return append([]StageStatus(nil), allStageStatuses...)
}

// ParseStageStatus converts a persisted value into a StageStatus.
func ParseStageStatus(value string) (StageStatus, bool) {
	candidate := StageStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStageStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition leaves s.
func (s StageStatus) IsTerminal() bool {
	return s == StageApproved || s == StageRejected
}

// CanStageTransition reports whether from -> to is a legal stage move.
func CanStageTransition(from, to StageStatus) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckStage returns ErrInvalidTransition when from -> to is not allowed.
func CheckStage(from, to StageStatus) error {
	if CanStageTransition(from, to) {
		return nil
	}
	return services.Wrap(services.ErrInvalidTransition, "stage", "transition",
		fmt.Sprintf("%s -> %s", displayStage(from), displayStage(to)), nil)
}

// InitialStageStatus returns the status a newly built stage starts in.
// Only the first stage of a chain starts pending.
func InitialStageStatus(order int) StageStatus {
	if order == 1 {
		return StagePending
	}
	return StageWaiting
}

func displayStage(s StageStatus) string {
	if s == "" {
		return "<none>"
	}
	return string(s)
}
