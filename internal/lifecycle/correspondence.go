package lifecycle

import (
	"fmt"
	"strings"

	"corrflow/internal/services"
)

// Status represents the visible lifecycle of a correspondence.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

var allStatuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusArchived}

var statusTransitions = map[Status][]Status{
	StatusDraft:    {StatusPending, StatusApproved, StatusArchived},
	StatusPending:  {StatusApproved, StatusRejected, StatusArchived},
	StatusApproved: {StatusArchived},
	StatusRejected: {StatusArchived},
}

// Statuses returns every correspondence status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a persisted or user-supplied value into a Status.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the workflow has finished for s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusArchived:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal correspondence move.
// draft -> approved exists only for submissions whose chain is empty under
// the "approve" policy.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckCorrespondence returns ErrInvalidTransition when from -> to is not allowed.
func CheckCorrespondence(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return services.Wrap(services.ErrInvalidTransition, "correspondence", "transition",
		fmt.Sprintf("%s -> %s", from, to), nil)
}

// Priority is the urgency attached to a correspondence.
type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityImportant Priority = "important"
	PriorityUrgent    Priority = "urgent"
)

// ParsePriority validates a priority value; empty input is rejected.
func ParsePriority(value string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(value))) {
	case PriorityNormal:
		return PriorityNormal, true
	case PriorityImportant:
		return PriorityImportant, true
	case PriorityUrgent:
		return PriorityUrgent, true
	default:
		return "", false
	}
}

// Placement is the organizational slot a sender writes from.
type Placement string

const (
	PlacementDivision   Placement = "division"
	PlacementDepartment Placement = "department"
	PlacementSchool     Placement = "school"
	PlacementManagement Placement = "management"
)
