package workflow

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"corrflow/internal/lifecycle"
	"corrflow/internal/services"
)

// Decision is the outcome a signer applies to a stage.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// StageStatus returns the stage status the decision moves a pending stage to.
func (d Decision) StageStatus() lifecycle.StageStatus {
	if d == DecisionReject {
		return lifecycle.StageRejected
	}
	return lifecycle.StageApproved
}

// Classifier maps free-text decision labels onto Decision values. Labels are
// compared after NFC normalization and Unicode case folding, so "Rejected"
// and "rejected" match, as do differently composed Arabic spellings.
type Classifier struct {
	rejections map[string]struct{}
	fold       cases.Caser
}

// NewClassifier builds a classifier treating the given labels as rejections.
func NewClassifier(rejectionLabels []string) *Classifier {
	c := &Classifier{
		rejections: make(map[string]struct{}, len(rejectionLabels)),
		fold:       cases.Fold(),
	}
	for _, label := range rejectionLabels {
		if key := c.key(label); key != "" {
			c.rejections[key] = struct{}{}
		}
	}
	return c
}

func (c *Classifier) key(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return ""
	}
	return c.fold.String(norm.NFC.String(trimmed))
}

// Classify returns the decision a label denotes. Any non-empty label that is
// not a configured rejection approves.
func (c *Classifier) Classify(label string) (Decision, error) {
	key := c.key(label)
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "workflow", "sign", "decision is required", nil)
	}
	if _, ok := c.rejections[key]; ok {
		return DecisionReject, nil
	}
	return DecisionApprove, nil
}
