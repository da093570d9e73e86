package workflow

import (
	"context"
	"strings"

	"corrflow/internal/config"
	"corrflow/internal/directory"
	"corrflow/internal/lifecycle"
	"corrflow/internal/services"
	"corrflow/internal/store"
)

// Default stage names.
const (
	DivisionStageName   = "اعتماد الشعبة"
	DepartmentStageName = "اعتماد القسم"
	FinalStageName      = "التوقيع النهائي"
)

// Request carries the inputs of the stage builder. Zero ids mean absent.
type Request struct {
	SenderID         int64
	DivisionID       int64
	DepartmentID     int64
	FinalRecipientID int64
}

// Builder derives approval chains from the organization directory.
type Builder struct {
	dir            directory.Directory
	divisionName   string
	departmentName string
	finalName      string
}

// NewBuilder returns a builder resolving managers through dir. Stage names
// come from the [workflow] section when set.
func NewBuilder(cfg *config.Config, dir directory.Directory) *Builder {
	b := &Builder{
		dir:            dir,
		divisionName:   DivisionStageName,
		departmentName: DepartmentStageName,
		finalName:      FinalStageName,
	}
	if cfg != nil {
		b.divisionName = firstNonEmpty(cfg.Workflow.DivisionStage, b.divisionName)
		b.departmentName = firstNonEmpty(cfg.Workflow.DepartmentStage, b.departmentName)
		b.finalName = firstNonEmpty(cfg.Workflow.FinalStage, b.finalName)
	}
	return b
}

// Build returns the ordered stage list for req. Orders are dense from 1; the
// first stage is pending and the rest are waiting. An empty result is not an
// error here; the engine applies the empty-chain policy.
func (b *Builder) Build(ctx context.Context, req Request) ([]store.NewStage, error) {
	if req.SenderID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "build stages", "sender is required", nil)
	}
	var stages []store.NewStage
	add := func(name string, kind store.StageKind, assignee int64, signature bool) {
		order := len(stages) + 1
		stages = append(stages, store.NewStage{
			Name:              name,
			Kind:              kind,
			Order:             order,
			AssignedTo:        assignee,
			Status:            lifecycle.InitialStageStatus(order),
			RequiresSignature: signature,
		})
	}

	if req.DivisionID > 0 {
		manager, ok, err := b.dir.DivisionManager(ctx, req.DivisionID)
		if err != nil {
			return nil, services.Wrap(services.ErrUnavailable, "workflow", "build stages", "division manager lookup failed", err)
		}
		if ok && manager != req.SenderID {
			add(b.divisionName, store.StageKindDivision, manager, false)
		}
	}
	if req.DepartmentID > 0 {
		manager, ok, err := b.dir.DepartmentManager(ctx, req.DepartmentID)
		if err != nil {
			return nil, services.Wrap(services.ErrUnavailable, "workflow", "build stages", "department manager lookup failed", err)
		}
		if ok && manager != req.SenderID {
			add(b.departmentName, store.StageKindDepartment, manager, false)
		}
	}
	if req.FinalRecipientID > 0 && req.FinalRecipientID != req.SenderID {
		add(b.finalName, store.StageKindFinal, req.FinalRecipientID, true)
	}
	return stages, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
