package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

func (p *Persistence) FindByID(_ context.Context, id string) (*models.AutomationStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	step, ok := p.steps[id]
	if !ok {
		return nil, persistence.ErrStepNotFound
	}

	return step, nil
}

func (p *Persistence) FindByParentID(_ context.Context, parentID string) ([]*models.AutomationStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	steps := make([]*models.AutomationStep, 0)

	for _, step := range p.steps {
		if step.ParentID != nil && *step.ParentID == parentID {
			steps = append(steps, step)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].ID < steps[j].ID })

	return steps, nil
}

func (p *Persistence) FindChild(_ context.Context, parentID string) (*models.AutomationStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.childLocked(parentID, nil)
}

func (p *Persistence) FindBranchChild(_ context.Context, parentID string, branchIndex int) (*models.AutomationStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.childLocked(parentID, &branchIndex)
}

func (p *Persistence) FindRoot(_ context.Context, automationID string) (*models.AutomationStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, step := range p.steps {
		if step.AutomationID == automationID && step.ParentID == nil {
			return step, nil
		}
	}

	return nil, persistence.ErrStepNotFound
}

func (p *Persistence) CreateTrigger(_ context.Context, automationID, subtype string, config map[string]any) (*models.AutomationStep, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, step := range p.steps {
		if step.AutomationID == automationID && step.ParentID == nil {
			return nil, persistence.ErrTriggerExists
		}
	}

	trigger := newStep(automationID, models.StepTypeTrigger, subtype, config)
	end := newStep(automationID, models.StepTypeEnd, models.SubtypeEnd, nil)
	end.ParentID = &trigger.ID

	p.steps[trigger.ID] = trigger
	p.steps[end.ID] = end

	return trigger, nil
}

func (p *Persistence) CreateStep(_ context.Context, automationID, parentID string, branchIndex *int, stepType models.StepType, subtype string, config map[string]any) (*models.AutomationStep, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	parent, ok := p.steps[parentID]
	if !ok {
		return nil, persistence.ErrStepNotFound
	}

	if parent.IsEnd() {
		return nil, persistence.ErrStepNotSpliceable
	}

	step := newStep(automationID, stepType, subtype, config)
	step.ParentID = &parentID
	step.BranchIndex = branchIndex

	// Splice: whatever occupied the slot becomes the new step's child.
	occupant, err := p.childLocked(parentID, branchIndex)
	if err == nil {
		occupant.ParentID = &step.ID
		occupant.BranchIndex = nil
		occupant.UpdatedAt = time.Now().UTC()
	}

	p.steps[step.ID] = step

	return step, nil
}

func (p *Persistence) CreateIfElseStep(_ context.Context, automationID, parentID string, branchIndex *int, config map[string]any) (*models.AutomationStep, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	parent, ok := p.steps[parentID]
	if !ok {
		return nil, persistence.ErrStepNotFound
	}

	if parent.IsEnd() {
		return nil, persistence.ErrStepNotSpliceable
	}

	rule := newStep(automationID, models.StepTypeRule, models.SubtypeRuleIfElse, config)
	rule.ParentID = &parentID
	rule.BranchIndex = branchIndex

	// The occupant of the slot continues on the YES branch; the NO branch
	// gets a placeholder action followed by an end step.
	occupant, err := p.childLocked(parentID, branchIndex)
	if err == nil {
		yes := models.BranchYes
		occupant.ParentID = &rule.ID
		occupant.BranchIndex = &yes
		occupant.UpdatedAt = time.Now().UTC()
	}

	no := models.BranchNo
	placeholder := newStep(automationID, models.StepTypeAction, models.SubtypeActionPlaceholder, nil)
	placeholder.ParentID = &rule.ID
	placeholder.BranchIndex = &no

	end := newStep(automationID, models.StepTypeEnd, models.SubtypeEnd, nil)
	end.ParentID = &placeholder.ID

	p.steps[rule.ID] = rule
	p.steps[placeholder.ID] = placeholder
	p.steps[end.ID] = end

	return rule, nil
}

func (p *Persistence) UpdateConfiguration(_ context.Context, id string, config map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	step, ok := p.steps[id]
	if !ok {
		return persistence.ErrStepNotFound
	}

	step.Configuration = config
	step.UpdatedAt = time.Now().UTC()

	return nil
}

// childLocked finds the child of parentID on the given branch slot. Callers
// hold the lock.
func (p *Persistence) childLocked(parentID string, branchIndex *int) (*models.AutomationStep, error) {
	for _, step := range p.steps {
		if step.ParentID == nil || *step.ParentID != parentID {
			continue
		}

		if branchIndex == nil {
			if step.BranchIndex == nil {
				return step, nil
			}
		} else if step.BranchIndex != nil && *step.BranchIndex == *branchIndex {
			return step, nil
		}
	}

	return nil, persistence.ErrStepNotFound
}

func newStep(automationID string, stepType models.StepType, subtype string, config map[string]any) *models.AutomationStep {
	now := time.Now().UTC()

	return &models.AutomationStep{
		ID:            uuid.New().String(),
		AutomationID:  automationID,
		Type:          stepType,
		Subtype:       subtype,
		Configuration: config,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
