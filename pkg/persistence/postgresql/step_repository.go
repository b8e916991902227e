package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

// StepRepository stores the automation step tree. The splice mutations run
// in a transaction: a crash can never leave a step chain half re-parented.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStepRepository(db *sql.DB, logger *slog.Logger) *StepRepository {
	return &StepRepository{db: db, logger: logger}
}

const stepColumns = `
			id
		  , automation_id
		  , type
		  , subtype
		  , configuration
		  , parent_id
		  , branch_index
		  , created_at
		  , updated_at
`

func (r *StepRepository) GetByID(ctx context.Context, id string) (*models.AutomationStep, error) {
	query := `SELECT` + stepColumns + `FROM automation_steps WHERE id = $1`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, fmt.Errorf("failed to scan automation step: %w", err)
	}

	return step, nil
}

func (r *StepRepository) GetByParent(ctx context.Context, parentID string) ([]*models.AutomationStep, error) {
	query := `SELECT` + stepColumns + `FROM automation_steps WHERE parent_id = $1 ORDER BY branch_index NULLS FIRST, id`

	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.AutomationStep, 0)

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation step: %w", err)
		}

		steps = append(steps, step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automation steps: %w", err)
	}

	return steps, nil
}

func (r *StepRepository) Child(ctx context.Context, parentID string) (*models.AutomationStep, error) {
	query := `SELECT` + stepColumns + `FROM automation_steps WHERE parent_id = $1 AND branch_index IS NULL`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, parentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, fmt.Errorf("failed to scan automation step: %w", err)
	}

	return step, nil
}

func (r *StepRepository) BranchChild(ctx context.Context, parentID string, branchIndex int) (*models.AutomationStep, error) {
	query := `SELECT` + stepColumns + `FROM automation_steps WHERE parent_id = $1 AND branch_index = $2`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, parentID, branchIndex))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, fmt.Errorf("failed to scan automation step: %w", err)
	}

	return step, nil
}

func (r *StepRepository) Root(ctx context.Context, automationID string) (*models.AutomationStep, error) {
	query := `SELECT` + stepColumns + `FROM automation_steps WHERE automation_id = $1 AND parent_id IS NULL`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, automationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, fmt.Errorf("failed to scan automation step: %w", err)
	}

	return step, nil
}

func (r *StepRepository) CreateTrigger(ctx context.Context, automationID, subtype string, config map[string]any) (*models.AutomationStep, error) {
	trigger := buildStep(automationID, models.StepTypeTrigger, subtype, config)
	end := buildStep(automationID, models.StepTypeEnd, models.SubtypeEnd, nil)
	end.ParentID = &trigger.ID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	// One root per automation; the partial unique index on
	// (automation_id) WHERE parent_id IS NULL backstops concurrent creates.
	var rootExists bool

	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM automation_steps WHERE automation_id = $1 AND parent_id IS NULL)`,
		automationID,
	).Scan(&rootExists)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing trigger: %w", err)
	}

	if rootExists {
		return nil, persistence.ErrTriggerExists
	}

	err = insertStep(ctx, tx, trigger)
	if err != nil {
		return nil, err
	}

	err = insertStep(ctx, tx, end)
	if err != nil {
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit trigger creation: %w", err)
	}

	return trigger, nil
}

func (r *StepRepository) CreateStep(ctx context.Context, automationID, parentID string, branchIndex *int, stepType models.StepType, subtype string, config map[string]any) (*models.AutomationStep, error) {
	step := buildStep(automationID, stepType, subtype, config)

	err := r.splice(ctx, parentID, branchIndex, step, false)
	if err != nil {
		return nil, err
	}

	return step, nil
}

func (r *StepRepository) CreateIfElseStep(ctx context.Context, automationID, parentID string, branchIndex *int, config map[string]any) (*models.AutomationStep, error) {
	rule := buildStep(automationID, models.StepTypeRule, models.SubtypeRuleIfElse, config)

	err := r.splice(ctx, parentID, branchIndex, rule, true)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// splice inserts step into the (parentID, branchIndex) slot. The previous
// occupant becomes the new step's child: on the YES branch when the new
// step is a rule, on the plain child slot otherwise. Rules additionally get
// a placeholder action followed by an end step on the NO branch.
//
// The step is inserted detached and attached to the slot only after the
// occupant has moved out, so the one-occupant-per-slot index holds at every
// statement.
func (r *StepRepository) splice(ctx context.Context, parentID string, branchIndex *int, step *models.AutomationStep, asRule bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	var parentType models.StepType

	err = tx.QueryRowContext(ctx, `SELECT type FROM automation_steps WHERE id = $1 FOR UPDATE`, parentID).Scan(&parentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrStepNotFound
		}

		return fmt.Errorf("failed to lock parent step: %w", err)
	}

	if parentType == models.StepTypeEnd {
		return persistence.ErrStepNotSpliceable
	}

	err = insertStep(ctx, tx, step)
	if err != nil {
		return err
	}

	occupantID, err := slotOccupant(ctx, tx, parentID, branchIndex)
	if err != nil {
		return err
	}

	if occupantID != "" {
		occupantBranch := sql.NullInt64{}
		if asRule {
			occupantBranch = sql.NullInt64{Int64: models.BranchYes, Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE automation_steps SET parent_id = $1, branch_index = $2, updated_at = NOW() WHERE id = $3`,
			step.ID, occupantBranch, occupantID,
		)
		if err != nil {
			return fmt.Errorf("failed to re-parent occupant step: %w", err)
		}
	}

	if asRule {
		no := models.BranchNo
		placeholder := buildStep(step.AutomationID, models.StepTypeAction, models.SubtypeActionPlaceholder, nil)
		placeholder.ParentID = &step.ID
		placeholder.BranchIndex = &no

		err = insertStep(ctx, tx, placeholder)
		if err != nil {
			return err
		}

		end := buildStep(step.AutomationID, models.StepTypeEnd, models.SubtypeEnd, nil)
		end.ParentID = &placeholder.ID

		err = insertStep(ctx, tx, end)
		if err != nil {
			return err
		}
	}

	var slot sql.NullInt64
	if branchIndex != nil {
		slot = sql.NullInt64{Int64: int64(*branchIndex), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE automation_steps SET parent_id = $1, branch_index = $2 WHERE id = $3`,
		parentID, slot, step.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to attach step to parent: %w", err)
	}

	step.ParentID = &parentID
	step.BranchIndex = branchIndex

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit step splice: %w", err)
	}

	return nil
}

func (r *StepRepository) UpdateConfiguration(ctx context.Context, id string, config map[string]any) error {
	configuration, err := marshalConfiguration(config)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE automation_steps SET configuration = $1, updated_at = NOW() WHERE id = $2`,
		configuration, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update step configuration: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrStepNotFound
	}

	return nil
}

func slotOccupant(ctx context.Context, tx *sql.Tx, parentID string, branchIndex *int) (string, error) {
	var (
		id  string
		err error
	)

	if branchIndex == nil {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM automation_steps WHERE parent_id = $1 AND branch_index IS NULL FOR UPDATE`,
			parentID,
		).Scan(&id)
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM automation_steps WHERE parent_id = $1 AND branch_index = $2 FOR UPDATE`,
			parentID, *branchIndex,
		).Scan(&id)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to find slot occupant: %w", err)
	}

	return id, nil
}

func insertStep(ctx context.Context, tx *sql.Tx, step *models.AutomationStep) error {
	configuration, err := marshalConfiguration(step.Configuration)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO automation_steps (id, automation_id, type, subtype, configuration, parent_id, branch_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		step.ID, step.AutomationID, step.Type, step.Subtype, configuration,
		step.ParentID, step.BranchIndex, step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert automation step: %w", err)
	}

	return nil
}

func buildStep(automationID string, stepType models.StepType, subtype string, config map[string]any) *models.AutomationStep {
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

func marshalConfiguration(config map[string]any) ([]byte, error) {
	if config == nil {
		config = map[string]any{}
	}

	configuration, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step configuration: %w", err)
	}

	return configuration, nil
}

func scanStep(row rowScanner) (*models.AutomationStep, error) {
	var (
		step          models.AutomationStep
		configuration []byte
		parentID      sql.NullString
		branchIndex   sql.NullInt64
	)

	err := row.Scan(
		&step.ID, &step.AutomationID, &step.Type, &step.Subtype, &configuration,
		&parentID, &branchIndex, &step.CreatedAt, &step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		step.ParentID = &parentID.String
	}

	if branchIndex.Valid {
		index := int(branchIndex.Int64)
		step.BranchIndex = &index
	}

	if len(configuration) > 0 {
		err = json.Unmarshal(configuration, &step.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal step configuration: %w", err)
		}
	}

	return &step, nil
}
