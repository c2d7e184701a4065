package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type MilestoneRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewMilestoneRepository(db Querier, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{db: db, logger: logger}
}

const milestoneColumns = `id, assignment_id, title, due_date, status, submission_notes,
	submission_url, submitted_at, change_request, template_title, template_due,
	created_at, updated_at`

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var (
		m           model.Milestone
		due         time.Time
		change      []byte
		templateDue *time.Time
	)
	err := row.Scan(
		&m.ID,
		&m.AssignmentID,
		&m.Title,
		&due,
		&m.Status,
		&m.SubmissionNotes,
		&m.SubmissionURL,
		&m.SubmittedAt,
		&change,
		&m.TemplateTitle,
		&templateDue,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	m.DueDate = formatDate(due)
	if templateDue != nil {
		m.TemplateDue = formatDate(*templateDue)
	}
	if len(change) > 0 {
		var c model.MilestoneChange
		if err := json.Unmarshal(change, &c); err != nil {
			return nil, fmt.Errorf("failed to decode change request of milestone %d: %w", m.ID, err)
		}
		m.ChangeRequest = &c
	}
	return &m, nil
}

func encodeChange(c *model.MilestoneChange) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// templateDate maps an empty template due to NULL.
func templateDate(due string) (*time.Time, error) {
	if due == "" {
		return nil, nil
	}
	d, err := parseDate(due)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *MilestoneRepository) Create(ctx context.Context, m *model.Milestone) error {
	due, err := parseDate(m.DueDate)
	if err != nil {
		return err
	}
	templateDue, err := templateDate(m.TemplateDue)
	if err != nil {
		return err
	}
	change, err := encodeChange(m.ChangeRequest)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `
        INSERT INTO milestones (assignment_id, title, due_date, status, submission_notes,
                                submission_url, submitted_at, change_request,
                                template_title, template_due)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at, updated_at
    `,
		m.AssignmentID,
		m.Title,
		due,
		m.Status,
		m.SubmissionNotes,
		m.SubmissionURL,
		m.SubmittedAt,
		change,
		m.TemplateTitle,
		templateDue,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert milestone",
			zap.Int64("assignment_id", m.AssignmentID),
			zap.String("title", m.Title),
			zap.Error(err),
		)
		return translate(err)
	}

	r.logger.Info("Milestone inserted successfully",
		zap.Int64("id", m.ID),
		zap.Int64("assignment_id", m.AssignmentID),
	)
	return nil
}

func (r *MilestoneRepository) get(ctx context.Context, id int64, lock bool) (*model.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	m, err := scanMilestone(r.db.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, engagement.ErrNoRecord) {
		r.logger.Error("Failed to get milestone", zap.Int64("id", id), zap.Error(err))
	}
	return m, err
}

func (r *MilestoneRepository) GetByID(ctx context.Context, id int64) (*model.Milestone, error) {
	return r.get(ctx, id, false)
}

func (r *MilestoneRepository) GetForUpdate(ctx context.Context, id int64) (*model.Milestone, error) {
	return r.get(ctx, id, true)
}

func (r *MilestoneRepository) Exists(ctx context.Context, assignmentID int64, title, dueDate string) (bool, error) {
	due, err := parseDate(dueDate)
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM milestones
            WHERE assignment_id = $1 AND title = $2 AND due_date = $3
        )
    `, assignmentID, title, due).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

// ListByAssignment returns milestones in due order.
func (r *MilestoneRepository) ListByAssignment(ctx context.Context, assignmentID int64) ([]*model.Milestone, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+milestoneColumns+` FROM milestones
        WHERE assignment_id = $1
        ORDER BY due_date ASC, id ASC
    `, assignmentID)
	if err != nil {
		r.logger.Error("Failed to list milestones", zap.Int64("assignment_id", assignmentID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MilestoneRepository) Update(ctx context.Context, m *model.Milestone) error {
	due, err := parseDate(m.DueDate)
	if err != nil {
		return err
	}
	change, err := encodeChange(m.ChangeRequest)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `
        UPDATE milestones
        SET title = $1, due_date = $2, status = $3, submission_notes = $4,
            submission_url = $5, submitted_at = $6, change_request = $7, updated_at = NOW()
        WHERE id = $8
        RETURNING updated_at
    `,
		m.Title,
		due,
		m.Status,
		m.SubmissionNotes,
		m.SubmissionURL,
		m.SubmittedAt,
		change,
		m.ID,
	).Scan(&m.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update milestone", zap.Int64("id", m.ID), zap.Error(err))
		return translate(err)
	}

	r.logger.Info("Milestone updated",
		zap.Int64("id", m.ID),
		zap.String("status", m.Status),
	)
	return nil
}
