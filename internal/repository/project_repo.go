package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type ProjectRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewProjectRepository(db Querier, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `id, client_id, title, description, scope, milestone_templates,
	budget_min, budget_max, deadline, skills, status, created_at, updated_at`

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.Int64("client_id", p.ClientID),
		zap.String("title", p.Title),
	)

	templates, err := json.Marshal(p.MilestoneTemplates)
	if err != nil {
		return fmt.Errorf("failed to encode milestone templates: %w", err)
	}
	deadline, err := parseDate(p.Deadline)
	if err != nil {
		return err
	}
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}

	query := `
        INSERT INTO projects (client_id, title, description, scope, milestone_templates,
                              budget_min, budget_max, deadline, skills, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		p.ClientID,
		p.Title,
		p.Description,
		p.Scope,
		templates,
		p.BudgetMin,
		p.BudgetMax,
		deadline,
		skills,
		p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err))
		return translate(err)
	}

	r.logger.Info("Project inserted successfully",
		zap.Int64("id", p.ID),
		zap.Int64("client_id", p.ClientID),
	)
	return nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		p         model.Project
		templates []byte
		deadline  time.Time
	)
	err := row.Scan(
		&p.ID,
		&p.ClientID,
		&p.Title,
		&p.Description,
		&p.Scope,
		&templates,
		&p.BudgetMin,
		&p.BudgetMax,
		&deadline,
		&p.Skills,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Deadline = formatDate(deadline)
	if len(templates) > 0 {
		if err := json.Unmarshal(templates, &p.MilestoneTemplates); err != nil {
			return nil, fmt.Errorf("failed to decode milestone templates of project %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (r *ProjectRepository) get(ctx context.Context, id int64, lock bool) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		err = translate(err)
		if !errors.Is(err, engagement.ErrNoRecord) {
			r.logger.Error("Failed to get project", zap.Int64("id", id), zap.Error(err))
		}
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	return r.get(ctx, id, false)
}

func (r *ProjectRepository) GetForUpdate(ctx context.Context, id int64) (*model.Project, error) {
	return r.get(ctx, id, true)
}

func (r *ProjectRepository) List(ctx context.Context, filter engagement.ProjectFilter) ([]*model.Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.ClientID > 0 {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + projectColumns + ` FROM projects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2
    `, status, id)
	if err != nil {
		r.logger.Error("Failed to update project status", zap.Int64("id", id), zap.Error(err))
		return err
	}
	r.logger.Info("Project status updated", zap.Int64("id", id), zap.String("status", status))
	return mustAffect(tag)
}
