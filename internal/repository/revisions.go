package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/pkg/utils"
)

type revisionRow struct {
	ID          string `db:"id"`
	SubjectID   string `db:"subject_id"`
	SubjectName string `db:"subject_name"`
	DueDate     string `db:"due_date"`
	CycleDay    int    `db:"cycle_day"`
	Status      string `db:"status"`
}

func (r *Postgres) LoadRevisions(ctx context.Context) ([]models.Revision, error) {
	var rows []revisionRow
	query := `
		SELECT id, subject_id, subject_name, due_date, cycle_day, status
		FROM revisions
		ORDER BY due_date, cycle_day
	`
	if err := r.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load revisions: %w", err)
	}

	revisions := make([]models.Revision, 0, len(rows))
	for _, row := range rows {
		revisions = append(revisions, models.Revision{
			ID:          row.ID,
			SubjectID:   row.SubjectID,
			SubjectName: row.SubjectName,
			DueDate:     utils.Date(row.DueDate),
			CycleDay:    row.CycleDay,
			Status:      models.RevisionStatus(row.Status),
		})
	}
	return revisions, nil
}

func (r *Postgres) CreateRevisions(ctx context.Context, revisions []models.Revision) error {
	if len(revisions) == 0 {
		return nil
	}

	query := r.psql.Insert("revisions").
		Columns("id", "subject_id", "subject_name", "due_date", "cycle_day", "status")
	for _, revision := range revisions {
		query = query.Values(revision.ID, revision.SubjectID, revision.SubjectName,
			string(revision.DueDate), revision.CycleDay, string(revision.Status))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (subject_id: %s): %w", revisions[0].SubjectID, err)
	}
	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("create revisions (subject_id: %s): %w", revisions[0].SubjectID, err)
	}
	return nil
}

func (r *Postgres) UpdateRevisionStatus(ctx context.Context, revisionID string, status models.RevisionStatus) error {
	query := r.psql.Update("revisions").
		Set("status", string(status)).
		Where("id = ?", revisionID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (revision_id: %s): %w", revisionID, err)
	}
	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("update revision status (revision_id: %s, status: %s): %w", revisionID, status, err)
	}
	return nil
}
