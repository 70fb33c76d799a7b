package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/pkg/utils"
)

type subjectRow struct {
	ID                 string  `db:"id"`
	Name               string  `db:"name"`
	Edital             string  `db:"edital"`
	WeeklyFrequency    int     `db:"weekly_frequency"`
	HoursPerDay        float64 `db:"hours_per_day"`
	MaxHoursPerSession float64 `db:"max_hours_per_session"`
	DaysUntilExam      int     `db:"days_until_exam"`
	Color              string  `db:"color"`
	ReviewInterval     int     `db:"review_interval"`
	NextReview         *string `db:"next_review"`
	LastStudied        *string `db:"last_studied"`
}

type taskRow struct {
	ID                     string `db:"id"`
	SubjectID              string `db:"subject_id"`
	Type                   string `db:"type"`
	Status                 string `db:"status"`
	PlannedDurationMinutes int    `db:"planned_duration_minutes"`
	ScheduledDate          string `db:"scheduled_date"`
	ActualDurationMinutes  *int   `db:"actual_duration_minutes"`
	QuestionsMade          *int   `db:"questions_made"`
	QuestionsHit           *int   `db:"questions_hit"`
	ScorePercentage        *int   `db:"score_percentage"`
}

type historyRow struct {
	SubjectID string `db:"subject_id"`
	Date      string `db:"date"`
	EntryType string `db:"entry_type"`
}

type questionRow struct {
	SubjectID string `db:"subject_id"`
	Date      string `db:"date"`
	Made      int    `db:"made"`
	Hit       int    `db:"hit"`
}

func (r *Postgres) LoadSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjectRows []subjectRow
	query := `
		SELECT id, name, edital, weekly_frequency, hours_per_day, max_hours_per_session,
		       days_until_exam, color, review_interval, next_review, last_studied
		FROM subjects
		ORDER BY created_at
	`
	if err := r.SelectContext(ctx, &subjectRows, query); err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	if len(subjectRows) == 0 {
		return nil, nil
	}

	var taskRows []taskRow
	query = `
		SELECT id, subject_id, type, status, planned_duration_minutes, scheduled_date,
		       actual_duration_minutes, questions_made, questions_hit, score_percentage
		FROM tasks
		ORDER BY subject_id, scheduled_date, created_at
	`
	if err := r.SelectContext(ctx, &taskRows, query); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	var historyRows []historyRow
	if err := r.SelectContext(ctx, &historyRows, `SELECT subject_id, date, entry_type FROM subject_history ORDER BY date`); err != nil {
		return nil, fmt.Errorf("load subject history: %w", err)
	}

	var questionRows []questionRow
	if err := r.SelectContext(ctx, &questionRows, `SELECT subject_id, date, made, hit FROM question_history ORDER BY date`); err != nil {
		return nil, fmt.Errorf("load question history: %w", err)
	}

	tasksBySubject := make(map[string][]models.Task, len(subjectRows))
	for _, row := range taskRows {
		tasksBySubject[row.SubjectID] = append(tasksBySubject[row.SubjectID], row.toTask())
	}
	historyBySubject := make(map[string][]models.HistoryEntry)
	for _, row := range historyRows {
		historyBySubject[row.SubjectID] = append(historyBySubject[row.SubjectID], models.HistoryEntry{
			Date: utils.Date(row.Date),
			Type: row.EntryType,
		})
	}
	questionsBySubject := make(map[string][]models.QuestionRecord)
	for _, row := range questionRows {
		questionsBySubject[row.SubjectID] = append(questionsBySubject[row.SubjectID], models.QuestionRecord{
			Date: utils.Date(row.Date),
			Made: row.Made,
			Hit:  row.Hit,
		})
	}

	subjects := make([]models.Subject, 0, len(subjectRows))
	for _, row := range subjectRows {
		subject := models.Subject{
			ID:                 row.ID,
			Name:               row.Name,
			Edital:             row.Edital,
			WeeklyFrequency:    row.WeeklyFrequency,
			HoursPerDay:        row.HoursPerDay,
			MaxHoursPerSession: row.MaxHoursPerSession,
			DaysUntilExam:      row.DaysUntilExam,
			Color:              row.Color,
			ReviewInterval:     row.ReviewInterval,
			Tasks:              tasksBySubject[row.ID],
			History:            historyBySubject[row.ID],
			QuestionHistory:    questionsBySubject[row.ID],
		}
		if row.NextReview != nil {
			next := utils.Date(*row.NextReview)
			subject.NextReview = &next
		}
		if row.LastStudied != nil {
			last := utils.Date(*row.LastStudied)
			subject.LastStudied = &last
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// SaveSubjects replaces the whole persisted subject set in one
// transaction: delete everything, reinsert everything. Task rows cascade
// from their subjects.
func (r *Postgres) SaveSubjects(ctx context.Context, subjects []models.Subject) error {
	return r.RunInTx(ctx, func(tx models.Repository) error {
		txr := tx.(*Postgres)

		if _, err := txr.ExecContext(ctx, `DELETE FROM subjects`); err != nil {
			return fmt.Errorf("clear subjects: %w", err)
		}

		for _, subject := range subjects {
			if err := txr.insertSubject(ctx, subject); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Postgres) insertSubject(ctx context.Context, subject models.Subject) error {
	query := r.psql.Insert("subjects").
		Columns("id", "name", "edital", "weekly_frequency", "hours_per_day", "max_hours_per_session",
			"days_until_exam", "color", "review_interval", "next_review", "last_studied").
		Values(subject.ID, subject.Name, subject.Edital, subject.WeeklyFrequency, subject.HoursPerDay,
			subject.MaxHoursPerSession, subject.DaysUntilExam, subject.Color, subject.ReviewInterval,
			datePtr(subject.NextReview), datePtr(subject.LastStudied))

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (subject_id: %s): %w", subject.ID, err)
	}
	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert subject (subject_id: %s, name: %s): %w", subject.ID, subject.Name, err)
	}

	for _, task := range subject.Tasks {
		if err := r.insertTask(ctx, subject.ID, task); err != nil {
			return err
		}
	}
	for _, entry := range subject.History {
		insert := r.psql.Insert("subject_history").
			Columns("subject_id", "date", "entry_type").
			Values(subject.ID, string(entry.Date), entry.Type)
		sql, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (subject_id: %s): %w", subject.ID, err)
		}
		if _, err = r.ExecContext(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert subject history (subject_id: %s): %w", subject.ID, err)
		}
	}
	for _, record := range subject.QuestionHistory {
		insert := r.psql.Insert("question_history").
			Columns("subject_id", "date", "made", "hit").
			Values(subject.ID, string(record.Date), record.Made, record.Hit)
		sql, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (subject_id: %s): %w", subject.ID, err)
		}
		if _, err = r.ExecContext(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert question history (subject_id: %s): %w", subject.ID, err)
		}
	}
	return nil
}

func (r *Postgres) insertTask(ctx context.Context, subjectID string, task models.Task) error {
	row := toTaskRow(subjectID, task)
	query := r.psql.Insert("tasks").
		Columns("id", "subject_id", "type", "status", "planned_duration_minutes", "scheduled_date",
			"actual_duration_minutes", "questions_made", "questions_hit", "score_percentage").
		Values(row.ID, row.SubjectID, row.Type, row.Status, row.PlannedDurationMinutes, row.ScheduledDate,
			row.ActualDurationMinutes, row.QuestionsMade, row.QuestionsHit, row.ScorePercentage)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (task_id: %s): %w", task.ID, err)
	}
	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert task (subject_id: %s, task_id: %s): %w", subjectID, task.ID, err)
	}
	return nil
}

// UpdateTask persists one task row after a status mutation, without
// touching the rest of the subject graph.
func (r *Postgres) UpdateTask(ctx context.Context, subjectID string, task models.Task) error {
	row := toTaskRow(subjectID, task)
	query := r.psql.Update("tasks").
		Set("status", row.Status).
		Set("planned_duration_minutes", row.PlannedDurationMinutes).
		Set("scheduled_date", row.ScheduledDate).
		Set("actual_duration_minutes", row.ActualDurationMinutes).
		Set("questions_made", row.QuestionsMade).
		Set("questions_hit", row.QuestionsHit).
		Set("score_percentage", row.ScorePercentage).
		Where("id = ?", task.ID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (task_id: %s): %w", task.ID, err)
	}
	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("update task (subject_id: %s, task_id: %s): %w", subjectID, task.ID, err)
	}
	return nil
}

func (row taskRow) toTask() models.Task {
	task := models.Task{
		ID:                     row.ID,
		Type:                   models.TaskType(row.Type),
		Status:                 models.TaskStatus(row.Status),
		PlannedDurationMinutes: row.PlannedDurationMinutes,
		ScheduledDate:          utils.Date(row.ScheduledDate),
	}
	if row.QuestionsMade != nil {
		tracking := models.ExerciseTracking{
			QuestionsMade: *row.QuestionsMade,
		}
		if row.QuestionsHit != nil {
			tracking.QuestionsHit = *row.QuestionsHit
		}
		if row.ScorePercentage != nil {
			tracking.ScorePercentage = *row.ScorePercentage
		}
		if row.ActualDurationMinutes != nil {
			tracking.ActualDurationMinutes = *row.ActualDurationMinutes
		}
		task.Tracking = &tracking
	}
	return task
}

func toTaskRow(subjectID string, task models.Task) taskRow {
	row := taskRow{
		ID:                     task.ID,
		SubjectID:              subjectID,
		Type:                   string(task.Type),
		Status:                 string(task.Status),
		PlannedDurationMinutes: task.PlannedDurationMinutes,
		ScheduledDate:          string(task.ScheduledDate),
	}
	if task.Tracking != nil {
		made, hit, score, actual := task.Tracking.QuestionsMade, task.Tracking.QuestionsHit,
			task.Tracking.ScorePercentage, task.Tracking.ActualDurationMinutes
		row.QuestionsMade = &made
		row.QuestionsHit = &hit
		row.ScorePercentage = &score
		row.ActualDurationMinutes = &actual
	}
	return row
}

func datePtr(d *utils.Date) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}
