package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yourusername/study-planner/internal/models"
)

// Settings are a singleton row keyed by a fixed id.
const settingsRowID = 1

func (r *Postgres) LoadSettings(ctx context.Context) (*models.UserSettings, error) {
	query := `
		SELECT study_start_time, study_end_time, break_duration_minutes
		FROM user_settings
		WHERE id = $1
	`

	var settings models.UserSettings
	err := r.GetContext(ctx, &settings, query, settingsRowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return &settings, nil
}

func (r *Postgres) SaveSettings(ctx context.Context, settings models.UserSettings) error {
	query := r.psql.Insert("user_settings").
		Columns("id", "study_start_time", "study_end_time", "break_duration_minutes").
		Values(settingsRowID, settings.StudyStartTime, settings.StudyEndTime, settings.BreakDurationMinutes).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			study_start_time = EXCLUDED.study_start_time,
			study_end_time = EXCLUDED.study_end_time,
			break_duration_minutes = EXCLUDED.break_duration_minutes`)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (settings): %w", err)
	}
	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
