package models

import (
	"context"

	"github.com/yourusername/study-planner/pkg/utils"
)

// Repository is the persistence collaborator. Implementations must treat
// the in-memory state as authoritative: callers persist best-effort and
// never roll back on a repository error.
type Repository interface {
	LoadSubjects(ctx context.Context) ([]Subject, error)
	SaveSubjects(ctx context.Context, subjects []Subject) error
	// UpdateTask persists a single task row, so a status change does not
	// resend the whole subject graph.
	UpdateTask(ctx context.Context, subjectID string, task Task) error

	LoadRevisions(ctx context.Context) ([]Revision, error)
	CreateRevisions(ctx context.Context, revisions []Revision) error
	UpdateRevisionStatus(ctx context.Context, revisionID string, status RevisionStatus) error

	// LoadSettings returns nil when no settings row exists yet.
	LoadSettings(ctx context.Context) (*UserSettings, error)
	SaveSettings(ctx context.Context, settings UserSettings) error

	RunInTx(ctx context.Context, fn func(Repository) error) error
}

type Service interface {
	LoadState(ctx context.Context) error

	AddSubject(ctx context.Context, name, edital string, deadline utils.Date, hoursPerDay float64, daysPerWeek int, maxHoursPerSession float64) (Subject, error)
	ImportSubjects(ctx context.Context, names []string, edital string) ([]Subject, error)
	UpdateTaskStatus(ctx context.Context, subjectID, taskID string, status TaskStatus, tracking *ExerciseTracking) error
	RecordStudySession(ctx context.Context, subjectID string) error
	AdvanceReview(ctx context.Context, subjectID string) error
	CompleteRevision(ctx context.Context, revisionID string) error

	Subjects() []Subject
	Revisions(ctx context.Context) []Revision
	SubjectsForReview(date utils.Date) []Subject
	TasksForDay(date utils.Date) []DayPlan
	BuildSchedule() []ScheduleEntry
	Schedule() []ScheduleEntry

	Settings() UserSettings
	UpdateSettings(ctx context.Context, settings UserSettings) error
	Config() StudyConfig
	UpdateConfig(config StudyConfig)
}
