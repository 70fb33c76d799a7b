package models

import (
	"slices"

	"github.com/yourusername/study-planner/pkg/utils"
)

type TaskType string

const (
	TaskVideo    TaskType = "Video Aula"
	TaskPDF      TaskType = "PDF"
	TaskExercise TaskType = "Exercícios"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// ExerciseTracking records a completed exercise session. Present only on
// exercise tasks that were completed with recorded attempts.
type ExerciseTracking struct {
	QuestionsMade         int `db:"questions_made"`
	QuestionsHit          int `db:"questions_hit"`
	ScorePercentage       int `db:"score_percentage"`
	ActualDurationMinutes int `db:"actual_duration_minutes"`
}

type Task struct {
	ID                     string            `db:"id"`
	Type                   TaskType          `db:"type"`
	Status                 TaskStatus        `db:"status"`
	PlannedDurationMinutes int               `db:"planned_duration_minutes"`
	ScheduledDate          utils.Date        `db:"scheduled_date"`
	Tracking               *ExerciseTracking `db:"-"`
}

func (t Task) Clone() Task {
	if t.Tracking != nil {
		tracking := *t.Tracking
		t.Tracking = &tracking
	}
	return t
}

// HistoryEntry marks one study or review session for a subject.
type HistoryEntry struct {
	Date utils.Date `db:"date"`
	Type string     `db:"entry_type"` // "study" or "review"
}

// QuestionRecord is one day's exercise totals for a subject.
type QuestionRecord struct {
	Date utils.Date `db:"date"`
	Made int        `db:"made"`
	Hit  int        `db:"hit"`
}

type Subject struct {
	ID                 string  `db:"id"`
	Name               string  `db:"name"`
	Edital             string  `db:"edital"`
	WeeklyFrequency    int     `db:"weekly_frequency"`
	HoursPerDay        float64 `db:"hours_per_day"`
	MaxHoursPerSession float64 `db:"max_hours_per_session"`
	DaysUntilExam      int     `db:"days_until_exam"`
	Color              string  `db:"color"`

	Tasks []Task `db:"-"`

	// Derived by the metrics recompute, never written directly.
	ProgressPercentage int `db:"-"`
	OverallScore       int `db:"-"`

	// Manual review state, advanced only by an explicit review action.
	ReviewInterval int         `db:"review_interval"`
	NextReview     *utils.Date `db:"next_review"`
	LastStudied    *utils.Date `db:"last_studied"`

	History         []HistoryEntry   `db:"-"`
	QuestionHistory []QuestionRecord `db:"-"`
}

// Completed reports whether every task of the subject is done.
// A subject with no tasks is never completed.
func (s Subject) Completed() bool {
	return len(s.Tasks) > 0 && s.ProgressPercentage >= 100
}

func (s Subject) Clone() Subject {
	tasks := make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		tasks[i] = t.Clone()
	}
	s.Tasks = tasks
	if s.NextReview != nil {
		next := *s.NextReview
		s.NextReview = &next
	}
	if s.LastStudied != nil {
		last := *s.LastStudied
		s.LastStudied = &last
	}
	s.History = slices.Clone(s.History)
	s.QuestionHistory = slices.Clone(s.QuestionHistory)
	return s
}

type RevisionStatus string

const (
	RevisionPending   RevisionStatus = "pending"
	RevisionCompleted RevisionStatus = "completed"
	RevisionMissed    RevisionStatus = "missed"
)

// Revision is one spaced-repetition checkpoint for a completed subject.
// Four are created per subject, at cycle days 1, 7, 15 and 30.
type Revision struct {
	ID          string         `db:"id"`
	SubjectID   string         `db:"subject_id"`
	SubjectName string         `db:"subject_name"`
	DueDate     utils.Date     `db:"due_date"`
	CycleDay    int            `db:"cycle_day"`
	Status      RevisionStatus `db:"status"`
}

// StudyConfig bounds the range allocator: one entry per day between
// StartDate and EndDate, floor(DailyStudyHours) subjects per day.
type StudyConfig struct {
	StartDate       utils.Date
	EndDate         utils.Date
	DailyStudyHours float64
}

// UserSettings are the user's daily study window. Times use HH:MM:SS.
type UserSettings struct {
	StudyStartTime       string `db:"study_start_time"`
	StudyEndTime         string `db:"study_end_time"`
	BreakDurationMinutes int    `db:"break_duration_minutes"`
}

// ScheduleEntry is one calendar day's subject assignments.
type ScheduleEntry struct {
	Date       utils.Date
	SubjectIDs []string
}

// DayPlan groups one subject's tasks due on a given day.
type DayPlan struct {
	SubjectID   string
	SubjectName string
	Tasks       []Task
}
