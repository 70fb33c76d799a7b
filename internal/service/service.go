package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/internal/service/planner"
	"github.com/yourusername/study-planner/internal/service/srs"
	"github.com/yourusername/study-planner/internal/store"
	"github.com/yourusername/study-planner/pkg/utils"
	"go.uber.org/zap"
)

// Default planning parameters for subjects created through the batch
// import, which carries only names and an edital.
const (
	defaultDaysPerWeek   = 5
	defaultHoursPerDay   = 2.0
	defaultMaxHours      = 2.0
	defaultDaysUntilExam = 28
)

var defaultSettings = models.UserSettings{
	StudyStartTime:       "08:00:00",
	StudyEndTime:         "12:00:00",
	BreakDurationMinutes: 15,
}

// Starter subjects used when the persistence collaborator reports an empty
// store, so the planner is usable before any import.
var seedNames = []string{
	"Língua Portuguesa",
	"Direito Constitucional",
	"Raciocínio Lógico",
}

// Service is the mutation coordinator. Every operation computes the new
// state with the pure planner/srs functions, commits it to the store, and
// only then persists through the repository. Repository failures are logged
// and never roll back the in-memory state.
type Service struct {
	mu    sync.Mutex // serializes mutations so same-subject updates apply in call order
	store *store.Store
	repo  models.Repository // nil when running without a backing store
	now   func() time.Time
}

func NewService(st *store.Store, repo models.Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, repo: repo, now: now}
}

func (s *Service) today() utils.Date {
	return utils.DateOf(s.now())
}

// LoadState pulls subjects, revisions and settings from the repository and
// seeds defaults when the store is empty or unreachable. Subjects are run
// through the metrics recompute on load to self-heal stale derived fields.
func (s *Service) LoadState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	s.store.SetConfig(models.StudyConfig{
		StartDate:       today,
		EndDate:         today.AddDays(90),
		DailyStudyHours: 2,
	})
	s.store.SetSettings(defaultSettings)

	if s.repo == nil {
		s.store.ReplaceSubjects(s.seedSubjects(today))
		zap.S().Info("no repository configured, using seed data")
		return nil
	}

	subjects, err := s.repo.LoadSubjects(ctx)
	if err != nil {
		zap.S().Warn("load subjects, falling back to seed data", zap.Error(err))
		s.store.ReplaceSubjects(s.seedSubjects(today))
		return nil
	}

	if len(subjects) == 0 {
		seeded := s.seedSubjects(today)
		s.store.ReplaceSubjects(seeded)
		s.persist("save seed subjects", func(ctx context.Context) error {
			return s.repo.SaveSubjects(ctx, seeded)
		})
	} else {
		for i := range subjects {
			subjects[i] = planner.Recompute(subjects[i])
		}
		s.store.ReplaceSubjects(subjects)
	}

	revisions, err := s.repo.LoadRevisions(ctx)
	if err != nil {
		zap.S().Warn("load revisions", zap.Error(err))
	} else {
		s.store.ReplaceRevisions(revisions)
	}

	settings, err := s.repo.LoadSettings(ctx)
	if err != nil {
		zap.S().Warn("load settings", zap.Error(err))
	} else if settings != nil {
		s.store.SetSettings(*settings)
	}

	zap.S().Info("state loaded",
		zap.Int("subjects", s.store.SubjectCount()),
		zap.Int("revisions", len(s.store.Revisions())))
	return nil
}

func (s *Service) seedSubjects(today utils.Date) []models.Subject {
	subjects := make([]models.Subject, 0, len(seedNames))
	for i, name := range seedNames {
		subjects = append(subjects, planner.NewSubject(
			name, "Geral",
			defaultDaysPerWeek, defaultHoursPerDay, defaultMaxHours,
			defaultDaysUntilExam, today, i,
		))
	}
	return subjects
}

// AddSubject creates a subject with its full task breakdown and persists
// the updated subject set.
func (s *Service) AddSubject(ctx context.Context, name, edital string, deadline utils.Date, hoursPerDay float64, daysPerWeek int, maxHoursPerSession float64) (models.Subject, error) {
	if name == "" {
		return models.Subject{}, fmt.Errorf("add subject: name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	daysUntilExam := today.DaysUntil(deadline)
	if daysUntilExam < 0 {
		daysUntilExam = 0
	}

	subject := planner.NewSubject(
		name, edital,
		daysPerWeek, hoursPerDay, maxHoursPerSession,
		daysUntilExam, today, s.store.SubjectCount(),
	)
	s.store.AppendSubjects(subject)

	subjects := s.store.Subjects()
	s.persist("save subjects", func(ctx context.Context) error {
		return s.repo.SaveSubjects(ctx, subjects)
	})
	return subject, nil
}

// ImportSubjects batch-creates subjects from a name list sharing one
// edital, each with the default planning parameters.
func (s *Service) ImportSubjects(ctx context.Context, names []string, edital string) ([]models.Subject, error) {
	if len(names) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	offset := s.store.SubjectCount()
	created := make([]models.Subject, 0, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		created = append(created, planner.NewSubject(
			name, edital,
			defaultDaysPerWeek, defaultHoursPerDay, defaultMaxHours,
			defaultDaysUntilExam, today, offset+i,
		))
	}
	s.store.AppendSubjects(created...)

	subjects := s.store.Subjects()
	s.persist("save subjects", func(ctx context.Context) error {
		return s.repo.SaveSubjects(ctx, subjects)
	})
	return created, nil
}

// UpdateTaskStatus applies one task-completion event: validates and scores
// the tracking payload, replaces the task in place, recomputes the
// subject's metrics, and fires the revision cycle the first time the
// subject reaches 100%. Only the touched task is sent to the repository.
func (s *Service) UpdateTaskStatus(ctx context.Context, subjectID, taskID string, status models.TaskStatus, tracking *models.ExerciseTracking) error {
	if tracking != nil {
		if tracking.QuestionsMade < 0 || tracking.QuestionsHit < 0 || tracking.QuestionsHit > tracking.QuestionsMade {
			return fmt.Errorf("update task %s: %w", taskID, models.ErrInvalidTracking)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.store.Subject(subjectID)
	if !ok {
		return fmt.Errorf("update task (subject_id: %s): %w", subjectID, models.ErrSubjectNotFound)
	}

	taskIndex := slices.IndexFunc(subject.Tasks, func(t models.Task) bool { return t.ID == taskID })
	if taskIndex == -1 {
		return fmt.Errorf("update task (subject_id: %s, task_id: %s): %w", subjectID, taskID, models.ErrTaskNotFound)
	}

	today := s.today()
	task := subject.Tasks[taskIndex]
	task.Status = status

	if task.Type == models.TaskExercise && status == models.TaskCompleted && tracking != nil {
		scored := *tracking
		scored.ScorePercentage = planner.Score(scored.QuestionsMade, scored.QuestionsHit)
		task.Tracking = &scored

		subject.QuestionHistory = appendQuestionRecord(subject.QuestionHistory, models.QuestionRecord{
			Date: today,
			Made: scored.QuestionsMade,
			Hit:  scored.QuestionsHit,
		})
	}

	previousProgress := subject.ProgressPercentage
	subject.Tasks[taskIndex] = task
	subject = planner.Recompute(subject)
	s.store.ReplaceSubject(subject)

	// Fresh arrival at 100% fires the revision cycle exactly once. The
	// store guard covers re-completion after a reload.
	if previousProgress < 100 && subject.ProgressPercentage >= 100 && !s.store.HasRevisions(subject.ID) {
		revisions := srs.BuildRevisionCycle(subject, today)
		s.store.AppendRevisions(revisions...)
		s.persist("create revisions", func(ctx context.Context) error {
			return s.repo.CreateRevisions(ctx, revisions)
		})
		zap.S().Info("revision cycle created",
			zap.String("subject_id", subject.ID),
			zap.String("subject", subject.Name))
	}

	s.persist("update task", func(ctx context.Context) error {
		return s.repo.UpdateTask(ctx, subjectID, task)
	})
	return nil
}

// appendQuestionRecord keeps one record per day, replacing today's entry
// when the totals are re-reported.
func appendQuestionRecord(history []models.QuestionRecord, record models.QuestionRecord) []models.QuestionRecord {
	for i := range history {
		if history[i].Date == record.Date {
			history[i] = record
			return history
		}
	}
	return append(history, record)
}

// RecordStudySession stamps the subject as studied today.
func (s *Service) RecordStudySession(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.store.Subject(subjectID)
	if !ok {
		return fmt.Errorf("record study session (subject_id: %s): %w", subjectID, models.ErrSubjectNotFound)
	}

	today := s.today()
	subject.LastStudied = &today
	subject.History = append(subject.History, models.HistoryEntry{Date: today, Type: "study"})
	s.store.ReplaceSubject(subject)

	subjects := s.store.Subjects()
	s.persist("save subjects", func(ctx context.Context) error {
		return s.repo.SaveSubjects(ctx, subjects)
	})
	return nil
}

// AdvanceReview applies the manual spaced-repetition step to a subject.
func (s *Service) AdvanceReview(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.store.Subject(subjectID)
	if !ok {
		return fmt.Errorf("advance review (subject_id: %s): %w", subjectID, models.ErrSubjectNotFound)
	}

	subject = srs.AdvanceReview(subject, s.today())
	s.store.ReplaceSubject(subject)

	subjects := s.store.Subjects()
	s.persist("save subjects", func(ctx context.Context) error {
		return s.repo.SaveSubjects(ctx, subjects)
	})
	return nil
}

// CompleteRevision marks one revision checkpoint as done.
func (s *Service) CompleteRevision(ctx context.Context, revisionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revision models.Revision
	found := false
	for _, r := range s.store.Revisions() {
		if r.ID == revisionID {
			revision, found = r, true
			break
		}
	}
	if !found {
		return fmt.Errorf("complete revision (revision_id: %s): %w", revisionID, models.ErrRevisionNotFound)
	}

	revision.Status = models.RevisionCompleted
	s.store.ReplaceRevision(revision)

	s.persist("update revision status", func(ctx context.Context) error {
		return s.repo.UpdateRevisionStatus(ctx, revisionID, models.RevisionCompleted)
	})
	return nil
}

func (s *Service) Subjects() []models.Subject {
	return s.store.Subjects()
}

// Revisions returns all revisions, flipping pending ones past their due
// date to missed. Detection happens here, at read time; there is no
// background process.
func (s *Service) Revisions(ctx context.Context) []models.Revision {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	for _, revision := range s.store.Revisions() {
		if revision.Status == models.RevisionPending && revision.DueDate < today {
			revision.Status = models.RevisionMissed
			s.store.ReplaceRevision(revision)
			s.persist("update revision status", func(ctx context.Context) error {
				return s.repo.UpdateRevisionStatus(ctx, revision.ID, models.RevisionMissed)
			})
		}
	}
	return s.store.Revisions()
}

func (s *Service) SubjectsForReview(date utils.Date) []models.Subject {
	return srs.SubjectsForReview(s.store.Subjects(), date)
}

func (s *Service) TasksForDay(date utils.Date) []models.DayPlan {
	return planner.TasksForDay(s.store.Subjects(), date)
}

// BuildSchedule regenerates the range allocation wholesale and stores it.
func (s *Service) BuildSchedule() []models.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := planner.BuildSchedule(s.store.Config(), s.store.Subjects())
	s.store.SetSchedule(schedule)
	return schedule
}

func (s *Service) Schedule() []models.ScheduleEntry {
	return s.store.Schedule()
}

func (s *Service) Settings() models.UserSettings {
	return s.store.Settings()
}

func (s *Service) UpdateSettings(ctx context.Context, settings models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.SetSettings(settings)
	s.persist("save settings", func(ctx context.Context) error {
		return s.repo.SaveSettings(ctx, settings)
	})
	return nil
}

func (s *Service) Config() models.StudyConfig {
	return s.store.Config()
}

func (s *Service) UpdateConfig(config models.StudyConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetConfig(config)
}

// persist runs a repository write after the store commit. Failures are
// logged and swallowed: the in-memory state stays authoritative for the
// session.
func (s *Service) persist(operation string, fn func(ctx context.Context) error) {
	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		zap.S().Warn(operation, zap.Error(err))
	}
}
