package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/internal/store"
	"github.com/yourusername/study-planner/pkg/utils"
)

// fakeRepo is an in-memory persistence collaborator recording every write.
type fakeRepo struct {
	mu sync.Mutex

	subjects  []models.Subject
	revisions []models.Revision
	settings  *models.UserSettings

	loadSubjectsErr error
	writeErr        error

	saveSubjectsCalls    int
	updateTaskCalls      []models.Task
	createRevisionsCalls [][]models.Revision
	revisionStatusCalls  map[string]models.RevisionStatus
	saveSettingsCalls    []models.UserSettings
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{revisionStatusCalls: map[string]models.RevisionStatus{}}
}

func (f *fakeRepo) LoadSubjects(ctx context.Context) ([]models.Subject, error) {
	return f.subjects, f.loadSubjectsErr
}

func (f *fakeRepo) SaveSubjects(ctx context.Context, subjects []models.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveSubjectsCalls++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.subjects = subjects
	return nil
}

func (f *fakeRepo) UpdateTask(ctx context.Context, subjectID string, task models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateTaskCalls = append(f.updateTaskCalls, task)
	return f.writeErr
}

func (f *fakeRepo) LoadRevisions(ctx context.Context) ([]models.Revision, error) {
	return f.revisions, nil
}

func (f *fakeRepo) CreateRevisions(ctx context.Context, revisions []models.Revision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createRevisionsCalls = append(f.createRevisionsCalls, revisions)
	return f.writeErr
}

func (f *fakeRepo) UpdateRevisionStatus(ctx context.Context, revisionID string, status models.RevisionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revisionStatusCalls[revisionID] = status
	return f.writeErr
}

func (f *fakeRepo) LoadSettings(ctx context.Context) (*models.UserSettings, error) {
	return f.settings, nil
}

func (f *fakeRepo) SaveSettings(ctx context.Context, settings models.UserSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveSettingsCalls = append(f.saveSettingsCalls, settings)
	return f.writeErr
}

func (f *fakeRepo) RunInTx(ctx context.Context, fn func(models.Repository) error) error {
	return fn(f)
}

var fixedNow = func() time.Time {
	return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
}

const today = utils.Date("2025-08-01")

func newTestService(t *testing.T, repo models.Repository) *Service {
	t.Helper()
	svc := NewService(store.New(), repo, fixedNow)
	if err := svc.LoadState(context.Background()); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	return svc
}

// importOne creates one subject through the service and returns it.
func importOne(t *testing.T, svc *Service, name string) models.Subject {
	t.Helper()
	created, err := svc.ImportSubjects(context.Background(), []string{name}, "Geral")
	if err != nil {
		t.Fatalf("ImportSubjects: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("ImportSubjects created %d subjects, want 1", len(created))
	}
	return created[0]
}

// completeAll walks every task of the subject to completed.
func completeAll(t *testing.T, svc *Service, subjectID string) {
	t.Helper()
	subject, ok := findSubject(svc, subjectID)
	if !ok {
		t.Fatalf("subject %s not found", subjectID)
	}
	for _, task := range subject.Tasks {
		if err := svc.UpdateTaskStatus(context.Background(), subjectID, task.ID, models.TaskCompleted, nil); err != nil {
			t.Fatalf("UpdateTaskStatus(%s): %v", task.ID, err)
		}
	}
}

func findSubject(svc *Service, id string) (models.Subject, bool) {
	for _, subject := range svc.Subjects() {
		if subject.ID == id {
			return subject, true
		}
	}
	return models.Subject{}, false
}

func TestLoadStateSeedsEmptyStore(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	subjects := svc.Subjects()
	if len(subjects) != len(seedNames) {
		t.Fatalf("seeded %d subjects, want %d", len(subjects), len(seedNames))
	}
	for _, subject := range subjects {
		if len(subject.Tasks) != 15 {
			t.Errorf("seed subject %s has %d tasks, want 15", subject.Name, len(subject.Tasks))
		}
	}
	if repo.saveSubjectsCalls != 1 {
		t.Errorf("seed data persisted %d times, want 1", repo.saveSubjectsCalls)
	}
}

func TestLoadStateRecomputesOnLoad(t *testing.T) {
	repo := newFakeRepo()
	// Stale persisted derived fields: progress was never stored, both
	// tasks are done.
	repo.subjects = []models.Subject{{
		ID:   "s1",
		Name: "Português",
		Tasks: []models.Task{
			{ID: "t1", Status: models.TaskCompleted},
			{ID: "t2", Status: models.TaskCompleted},
		},
	}}

	svc := newTestService(t, repo)

	subject, ok := findSubject(svc, "s1")
	if !ok {
		t.Fatal("subject not loaded")
	}
	if subject.ProgressPercentage != 100 {
		t.Errorf("progress after load = %d, want self-healed 100", subject.ProgressPercentage)
	}
}

func TestLoadStateFallsBackOnError(t *testing.T) {
	repo := newFakeRepo()
	repo.loadSubjectsErr = errors.New("connection refused")

	svc := newTestService(t, repo)
	if len(svc.Subjects()) != len(seedNames) {
		t.Error("load failure should fall back to seed data")
	}
}

func TestUpdateTaskStatusScoring(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	subject := importOne(t, svc, "Direito Penal")

	var exerciseID string
	for _, task := range subject.Tasks {
		if task.Type == models.TaskExercise {
			exerciseID = task.ID
			break
		}
	}

	tracking := &models.ExerciseTracking{QuestionsMade: 50, QuestionsHit: 42}
	if err := svc.UpdateTaskStatus(context.Background(), subject.ID, exerciseID, models.TaskCompleted, tracking); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	updated, _ := findSubject(svc, subject.ID)
	for _, task := range updated.Tasks {
		if task.ID != exerciseID {
			continue
		}
		if task.Tracking == nil {
			t.Fatal("tracking not stored")
		}
		if task.Tracking.ScorePercentage != 84 {
			t.Errorf("score = %d, want 84", task.Tracking.ScorePercentage)
		}
	}
	if updated.OverallScore != 84 {
		t.Errorf("overall score = %d, want 84", updated.OverallScore)
	}
	if len(updated.QuestionHistory) != 1 || updated.QuestionHistory[0].Made != 50 {
		t.Errorf("question history = %+v", updated.QuestionHistory)
	}

	// Only the touched task goes to the repository.
	if len(repo.updateTaskCalls) != 1 || repo.updateTaskCalls[0].ID != exerciseID {
		t.Errorf("updateTask calls = %+v", repo.updateTaskCalls)
	}
}

func TestUpdateTaskStatusZeroAttempts(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	subject := importOne(t, svc, "Direito Penal")

	var exerciseID string
	for _, task := range subject.Tasks {
		if task.Type == models.TaskExercise {
			exerciseID = task.ID
			break
		}
	}

	tracking := &models.ExerciseTracking{QuestionsMade: 0, QuestionsHit: 0}
	if err := svc.UpdateTaskStatus(context.Background(), subject.ID, exerciseID, models.TaskCompleted, tracking); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	updated, _ := findSubject(svc, subject.ID)
	for _, task := range updated.Tasks {
		if task.ID == exerciseID && task.Tracking.ScorePercentage != 0 {
			t.Errorf("score = %d, want 0 for zero attempts", task.Tracking.ScorePercentage)
		}
	}
}

func TestUpdateTaskStatusInvalidTracking(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	subject := importOne(t, svc, "Direito Penal")
	taskID := subject.Tasks[0].ID

	tests := []*models.ExerciseTracking{
		{QuestionsMade: 10, QuestionsHit: 11},
		{QuestionsMade: -1, QuestionsHit: 0},
		{QuestionsMade: 5, QuestionsHit: -2},
	}
	for _, tracking := range tests {
		err := svc.UpdateTaskStatus(context.Background(), subject.ID, taskID, models.TaskCompleted, tracking)
		if !errors.Is(err, models.ErrInvalidTracking) {
			t.Errorf("tracking %+v: err = %v, want ErrInvalidTracking", tracking, err)
		}
	}

	// Rejected input must not have mutated anything.
	updated, _ := findSubject(svc, subject.ID)
	if updated.ProgressPercentage != 0 {
		t.Errorf("progress = %d after rejected updates, want 0", updated.ProgressPercentage)
	}
}

func TestUpdateTaskStatusNotFound(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	subject := importOne(t, svc, "Direito Penal")

	err := svc.UpdateTaskStatus(context.Background(), "nope", "t", models.TaskCompleted, nil)
	if !errors.Is(err, models.ErrSubjectNotFound) {
		t.Errorf("unknown subject: err = %v, want ErrSubjectNotFound", err)
	}

	err = svc.UpdateTaskStatus(context.Background(), subject.ID, "nope", models.TaskCompleted, nil)
	if !errors.Is(err, models.ErrTaskNotFound) {
		t.Errorf("unknown task: err = %v, want ErrTaskNotFound", err)
	}
}

func TestCompletionFiresRevisionCycleOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	subject := importOne(t, svc, "Direito Penal")

	completeAll(t, svc, subject.ID)

	revisions := svc.Revisions(context.Background())
	var mine []models.Revision
	for _, revision := range revisions {
		if revision.SubjectID == subject.ID {
			mine = append(mine, revision)
		}
	}
	if len(mine) != 4 {
		t.Fatalf("revision cycle has %d entries, want 4", len(mine))
	}
	wantDue := map[int]utils.Date{1: "2025-08-02", 7: "2025-08-08", 15: "2025-08-16", 30: "2025-08-31"}
	for _, revision := range mine {
		if revision.DueDate != wantDue[revision.CycleDay] {
			t.Errorf("cycle %d due = %s, want %s", revision.CycleDay, revision.DueDate, wantDue[revision.CycleDay])
		}
	}

	// Re-completing tasks on an already-complete subject must not
	// duplicate the cycle.
	updated, _ := findSubject(svc, subject.ID)
	if err := svc.UpdateTaskStatus(context.Background(), subject.ID, updated.Tasks[0].ID, models.TaskCompleted, nil); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	again := 0
	for _, revision := range svc.Revisions(context.Background()) {
		if revision.SubjectID == subject.ID {
			again++
		}
	}
	if again != 4 {
		t.Errorf("revisions after re-completion = %d, want still 4", again)
	}
	if len(repo.createRevisionsCalls) != 1 {
		t.Errorf("CreateRevisions called %d times, want 1", len(repo.createRevisionsCalls))
	}
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	subject := importOne(t, svc, "Direito Penal")

	repo.writeErr = errors.New("disk on fire")

	taskID := subject.Tasks[0].ID
	if err := svc.UpdateTaskStatus(context.Background(), subject.ID, taskID, models.TaskCompleted, nil); err != nil {
		t.Fatalf("UpdateTaskStatus should swallow persistence errors, got %v", err)
	}

	updated, _ := findSubject(svc, subject.ID)
	if updated.ProgressPercentage == 0 {
		t.Error("in-memory state rolled back on persistence failure")
	}
}

func TestCompleteRevision(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	subject := importOne(t, svc, "Direito Penal")
	completeAll(t, svc, subject.ID)

	revisions := svc.Revisions(context.Background())
	target := revisions[len(revisions)-1]
	if err := svc.CompleteRevision(context.Background(), target.ID); err != nil {
		t.Fatalf("CompleteRevision: %v", err)
	}

	for _, revision := range svc.Revisions(context.Background()) {
		if revision.ID == target.ID && revision.Status != models.RevisionCompleted {
			t.Errorf("status = %s, want completed", revision.Status)
		}
	}
	if repo.revisionStatusCalls[target.ID] != models.RevisionCompleted {
		t.Error("revision status not persisted")
	}

	err := svc.CompleteRevision(context.Background(), "nope")
	if !errors.Is(err, models.ErrRevisionNotFound) {
		t.Errorf("unknown revision: err = %v, want ErrRevisionNotFound", err)
	}
}

func TestRevisionsMissedDetection(t *testing.T) {
	repo := newFakeRepo()
	repo.revisions = []models.Revision{
		{ID: "r1", SubjectID: "s1", SubjectName: "x", DueDate: "2025-07-25", CycleDay: 1, Status: models.RevisionPending},
		{ID: "r2", SubjectID: "s1", SubjectName: "x", DueDate: "2025-08-01", CycleDay: 7, Status: models.RevisionPending},
		{ID: "r3", SubjectID: "s1", SubjectName: "x", DueDate: "2025-07-20", CycleDay: 1, Status: models.RevisionCompleted},
	}
	repo.subjects = []models.Subject{{ID: "s1", Name: "x", Tasks: []models.Task{{ID: "t", Status: models.TaskCompleted}}}}

	svc := newTestService(t, repo)

	statuses := map[string]models.RevisionStatus{}
	for _, revision := range svc.Revisions(context.Background()) {
		statuses[revision.ID] = revision.Status
	}

	if statuses["r1"] != models.RevisionMissed {
		t.Errorf("overdue pending revision = %s, want missed", statuses["r1"])
	}
	if statuses["r2"] != models.RevisionPending {
		t.Errorf("due-today revision = %s, want still pending", statuses["r2"])
	}
	if statuses["r3"] != models.RevisionCompleted {
		t.Errorf("completed revision = %s, must stay completed", statuses["r3"])
	}
}

func TestAdvanceReviewThroughService(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	subject := importOne(t, svc, "Direito Penal")

	if err := svc.AdvanceReview(context.Background(), subject.ID); err != nil {
		t.Fatalf("AdvanceReview: %v", err)
	}
	if err := svc.AdvanceReview(context.Background(), subject.ID); err != nil {
		t.Fatalf("AdvanceReview: %v", err)
	}

	updated, _ := findSubject(svc, subject.ID)
	if updated.ReviewInterval != 7 {
		t.Errorf("interval after two advances = %d, want 7", updated.ReviewInterval)
	}
	if updated.NextReview == nil || *updated.NextReview != today.AddDays(7) {
		t.Errorf("next review = %v, want %s", updated.NextReview, today.AddDays(7))
	}

	due := svc.SubjectsForReview(today.AddDays(7))
	if len(due) != 1 || due[0].ID != subject.ID {
		t.Errorf("SubjectsForReview = %+v, want the advanced subject", due)
	}
}

func TestSubjectsForReviewExcludesCompleted(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	subject := importOne(t, svc, "Direito Penal")

	if err := svc.AdvanceReview(context.Background(), subject.ID); err != nil {
		t.Fatalf("AdvanceReview: %v", err)
	}
	completeAll(t, svc, subject.ID)

	if due := svc.SubjectsForReview(today.AddDays(60)); len(due) != 0 {
		t.Errorf("completed subject still due for review: %+v", due)
	}
}

func TestTasksForDayThroughService(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	subject := importOne(t, svc, "Direito Penal")

	// Module layout puts tasks on today, +1 and +2.
	plans := svc.TasksForDay(today)
	found := false
	for _, plan := range plans {
		if plan.SubjectID == subject.ID {
			found = true
			if len(plan.Tasks) != 3 {
				t.Errorf("tasks today = %d, want first module's 3", len(plan.Tasks))
			}
		}
	}
	if !found {
		t.Error("imported subject missing from today's plan")
	}

	if plans := svc.TasksForDay(today.AddDays(30)); len(plans) != 0 {
		t.Errorf("far-future day has %d plans, want 0", len(plans))
	}
}

func TestBuildScheduleThroughService(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	svc.UpdateConfig(models.StudyConfig{
		StartDate:       today,
		EndDate:         today,
		DailyStudyHours: 2,
	})

	schedule := svc.BuildSchedule()
	if len(schedule) != 1 {
		t.Fatalf("len(schedule) = %d, want 1", len(schedule))
	}
	if len(schedule[0].SubjectIDs) != 2 {
		t.Errorf("assigned %d subjects, want 2", len(schedule[0].SubjectIDs))
	}

	if got := svc.Schedule(); len(got) != 1 {
		t.Errorf("stored schedule has %d entries", len(got))
	}
}

func TestUpdateSettings(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	settings := models.UserSettings{StudyStartTime: "06:00:00", StudyEndTime: "10:00:00", BreakDurationMinutes: 5}
	if err := svc.UpdateSettings(context.Background(), settings); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if svc.Settings() != settings {
		t.Errorf("settings = %+v", svc.Settings())
	}
	if len(repo.saveSettingsCalls) != 1 || repo.saveSettingsCalls[0] != settings {
		t.Errorf("persisted settings = %+v", repo.saveSettingsCalls)
	}
}

func TestAddSubjectDerivesBudget(t *testing.T) {
	svc := newTestService(t, newFakeRepo())

	// 70 days out, 5 days/week, 4h/day capped at 2h => 100h budget,
	// base task = 6000/15 = 400 min.
	subject, err := svc.AddSubject(context.Background(), "Informática", "TJ-SP", today.AddDays(70), 4, 5, 2)
	if err != nil {
		t.Fatalf("AddSubject: %v", err)
	}

	if subject.DaysUntilExam != 70 {
		t.Errorf("days until exam = %d, want 70", subject.DaysUntilExam)
	}
	for _, task := range subject.Tasks {
		if task.Type == models.TaskVideo && task.PlannedDurationMinutes != 400 {
			t.Errorf("video duration = %d, want 400", task.PlannedDurationMinutes)
		}
	}

	if _, err := svc.AddSubject(context.Background(), "", "TJ-SP", today, 1, 1, 1); err == nil {
		t.Error("AddSubject should reject empty name")
	}
}
