package srs

import (
	"slices"

	"github.com/google/uuid"
	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/pkg/utils"
)

// Fixed spaced-repetition progression. A fresh subject (interval 0) moves
// to 1 day, then walks the table and caps at 30 days.
var defaultIntervals = []int{1, 7, 15, 30}

// NextInterval returns the interval following current. Values outside the
// table (including the cap itself) resolve to the cap, so the progression
// never decreases.
func NextInterval(current int) int {
	if current == 0 {
		return defaultIntervals[0]
	}

	i := slices.Index(defaultIntervals, current)
	if i == -1 || i == len(defaultIntervals)-1 {
		return defaultIntervals[len(defaultIntervals)-1]
	}
	return defaultIntervals[i+1]
}

// AdvanceReview applies one manual "mark reviewed" step: bumps the interval,
// schedules the next review and records a review history entry dated today.
func AdvanceReview(subject models.Subject, today utils.Date) models.Subject {
	interval := NextInterval(subject.ReviewInterval)
	next := today.AddDays(interval)

	subject.ReviewInterval = interval
	subject.NextReview = &next
	subject.History = append(slices.Clone(subject.History), models.HistoryEntry{
		Date: today,
		Type: "review",
	})
	return subject
}

// BuildRevisionCycle creates the four revision checkpoints for a subject
// that just reached 100% progress, due at today+1, +7, +15 and +30 days.
// The caller is responsible for firing this exactly once per subject.
func BuildRevisionCycle(subject models.Subject, today utils.Date) []models.Revision {
	revisions := make([]models.Revision, 0, len(defaultIntervals))
	for _, day := range defaultIntervals {
		revisions = append(revisions, models.Revision{
			ID:          uuid.NewString(),
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			DueDate:     today.AddDays(day),
			CycleDay:    day,
			Status:      models.RevisionPending,
		})
	}
	return revisions
}

// SubjectsForReview returns subjects whose next review is due on or before
// date. Completed subjects are excluded: their repetition is driven by the
// revision cycle instead.
func SubjectsForReview(subjects []models.Subject, date utils.Date) []models.Subject {
	var due []models.Subject
	for _, subject := range subjects {
		if subject.NextReview != nil && *subject.NextReview <= date && !subject.Completed() {
			due = append(due, subject)
		}
	}
	return due
}
