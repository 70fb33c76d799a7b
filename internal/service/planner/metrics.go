package planner

import (
	"math"

	"github.com/yourusername/study-planner/internal/models"
)

// Score converts an exercise attempt into a 0-100 percentage.
// Zero attempts score zero.
func Score(made, hit int) int {
	if made <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(hit) / float64(made)))
}

// Recompute derives ProgressPercentage and OverallScore from the subject's
// tasks. Pure and idempotent; called after every task mutation and on load
// to self-heal anything stale from the persistence boundary.
func Recompute(subject models.Subject) models.Subject {
	total := len(subject.Tasks)
	completed := 0
	scoreSum := 0
	scored := 0

	for _, task := range subject.Tasks {
		if task.Status != models.TaskCompleted {
			continue
		}
		completed++
		if task.Type == models.TaskExercise && task.Tracking != nil {
			scoreSum += task.Tracking.ScorePercentage
			scored++
		}
	}

	subject.ProgressPercentage = 0
	if total > 0 {
		subject.ProgressPercentage = int(math.Round(100 * float64(completed) / float64(total)))
	}

	subject.OverallScore = 0
	if scored > 0 {
		subject.OverallScore = int(math.Round(float64(scoreSum) / float64(scored)))
	}

	return subject
}
