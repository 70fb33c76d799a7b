package planner

import (
	"slices"

	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/pkg/utils"
)

// TasksForDay returns, for every incomplete subject, its pending tasks
// scheduled exactly on date, grouped by subject. Subjects with nothing due
// that day are omitted.
func TasksForDay(subjects []models.Subject, date utils.Date) []models.DayPlan {
	var plans []models.DayPlan
	for _, subject := range subjects {
		if subject.Completed() {
			continue
		}

		var due []models.Task
		for _, task := range subject.Tasks {
			if task.Status == models.TaskPending && task.ScheduledDate == date {
				due = append(due, task.Clone())
			}
		}
		if len(due) == 0 {
			continue
		}

		plans = append(plans, models.DayPlan{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Tasks:       due,
		})
	}
	return plans
}

// BuildSchedule distributes incomplete subjects over every day from
// config.StartDate to config.EndDate inclusive. Each day fills up to
// floor(DailyStudyHours) slots: subjects due for review that day first,
// then round-robin from a persistent queue that reseeds when exhausted.
// Days with no assignments are omitted. The whole schedule is regenerated
// on every call, never patched.
func BuildSchedule(config models.StudyConfig, subjects []models.Subject) []models.ScheduleEntry {
	var available []models.Subject
	for _, subject := range subjects {
		if !subject.Completed() {
			available = append(available, subject)
		}
	}

	capacity := int(config.DailyStudyHours)
	if len(available) == 0 || capacity <= 0 {
		return nil
	}
	if config.EndDate < config.StartDate {
		return nil
	}

	queue := slices.Clone(available)
	var schedule []models.ScheduleEntry

	for date := config.StartDate; date <= config.EndDate; date = date.AddDays(1) {
		var assigned []string

		// Review-due subjects claim slots first.
		for _, subject := range available {
			if len(assigned) >= capacity {
				break
			}
			if subject.NextReview != nil && *subject.NextReview <= date && !slices.Contains(assigned, subject.ID) {
				assigned = append(assigned, subject.ID)
			}
		}

		// Round-robin fill. Bounded attempts: every remaining subject may
		// already be on the day, so the loop must not spin forever.
		attempts := 0
		for len(assigned) < capacity && attempts < len(available)*2 {
			if len(queue) == 0 {
				queue = slices.Clone(available)
			}
			next := queue[0]
			queue = queue[1:]

			if !slices.Contains(assigned, next.ID) {
				assigned = append(assigned, next.ID)
			} else {
				queue = append(queue, next)
			}
			attempts++
		}

		if len(assigned) > 0 {
			schedule = append(schedule, models.ScheduleEntry{Date: date, SubjectIDs: assigned})
		}
	}

	return schedule
}
