package planner

import (
	"github.com/google/uuid"
	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/pkg/utils"
)

const (
	moduleCount = 5

	// A subject below this budget gets bumped up to it, so a tight or
	// malformed deadline never produces zero-duration tasks.
	minTotalHours = 40.0
)

// Dashboard colors, assigned at creation and stable for the subject's
// lifetime. Cycled by creation index.
var palette = []string{
	"#9E7FFF",
	"#38BDF8",
	"#F472B6",
	"#34D399",
	"#F59E0B",
	"#F87171",
	"#A3E635",
	"#22D3EE",
}

func ColorFor(index int) string {
	if index < 0 {
		index = -index
	}
	return palette[index%len(palette)]
}

// TotalHours derives a subject's study budget from its planning inputs:
// weeks until the exam times sessions per week times capped session hours,
// clamped to at least minTotalHours.
func TotalHours(daysPerWeek int, hoursPerDay, maxHoursPerSession float64, daysUntilExam int) float64 {
	perDay := hoursPerDay
	if maxHoursPerSession > 0 && maxHoursPerSession < perDay {
		perDay = maxHoursPerSession
	}

	total := float64(daysUntilExam) / 7 * float64(daysPerWeek) * perDay
	if total < minTotalHours {
		total = minTotalHours
	}
	return total
}

// GenerateTasks expands a subject into its full task breakdown: 5 modules
// of Video Aula, PDF and Exercícios each, 15 tasks total. Module i
// (1-indexed) is scheduled at start+floor(i/2) days, packing two modules
// onto most days. Deterministic apart from the generated ids.
func GenerateTasks(totalHours float64, start utils.Date) []models.Task {
	if totalHours <= 0 {
		totalHours = minTotalHours
	}

	base := int(totalHours*60) / (moduleCount * 3)
	durations := [3]int{base, base * 7 / 10, base * 13 / 10}
	types := [3]models.TaskType{models.TaskVideo, models.TaskPDF, models.TaskExercise}

	tasks := make([]models.Task, 0, moduleCount*3)
	for module := 1; module <= moduleCount; module++ {
		date := start.AddDays(module / 2)
		for i, taskType := range types {
			minutes := durations[i]
			if minutes < 1 {
				minutes = 1
			}
			tasks = append(tasks, models.Task{
				ID:                     uuid.NewString(),
				Type:                   taskType,
				Status:                 models.TaskPending,
				PlannedDurationMinutes: minutes,
				ScheduledDate:          date,
			})
		}
	}
	return tasks
}

// NewSubject assembles a subject with its generated tasks. colorIndex is
// the subject's creation position, used to cycle the palette.
func NewSubject(name, edital string, daysPerWeek int, hoursPerDay, maxHoursPerSession float64, daysUntilExam int, start utils.Date, colorIndex int) models.Subject {
	if edital == "" {
		edital = "Geral"
	}

	total := TotalHours(daysPerWeek, hoursPerDay, maxHoursPerSession, daysUntilExam)
	subject := models.Subject{
		ID:                 uuid.NewString(),
		Name:               name,
		Edital:             edital,
		WeeklyFrequency:    daysPerWeek,
		HoursPerDay:        hoursPerDay,
		MaxHoursPerSession: maxHoursPerSession,
		DaysUntilExam:      daysUntilExam,
		Color:              ColorFor(colorIndex),
		Tasks:              GenerateTasks(total, start),
	}
	return Recompute(subject)
}
