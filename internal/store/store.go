// Package store holds the session's authoritative in-memory state.
// The service computes new values with the pure planner/srs functions and
// commits them here wholesale; persistence happens after the commit and
// never rolls it back.
package store

import (
	"slices"
	"sync"

	"github.com/yourusername/study-planner/internal/models"
)

// Store is an injectable snapshot container for subjects, revisions,
// settings, config and the generated schedule. Reads return copies, writes
// replace whole values, so no caller ever observes a partial update.
type Store struct {
	mu        sync.RWMutex
	subjects  []models.Subject
	revisions []models.Revision
	settings  models.UserSettings
	config    models.StudyConfig
	schedule  []models.ScheduleEntry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Subjects() []models.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSubjects(s.subjects)
}

func (s *Store) Subject(id string) (models.Subject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, subject := range s.subjects {
		if subject.ID == id {
			return subject.Clone(), true
		}
	}
	return models.Subject{}, false
}

func (s *Store) ReplaceSubjects(subjects []models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = cloneSubjects(subjects)
}

func (s *Store) AppendSubjects(subjects ...models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, cloneSubjects(subjects)...)
}

// ReplaceSubject swaps the stored subject with the same ID for the given
// value. Returns false when no such subject exists.
func (s *Store) ReplaceSubject(subject models.Subject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subjects {
		if s.subjects[i].ID == subject.ID {
			s.subjects[i] = subject.Clone()
			return true
		}
	}
	return false
}

func (s *Store) SubjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subjects)
}

func (s *Store) Revisions() []models.Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.revisions)
}

func (s *Store) ReplaceRevisions(revisions []models.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions = slices.Clone(revisions)
}

func (s *Store) AppendRevisions(revisions ...models.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions = append(s.revisions, revisions...)
}

func (s *Store) ReplaceRevision(revision models.Revision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.revisions {
		if s.revisions[i].ID == revision.ID {
			s.revisions[i] = revision
			return true
		}
	}
	return false
}

// HasRevisions reports whether any revision exists for the subject. Guards
// the cycle generation against firing twice for the same subject.
func (s *Store) HasRevisions(subjectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, revision := range s.revisions {
		if revision.SubjectID == subjectID {
			return true
		}
	}
	return false
}

func (s *Store) Settings() models.UserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) SetSettings(settings models.UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *Store) Config() models.StudyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Store) SetConfig(config models.StudyConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

func (s *Store) Schedule() []models.ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedule := make([]models.ScheduleEntry, len(s.schedule))
	for i, entry := range s.schedule {
		entry.SubjectIDs = slices.Clone(entry.SubjectIDs)
		schedule[i] = entry
	}
	return schedule
}

func (s *Store) SetSchedule(schedule []models.ScheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
}

func cloneSubjects(subjects []models.Subject) []models.Subject {
	cloned := make([]models.Subject, len(subjects))
	for i, subject := range subjects {
		cloned[i] = subject.Clone()
	}
	return cloned
}
