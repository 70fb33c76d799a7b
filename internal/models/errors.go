package models

import "errors"

// Sentinel errors returned by the service layer.
// Check with errors.Is: errors.Is(err, models.ErrTaskNotFound)
var (
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrInvalidTracking  = errors.New("invalid exercise tracking")
)
