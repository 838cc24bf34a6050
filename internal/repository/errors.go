package repository

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrActiveSessionExists is returned when inserting a session would
	// violate the one-in-progress-session-per-(test,student) constraint.
	// Callers treat it as a lost create race and fall back to resume.
	ErrActiveSessionExists = errors.New("active session already exists")
)
