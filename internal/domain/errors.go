package domain

import "errors"

var (
	// ErrInvalidInput is returned for malformed usernames, passwords or field values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateUsername is returned when registering a username that already exists.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrUserNotFound is returned when no user matches the given username or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredential is returned when the password does not match.
	ErrInvalidCredential = errors.New("incorrect password")
	// ErrGeneration indicates a question could not satisfy the single-correct-answer invariant.
	ErrGeneration = errors.New("question generation failed")
	// ErrStorageCorrupt tags unreadable persisted values. It is logged, never returned from reads.
	ErrStorageCorrupt = errors.New("stored value is corrupt")
	// ErrNotLoggedIn is returned when an operation needs a current user.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNoLivesLeft is returned when a user with zero lives tries to answer.
	ErrNoLivesLeft = errors.New("no lives left")
	// ErrQuestionNotFound indicates a submitted question id is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option id is invalid.
	ErrOptionNotFound = errors.New("option not found")
)
