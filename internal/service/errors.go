package service

import (
	"errors"
	"fmt"
)

var (
	// ErrDependencyFetchFailed indicates an upstream read failed while deriving tasks.
	ErrDependencyFetchFailed = errors.New("dependency fetch failed")
	// ErrStoreUnavailable indicates the assignment store could not be read or written.
	ErrStoreUnavailable = errors.New("assignment store unavailable")
	// ErrScorerFailure indicates the external scorer failed for a single task.
	ErrScorerFailure = errors.New("scorer failure")
	// ErrRunAlreadyInProgress indicates another run holds the queue.
	ErrRunAlreadyInProgress = errors.New("run already in progress")
	// ErrCancelled indicates a run stopped on request before finishing.
	ErrCancelled = errors.New("run cancelled")
	// ErrRunNotFound indicates no run is tracked for the queue.
	ErrRunNotFound = errors.New("run not found")
)

// Dependency names reported by DependencyError.
const (
	DependencySubmissions = "submissions"
	DependencyTemplates   = "templates"
	DependencyAssignments = "assignments"
	DependencyJudges      = "judges"
	DependencyEvaluations = "evaluations"
)

// DependencyError names the upstream relation that failed during task derivation.
type DependencyError struct {
	QueueID    string
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("build tasks for queue %q: fetch %s: %v", e.QueueID, e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() []error { return []error{ErrDependencyFetchFailed, e.Err} }

// StoreError wraps a transport failure of the assignment store or of the
// shared run lock.
type StoreError struct {
	Op      string
	QueueID string
	Err     error
}

func (e *StoreError) Error() string {
	switch e.Op {
	case "replace":
		return fmt.Sprintf("replace assignments for queue %q: state unknown, re-fetch before retrying: %v", e.QueueID, e.Err)
	case "lock":
		return fmt.Sprintf("acquire run lock for queue %q: %v", e.QueueID, e.Err)
	}
	return fmt.Sprintf("%s assignments for queue %q: %v", e.Op, e.QueueID, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// ScorerError carries the task whose scorer call failed.
type ScorerError struct {
	Task EvalTask
	Err  error
}

func (e *ScorerError) Error() string {
	return fmt.Sprintf("score %s: %v", e.Task, e.Err)
}

func (e *ScorerError) Unwrap() []error { return []error{ErrScorerFailure, e.Err} }
