package task

import "errors"

var (
	// ErrLeadContributor indicates an attempt to add the lead assignee to
	// the contributor set.
	ErrLeadContributor = errors.New("lead assignee cannot be a contributor")
	// ErrSubTaskNotFound indicates a draft edit referenced a sub-task id
	// the draft does not hold.
	ErrSubTaskNotFound = errors.New("sub-task not found in draft")
)
