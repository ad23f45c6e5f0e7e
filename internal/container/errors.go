package container

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnresolvedTarget means a gesture could not be mapped to a container.
	ErrUnresolvedTarget = errors.New("unresolved container target")
	// ErrInvalidIdentifier means a malformed or placeholder identifier reached a gate.
	ErrInvalidIdentifier = errors.New("invalid container identifier")
	// ErrSuspiciousOwnership means the ownership query looked like the whole tab population.
	ErrSuspiciousOwnership = errors.New("suspicious container ownership")
	// ErrHostRemoval means the host rejected the tab removal request.
	ErrHostRemoval = errors.New("host tab removal failed")
	// ErrDeletionInFlight means another attempt for the same container has not finished.
	ErrDeletionInFlight = errors.New("container deletion already in flight")
	// ErrCancelled means the user dismissed the confirmation before the pipeline started.
	ErrCancelled = errors.New("deletion cancelled")
)

// InvalidIDError carries the reason a candidate identifier was rejected.
type InvalidIDError struct {
	Candidate string
	Reason    string
}

func (e *InvalidIDError) Error() string {
	if e.Candidate == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidIdentifier, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%q)", ErrInvalidIdentifier, e.Reason, e.Candidate)
}

func (e *InvalidIDError) Unwrap() error { return ErrInvalidIdentifier }

// SuspiciousError describes why an ownership query result was not trusted.
type SuspiciousError struct {
	ContainerID ID
	Owned       int
	Total       int
	Reason      string
}

func (e *SuspiciousError) Error() string {
	return fmt.Sprintf("%s: %s (container=%s owned=%d total=%d)", ErrSuspiciousOwnership, e.Reason, e.ContainerID, e.Owned, e.Total)
}

func (e *SuspiciousError) Unwrap() error { return ErrSuspiciousOwnership }

// HostRemovalError wraps a host failure that prevented the deletion from completing.
type HostRemovalError struct {
	ContainerID ID
	Err         error
}

func (e *HostRemovalError) Error() string {
	return fmt.Sprintf("%s for container %s: %v", ErrHostRemoval, e.ContainerID, e.Err)
}

func (e *HostRemovalError) Unwrap() []error { return []error{ErrHostRemoval, e.Err} }

// InFlightError names the attempt that holds the reentrancy guard.
type InFlightError struct {
	ContainerID ID
	AttemptID   string
}

func (e *InFlightError) Error() string {
	return fmt.Sprintf("%s: container %s held by attempt %s", ErrDeletionInFlight, e.ContainerID, e.AttemptID)
}

func (e *InFlightError) Unwrap() error { return ErrDeletionInFlight }

// PartialRemovalError is returned by a TabHost when some, but not necessarily
// all, of the requested tabs could not be closed.
type PartialRemovalError struct {
	Removed []int
	Failed  map[int]error
}

func (e *PartialRemovalError) Error() string {
	return fmt.Sprintf("removed %d tabs, %d failed", len(e.Removed), len(e.Failed))
}

// FailedIDs returns the failed tab handles in ascending order.
func (e *PartialRemovalError) FailedIDs() []int {
	ids := make([]int, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Reason maps a pipeline error onto the short reason label used in
// notifications, facts and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrUnresolvedTarget):
		return "unresolved"
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid"
	case errors.Is(err, ErrSuspiciousOwnership):
		return "suspicious"
	case errors.Is(err, ErrDeletionInFlight):
		return "in_flight"
	case errors.Is(err, ErrHostRemoval):
		return "removal_failed"
	default:
		return "error"
	}
}
