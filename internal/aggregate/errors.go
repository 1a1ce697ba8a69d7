package aggregate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned for an unregistered aggregate table or family name.
	ErrNotFound = errors.New("aggregate not found")

	// ErrRefreshFailed is matched by every rebuild failure. The live table
	// is untouched when it is returned.
	ErrRefreshFailed = errors.New("aggregate refresh failed")

	// ErrCycle is returned when aggregate dependencies form a cycle.
	ErrCycle = errors.New("aggregate dependency cycle")
)

// Phase names the step of a rebuild that failed.
type Phase string

const (
	PhaseBuild    Phase = "build shadow"
	PhaseValidate Phase = "validate shadow"
	PhaseSwap     Phase = "swap"
)

// RefreshError describes a failed rebuild of one table.
// errors.Is(err, ErrRefreshFailed) holds for every RefreshError.
type RefreshError struct {
	Table string
	Phase Phase
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("failed to rebuild %s (%s): %v", e.Table, e.Phase, e.Err)
}

// Unwrap exposes both ErrRefreshFailed and the underlying cause.
func (e *RefreshError) Unwrap() []error {
	return []error{ErrRefreshFailed, e.Err}
}

// FamilyError describes an aborted family rebuild. Tables listed in Rebuilt
// were swapped in before Failed broke and stay live.
type FamilyError struct {
	Family  string
	Failed  string
	Rebuilt []string
	Err     error
}

func (e *FamilyError) Error() string {
	msg := fmt.Sprintf("family %s rebuild aborted at %s", e.Family, e.Failed)
	if len(e.Rebuilt) > 0 {
		msg += fmt.Sprintf(" after rebuilding %s", strings.Join(e.Rebuilt, ", "))
	}
	return msg + ": " + e.Err.Error()
}

func (e *FamilyError) Unwrap() error {
	return e.Err
}
