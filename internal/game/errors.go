package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected command.
type ErrorKind string

const (
	// KindIllegalTurn: the submitter does not hold the turn or the open
	// follow-up obligation, or the match is not in progress.
	KindIllegalTurn ErrorKind = "illegal_turn"
	// KindInvalidReference: an instance, player or card type named by the
	// command does not exist where the command expects it.
	KindInvalidReference ErrorKind = "invalid_reference"
	// KindInsufficientResource: the hand or deck cannot pay for the action.
	KindInsufficientResource ErrorKind = "insufficient_resource"
	// KindActionInProgress: a pending action blocks the command.
	KindActionInProgress ErrorKind = "action_in_progress"
)

// CommandError is returned for a command rejected without any state change.
// The message is meant for the submitter only.
type CommandError struct {
	Kind ErrorKind
	Msg  string
}

func (e *CommandError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches any CommandError of the same kind, so callers can test with
// errors.Is(err, game.ErrIllegalTurn).
func (e *CommandError) Is(target error) bool {
	var ce *CommandError
	if !errors.As(target, &ce) {
		return false
	}
	return ce.Kind == e.Kind
}

var (
	ErrIllegalTurn          = &CommandError{Kind: KindIllegalTurn}
	ErrInvalidReference     = &CommandError{Kind: KindInvalidReference}
	ErrInsufficientResource = &CommandError{Kind: KindInsufficientResource}
	ErrActionInProgress     = &CommandError{Kind: KindActionInProgress}

	// ErrMatchClosed is returned once a match has shut down.
	ErrMatchClosed = errors.New("match closed")
	// ErrMatchNotFound is returned by the manager for unknown match ids.
	ErrMatchNotFound = errors.New("match not found")
	// ErrConservation marks a card count mismatch. It ends the match.
	ErrConservation = errors.New("card conservation violated")
)

func reject(kind ErrorKind, format string, args ...any) error {
	return &CommandError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
