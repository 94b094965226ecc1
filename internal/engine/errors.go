package engine

import "errors"

// Reason is the machine-readable code attached to every rejection. These are
// the only failure strings that leave the engine.
type Reason string

const (
	ReasonEmpty        Reason = "empty"
	ReasonNotFound     Reason = "not_found"
	ReasonDuplicate    Reason = "duplicate"
	ReasonNotStarted   Reason = "not_started"
	ReasonPaused       Reason = "paused"
	ReasonGameOver     Reason = "game_over"
	ReasonInvalidState Reason = "invalid_state"
	ReasonNameTaken    Reason = "name_taken"
	ReasonInternal     Reason = "internal"
)

// Error is a recoverable engine failure. Two Errors match under errors.Is
// when they carry the same Reason.
type Error struct {
	Reason Reason
	msg    string
}

func NewError(reason Reason, msg string) *Error {
	return &Error{Reason: reason, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrGameOver      = NewError(ReasonGameOver, "game over")
	ErrInvalidState  = NewError(ReasonInvalidState, "invalid state for command")
	ErrNameTaken     = NewError(ReasonNameTaken, "player name already taken")
	ErrEmptyName     = NewError(ReasonEmpty, "player name is empty")
	ErrUnknownPlayer = NewError(ReasonNotFound, "player not in lobby")
)

// ReasonOf maps err to its reason code. Errors that did not originate in the
// engine report ReasonInternal; nil reports "".
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonInternal
}
