package turnengine

// Code enumerates the result kinds TurnEngine operations can return.
// DraftService maps each Code onto the wire-level error codes; bot and
// timeout callers treat every non-nil error as "retry on next tick".
type Code string

const (
	CodeDraftFull        Code = "DRAFT_FULL"
	CodeDraftLocked      Code = "DRAFT_LOCKED"
	CodeAlreadyJoined    Code = "ALREADY_JOINED"
	CodeStateChanged     Code = "STATE_CHANGED"
	CodeTooFewPlayers    Code = "TOO_FEW_PLAYERS"
	CodeInvalidSelection Code = "INVALID_SELECTION"
)

// Error is the typed result TurnEngine operations fail with.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Msg
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}
