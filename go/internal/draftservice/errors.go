package draftservice

import "github.com/harlowbrent/boosterdraft/go/internal/turnengine"

// Code enumerates the wire-level error codes spec.md §7 defines.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeNotHost           Code = "NOT_HOST"
	CodeNotSeatOwner      Code = "NOT_SEAT_OWNER"
	CodeDraftLocked       Code = "DRAFT_LOCKED"
	CodeDraftFull         Code = "DRAFT_FULL"
	CodeAlreadyJoined     Code = "ALREADY_JOINED"
	CodeInvalidSelection  Code = "INVALID_SELECTION"
	CodeStateChanged      Code = "STATE_CHANGED"
	CodeTooFewPlayers     Code = "TOO_FEW_PLAYERS"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Error is what every DraftService entry point returns on failure.
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

// fromEngine maps a turnengine.Code onto its wire-level equivalent; the
// two enumerations are deliberately 1:1 except where DraftService adds
// auth-related codes the engine never produces.
func fromEngine(err error) *Error {
	te, ok := err.(*turnengine.Error)
	if !ok {
		return newError(CodeStorageUnavailable, err.Error())
	}
	switch te.Code {
	case turnengine.CodeDraftFull:
		return newError(CodeDraftFull, te.Msg)
	case turnengine.CodeDraftLocked:
		return newError(CodeDraftLocked, te.Msg)
	case turnengine.CodeAlreadyJoined:
		return newError(CodeAlreadyJoined, te.Msg)
	case turnengine.CodeStateChanged:
		return newError(CodeStateChanged, te.Msg)
	case turnengine.CodeTooFewPlayers:
		return newError(CodeTooFewPlayers, te.Msg)
	case turnengine.CodeInvalidSelection:
		return newError(CodeInvalidSelection, te.Msg)
	default:
		return newError(CodeStateChanged, te.Msg)
	}
}
