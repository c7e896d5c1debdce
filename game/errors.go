package game

import "errors"

// Rejected operations. These travel back to the requesting connection as an
// error message and never tear down a session.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session already has two players")
	ErrNotEnded        = errors.New("session is still running")
	ErrAlreadyEnded    = errors.New("match already ended")
	ErrCannotPause     = errors.New("match cannot be paused right now")
	ErrCannotResume    = errors.New("match can only be resumed by the player who paused it")
	ErrParticipantGone = errors.New("a participant has left the session")
)
