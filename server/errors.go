package server

// ErrorKind is the machine-readable error kind surfaced in room_error and
// reconnect_failed payloads.
type ErrorKind string

const (
	ErrRoomNotFound ErrorKind = "room_not_found"
	ErrRoomFull     ErrorKind = "room_full"
	ErrInvalidInput ErrorKind = "invalid_input"
	ErrUnauthorized ErrorKind = "unauthorized"
	ErrServer       ErrorKind = "server_error"
)

// GameError pairs a machine-readable kind with a human-facing message.
// Translating that message for end users is out of scope; the
// gateway forwards it verbatim in room_error/reconnect_failed payloads.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string { return string(e.Kind) + ": " + e.Message }

func newError(kind ErrorKind, message string) *GameError {
	return &GameError{Kind: kind, Message: message}
}

var (
	errRoomNotFound = newError(ErrRoomNotFound, "no room exists with that code")
	errRoomFull     = newError(ErrRoomFull, "room already has a host and a guest")
)
