package server

import (
	"golang.org/x/time/rate"
)

// PlayerInput is the validated shape of an inbound player_input event: a
// direction request, the moving/firing intent, and the client's own
// timestamp.
type PlayerInput struct {
	Direction    Direction
	HasDirection bool
	Moving       bool
	Firing       bool
	Timestamp    int64
}

// InputMessage is the raw wire shape decoded from a player_input envelope.
type InputMessage struct {
	Type      string  `json:"type"`
	Direction *string `json:"direction,omitempty"`
	Moving    bool    `json:"moving"`
	Firing    bool    `json:"firing"`
	Timestamp int64   `json:"timestamp"`
}

// validateInput checks shape and range, converting to a PlayerInput.
func validateInput(msg InputMessage) (PlayerInput, *GameError) {
	if msg.Type != "state" {
		return PlayerInput{}, newError(ErrInvalidInput, `player_input.type must be "state"`)
	}
	in := PlayerInput{Moving: msg.Moving, Firing: msg.Firing, Timestamp: msg.Timestamp}
	if msg.Direction != nil {
		dir, ok := ParseDirection(*msg.Direction)
		if !ok || dir == DirNone {
			return PlayerInput{}, newError(ErrInvalidInput, "player_input.direction is not a recognized direction")
		}
		in.Direction = dir
		in.HasDirection = true
	}
	return in, nil
}

// InputLimiter rate-limits player_input events from a single connection
// using a token-bucket. Excess inputs are dropped and answered with an
// invalid_input room_error; the connection itself is never dropped for
// exceeding the rate.
type InputLimiter struct {
	limiter *rate.Limiter
}

func newInputLimiter() *InputLimiter {
	return &InputLimiter{limiter: rate.NewLimiter(rate.Limit(60), 10)}
}

func (l *InputLimiter) Allow() bool { return l.limiter.Allow() }
