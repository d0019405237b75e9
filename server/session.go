package server

import "github.com/google/uuid"

// SessionID is an opaque, server-issued token binding a player slot across
// reconnects (spec glossary). Backed by a cryptographically random UUIDv4.
type SessionID string

func newSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// newSocketID returns an opaque per-connection identifier, distinct from a
// SessionID in purpose (it never survives a reconnect) though backed by the
// same random source.
func newSocketID() string {
	return uuid.New().String()
}
