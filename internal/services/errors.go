// Package services implements the moderation bot's behavior on top of the
// in-memory state layer: the ordered update dispatcher, the moderation and
// game handlers, and the settings and warning services backed by the repo.
// This file centralizes service-level error values so callers can branch on
// them with errors.Is.
package services

import "errors"

var (
	// ErrNotAdmin is returned when a privileged action is attempted by a
	// user who is not an administrator of the chat.
	ErrNotAdmin = errors.New("user is not a chat administrator")

	// ErrBadCallbackData is returned when button payload cannot be parsed.
	ErrBadCallbackData = errors.New("malformed callback data")

	// ErrNoMessage is returned when a handler needs the message carrying a
	// keyboard but the callback arrived without it.
	ErrNoMessage = errors.New("callback has no message")
)
