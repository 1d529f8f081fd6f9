package database

import "errors"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("clone run not found")
