package arena

import "errors"

// ErrBadConfig signals a construction-time configuration failure.
var ErrBadConfig = errors.New("arena.badconfig")

// ErrOutOfMemory signals that the chunk provider could not supply a new
// backing region for a chunk.
var ErrOutOfMemory = errors.New("arena.outofmemory")

// ErrReleased is returned when an operation is attempted on an arena that
// has already been closed.
var ErrReleased = errors.New("arena.released")
