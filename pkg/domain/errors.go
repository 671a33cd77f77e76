package domain

import "errors"

// ErrRollNotFound is returned when a roll ID cannot be found in the store.
var ErrRollNotFound = errors.New("roll not found")

// ErrMacroNotFound is returned when a named formula does not exist in the library.
var ErrMacroNotFound = errors.New("macro not found")

// ErrRollMismatch is returned when a stored roll, restored from its term tree,
// no longer adds up to the total recorded next to it.
var ErrRollMismatch = errors.New("replayed total does not match recorded total")
