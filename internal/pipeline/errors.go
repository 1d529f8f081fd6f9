package pipeline

import "errors"

// ErrStepPanicked wraps a panic recovered from a step.
var ErrStepPanicked = errors.New("step panicked")
