package delta

import "errors"

var (
	// ErrComposeMismatch: the right delta expects a longer document than the
	// left delta produces.
	ErrComposeMismatch = errors.New("COMPOSE_MISMATCH")
	// ErrApplyMismatch: the delta's base length disagrees with the document.
	ErrApplyMismatch = errors.New("APPLY_MISMATCH")
	// ErrTransformMismatch: concurrent deltas cannot be reconciled.
	ErrTransformMismatch = errors.New("TRANSFORM_MISMATCH")
	// ErrAttributeMisuse: attributes attached to a delete op.
	ErrAttributeMisuse = errors.New("ATTRIBUTE_MISUSE")
)
