package av

import "github.com/opd-ai/panosphere/timing"

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider = timing.Provider

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider = timing.System
