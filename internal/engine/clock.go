package engine

import "time"

// Clock supplies the current time to the engine. All deadline checks (the
// skip undo window, chat duration bookkeeping) go through it so tests can
// drive time deterministically instead of sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
