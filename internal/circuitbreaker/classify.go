package circuitbreaker

import (
	"context"
	"errors"
	"net"
	"os"
)

// Classify returns the error weight of a call outcome.
//
// Weights:
//   - nil, context.Canceled -> 0 (the caller gave up, the dependency is fine)
//   - deadline exceeded -> 1.5
//   - network and other errors -> 1.0
//
// Callers filter out expected sentinel results (such as a key miss) before
// recording.
func Classify(err error) float64 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return 1.5
	case errors.Is(err, context.Canceled):
		return 0
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 1.5
	}
	return 1.0
}
