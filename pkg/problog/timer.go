package problog

import (
	"time"

	"go.uber.org/zap"
)

// StartTimer starts a scoped timer and returns the function that stops it.
// Stopping logs the elapsed time at debug level.
//
//	defer StartTimer(logger, "ground")()
func StartTimer(logger *zap.Logger, name string) func() {
	if logger == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		logger.Debug("timer", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	}
}
