package transformer

import (
	"log/slog"

	"georef/internal/logging"
)

// SetLogger configures the logger used by the transformer and model
// packages. By default nothing is logged. Pass nil to restore that.
//
// Debug records describe model construction and solving; warnings report
// numerical failures that produce NaN weights.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logging.Logger()
}
