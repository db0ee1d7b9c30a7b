// Package logging provides structured logging utilities with context propagation.
//
// Key features:
//   - JSON and text output formats
//   - Cycle ID propagation for fetch cycles
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	logger := logging.NewLogger()
//	slog.SetDefault(logger)
//
//	ctx = logging.ContextWithCycleID(ctx, uuid.NewString())
//	logging.WithCycleID(ctx, slog.Default()).Info("fetch cycle started")
package logging
