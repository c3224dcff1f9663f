// Package logger provides a leveled, thread-safe logging facility backed by zap.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional component name, and
// a printf-style message.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Pool started")
//	logger.Info("worker-1", "Got a job; executing.")
//	logger.Error("worker-1", "Job panicked: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("worker-1", "Debug message")
//
// Structured fields are available through the underlying zap logger:
//
//	l.Zap().Info("connection served", zap.String("remote", addr))
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Thread Safety
//
// Writes go through a locked zapcore sink and are safe for concurrent use.
// The level can be changed at runtime with SetLevel.
package logger
