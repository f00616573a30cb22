// Package logging provides structured logging for basetemp.
//
// It wraps Go's log/slog with a JSON handler and a small set of persistent
// attributes (root, prefix, directory) so that allocation, lock and garbage
// collection events from concurrent processes sharing one root can be
// correlated after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/basetemp.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithRoot(root).WithPrefix("run-").Info("allocated", "dir", d.Path)
//
// An empty path writes to stderr. Components accept a nil *Logger; use
// [NopLogger] in tests.
package logging
