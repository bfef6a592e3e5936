package screengrab

import "log/slog"

// Option configures a Session during creation.
type Option func(*sessionOptions)

type poolFactory func(display, width, height int, log *slog.Logger) (surfacePool, error)

type sessionOptions struct {
	logger  *slog.Logger
	factory poolFactory
}

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		logger:  newNopLogger(),
		factory: newSurfacePool,
	}
}

// WithLogger attaches a structured logger to the session. Sessions log
// resource allocation and release at Debug and failure paths at Warn.
// By default a session produces no log output. Passing nil restores the
// silent default.
func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) {
		if l == nil {
			l = newNopLogger()
		}
		o.logger = l
	}
}

// withPoolFactory overrides how the session acquires its surface pool.
// Used by tests to substitute a counting fake for the OS-backed pools.
func withPoolFactory(f poolFactory) Option {
	return func(o *sessionOptions) {
		o.factory = f
	}
}
