package engine

import "log/slog"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithKeepScratch leaves scratch directories in place after a failed
// build for forensic inspection. Default is to remove them; a lost publish
// race always removes the loser's scratch regardless of this setting.
func WithKeepScratch() Option {
	return func(e *Engine) {
		e.keepScratch = true
	}
}

// WithRecorder attaches an execution journal. Every Execute call records
// one Run, including nested dependency executions.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) {
		e.rec = rec
	}
}
