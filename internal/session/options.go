package session

import (
	"time"

	"go.uber.org/zap"

	"assetcomposer/internal/logger"
)

// Option configures a Session or Manager.
type Option func(*options)

type options struct {
	now func() time.Time
	log *zap.SugaredLogger
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger sessions write transitions and failures to.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) { o.log = log }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Named("session")
	}
	return o
}
