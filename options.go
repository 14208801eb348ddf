package arraycache

import (
	"github.com/hupe1980/arraycache/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	rc               *resource.Controller
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceController attaches a controller that tracks the bytes held by the cache.
//
// The cache never rejects or evicts entries on account of the controller; it
// only reports usage. Admission decisions belong to the code that fetches data.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

func defaultOptions() options {
	return options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
}
