package statusnotifier

import "github.com/prometheus/client_golang/prometheus"

// IncrementalCounter counts tray activity, such as session transitions and
// dispatched menu actions. Implementations must be safe for concurrent use.
type IncrementalCounter interface {
	Increment(val ...string)
}

type nopCounter struct{}

func (nopCounter) Increment(...string) {}

// NopCounter returns a counter that discards all increments.
func NopCounter() IncrementalCounter {
	return nopCounter{}
}

// Counter is a prometheus-backed [IncrementalCounter].
type Counter struct {
	Name string
	Help string

	vec *prometheus.CounterVec
}

func (c *Counter) Increment(val ...string) {
	c.vec.WithLabelValues(val...).Inc()
}

// NewCounter registers a new [Counter] with the default prometheus registry.
func NewCounter(name, help string, labels ...string) *Counter {
	return NewCounterWithRegistry(prometheus.DefaultRegisterer, name, help, labels...)
}

// NewCounterWithRegistry registers a new [Counter] with the given registry.
func NewCounterWithRegistry(reg prometheus.Registerer, name, help string, labels ...string) *Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, labels)

	reg.MustRegister(vec)

	return &Counter{
		Name: name,
		Help: help,
		vec:  vec,
	}
}
