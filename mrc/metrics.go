package mrc

import "github.com/IvanBrykalov/arcmrc/config"

// Metrics exposes driver-level observability hooks.
// NoopMetrics is used when Options.Metrics is nil.
type Metrics interface {
	// Sample is called once per simulated capacity.
	Sample(method config.Method, capacity int, missRate float64)
	// Refine is called once per slope bisection step.
	Refine()
	// BudgetExhausted reports intervals left above threshold when the
	// iteration budget ran out.
	BudgetExhausted(unrefined int)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Sample(config.Method, int, float64) {}
func (NoopMetrics) Refine()                            {}
func (NoopMetrics) BudgetExhausted(int)                {}
