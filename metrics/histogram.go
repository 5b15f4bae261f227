package metrics

// Histogram interface for metrics capturing a distribution of observed
// values, such as per-priority admission wait times.
type Histogram interface {
	Metrics
	// Observe records a single observation without dimensions.
	Observe(value Value)
	// ObserveWithDim records a single observation with specified dimensions.
	ObserveWithDim(value Value, dimensions Dimension)
}

// histogram implements the Histogram interface.
type histogram struct {
	name  string // Metric name
	group string // Metric group for categorization
}

// Name returns the metric name.
func (h *histogram) Name() string {
	return h.name
}

// Group returns the metric group.
func (h *histogram) Group() string {
	return h.group
}

// Policy returns the aggregation policy for this histogram (Policy_Histogram).
func (h *histogram) Policy() Policy {
	return Policy_Histogram
}

// Observe records a single observation without dimensions.
func (h *histogram) Observe(v Value) {
	h.ObserveWithDim(v, nil)
}

// ObserveWithDim records a single observation with specified dimensions.
func (h *histogram) ObserveWithDim(v Value, dimensions Dimension) {
	report(Record{
		metrics:    h,
		value:      v,
		cnt:        1,
		dimensions: dimensions,
	})
}
