// Package metrics defines the types and constants used for metric
// collection and reporting in the utility layer. Components record through
// the package-level facade; registered reporters forward the records to
// observability backends such as Prometheus.
package metrics

// Policy defines the aggregation policy for metric values. It determines
// how multiple values for the same metric should be combined over a time
// window.
type Policy int

const (
	Policy_None      Policy = iota // Policy_None indicates no specific aggregation policy.
	Policy_Set                     // Policy_Set represents an instantaneous value; the last reported value wins.
	Policy_Sum                     // Policy_Sum represents a cumulative value, summing all reported values.
	Policy_Avg                     // Policy_Avg represents the average of all reported values.
	Policy_Max                     // Policy_Max represents the maximum value among all reported values.
	Policy_Min                     // Policy_Min represents the minimum value among all reported values.
	Policy_Stopwatch               // Policy_Stopwatch is for timing metrics, measuring event durations.
	Policy_Histogram               // Policy_Histogram is for distribution statistics.
)

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs. Dimensions
// provide contextual information such as I/O direction or priority class.
type Dimension map[string]string

const (
	// KB represents a kilobyte (1024 bytes).
	KB = 1024.0
	// MB represents a megabyte (1024 * 1024 bytes).
	MB = 1024.0 * 1024.0
)

// Group related constants, prefixed with Group.
const (
	// GroupKVUtil is the group name for utility-layer metrics.
	GroupKVUtil = "kvutil"
)

// Metric related constants.
const (
	// NameIOGrantedBytesTotal: Total bytes admitted by the I/O rate limiter.
	// group:kvutil dimension:direction,priority
	NameIOGrantedBytesTotal = "io_granted_bytes_total"

	// NameIOGrantedRequestsTotal: Total requests admitted by the I/O rate limiter.
	// group:kvutil dimension:direction,priority
	NameIOGrantedRequestsTotal = "io_granted_requests_total"

	// NameIOTimedOutBytesTotal: Total bytes of requests that timed out waiting for admission.
	// group:kvutil dimension:direction,priority
	NameIOTimedOutBytesTotal = "io_timedout_bytes_total"

	// NameIOTimedOutRequestsTotal: Total requests that timed out waiting for admission.
	// group:kvutil dimension:direction,priority
	NameIOTimedOutRequestsTotal = "io_timedout_requests_total"

	// NameIOCancelledRequestsTotal: Total requests withdrawn by their caller before admission.
	// group:kvutil dimension:direction,priority
	NameIOCancelledRequestsTotal = "io_cancelled_requests_total"

	// NameIOEffectiveCeilingBytes: Current effective bytes/sec ceiling of the limiter.
	// group:kvutil dimension:direction
	NameIOEffectiveCeilingBytes = "io_effective_ceiling_bytes"

	// NameIOWaitDurationMS: Distribution of admission wait time in milliseconds.
	// group:kvutil dimension:direction,priority
	NameIOWaitDurationMS = "io_wait_duration_ms"

	// NamePoolCreateTotal: Total objects created by an instrumented pool because it was empty.
	// group:kvutil dimension:poolname
	NamePoolCreateTotal = "pool_create_total"
)

// Dimension related definitions, prefixed with Dim.
const (
	// DimDirection is the dimension for I/O direction (read/write).
	// group:kvutil
	DimDirection = "direction"
	// DimPriority is the dimension for I/O priority class (low/medium/high).
	// group:kvutil
	DimPriority = "priority"
	// DimPoolName is the dimension for pool name.
	// group:kvutil
	DimPoolName = "poolname"
)
