package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDispatchAttempt = "DispatchAttempt"
	MetricDispatchLatency = "DispatchLatency"
	MetricTriggerLag      = "TriggerLag"

	// Dimension Keys
	DimSchedule = "Schedule"
	DimResult   = "Result"

	// Metric Namespace
	MetricNamespace = "LottoDispatch"
)
