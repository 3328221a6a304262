package models

const (
	// MaxSimultaneousBookings is sent for every provisioned resource.
	MaxSimultaneousBookings = 1

	// ServiceNameSuffix is appended to the resource name for its service.
	ServiceNameSuffix = "_service"

	// OverlapSkipReason marks bulk items the upstream rejected with 422.
	OverlapSkipReason = "Overlapping schedule block (422)"

	// DefaultDisplayTimezone is used only for log output of booking times.
	DefaultDisplayTimezone = "Asia/Hong_Kong"

	// DefaultMaxBodyBytes caps inbound JSON bodies.
	DefaultMaxBodyBytes = 10 << 20

	// ConformanceEnabled / ConformanceDisabled are the booking.conformance_check values.
	ConformanceEnabled  = "enabled"
	ConformanceDisabled = "disabled"
)
