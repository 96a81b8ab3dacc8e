package registry

// Time periods of the service day.
const (
	PeriodMorningRush = "Morning Rush"
	PeriodMidday      = "Midday"
	PeriodEveningRush = "Evening Rush"
	PeriodNight       = "Night"
	PeriodLateNight   = "Late Night"
)

// TimePeriodFor classifies an hour of day. Every peak-hour decision in the
// repository goes through this function.
func TimePeriodFor(hour int) string {
	switch {
	case hour >= 7 && hour <= 9:
		return PeriodMorningRush
	case hour >= 10 && hour <= 15:
		return PeriodMidday
	case hour >= 16 && hour <= 19:
		return PeriodEveningRush
	case hour >= 20 && hour <= 23:
		return PeriodNight
	default:
		return PeriodLateNight
	}
}

// IsPeakHour reports whether hour falls in a rush period.
func IsPeakHour(hour int) bool {
	p := TimePeriodFor(hour)
	return p == PeriodMorningRush || p == PeriodEveningRush
}
