package domain

// DelayBand maps a range of delay durations to its category and severity.
// Both labels live on the same band so they can never disagree.
type DelayBand struct {
	MaxMinutes int // inclusive upper bound; the last band is open-ended
	Category   string
	Severity   string
}

// DelayBands is the single definition of delay classification thresholds.
var DelayBands = []DelayBand{
	{MaxMinutes: 5, Category: "Minor", Severity: "Low"},
	{MaxMinutes: 15, Category: "Moderate", Severity: "Medium"},
	{MaxMinutes: 30, Category: "Significant", Severity: "Medium"},
	{MaxMinutes: 60, Category: "Major", Severity: "High"},
	{MaxMinutes: -1, Category: "Severe", Severity: "High"},
}

// ClassifyDelay returns the category and severity for a delay duration in minutes.
func ClassifyDelay(minutes int) (category, severity string) {
	for _, b := range DelayBands {
		if b.MaxMinutes < 0 || minutes <= b.MaxMinutes {
			return b.Category, b.Severity
		}
	}
	last := DelayBands[len(DelayBands)-1]
	return last.Category, last.Severity
}
