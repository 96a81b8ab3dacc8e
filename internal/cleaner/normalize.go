package cleaner

import (
	"strings"
	"time"
	"unicode"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/registry"
)

var boroughAliases = map[string]string{
	"m":             "Manhattan",
	"mn":            "Manhattan",
	"manhattan":     "Manhattan",
	"bk":            "Brooklyn",
	"bklyn":         "Brooklyn",
	"brooklyn":      "Brooklyn",
	"q":             "Queens",
	"qn":            "Queens",
	"queens":        "Queens",
	"bx":            "Bronx",
	"the bronx":     "Bronx",
	"bronx":         "Bronx",
	"si":            "Staten Island",
	"staten island": "Staten Island",
}

// NormalizeBorough maps abbreviations ("Bx", "SI", "M") to full borough names.
// Unknown values are returned trimmed.
func NormalizeBorough(s string) string {
	key := strings.ToLower(registry.NormalizeStationName(s))
	if b, ok := boroughAliases[key]; ok {
		return b
	}
	return strings.TrimSpace(s)
}

// TitleStation title-cases an all-upper or all-lower station name word by
// word. Words that start with a digit ("42nd") keep their lowercase suffix.
// Mixed-case names are already styled and only get whitespace collapsed.
func TitleStation(s string) string {
	s = registry.NormalizeStationName(s)
	if s == "" || (s != strings.ToUpper(s) && s != strings.ToLower(s)) {
		return s
	}
	out := []rune(s)
	start := true
	for i, r := range out {
		switch {
		case r == ' ' || r == '-' || r == '/' || r == '(':
			start = true
		case start:
			out[i] = unicode.ToUpper(r)
			start = false
		default:
			out[i] = unicode.ToLower(r)
		}
	}
	return string(out)
}

// normalize rewrites a staging record in place so validation sees one shape
// regardless of source.
func normalize(rec *domain.StagingRecord) {
	if rec.StationName != nil {
		name := TitleStation(*rec.StationName)
		if name == "" {
			rec.StationName = nil
		} else {
			rec.StationName = &name
		}
	}
	if rec.LineName != nil {
		line := strings.ToUpper(strings.TrimSpace(*rec.LineName))
		if line == "" {
			rec.LineName = nil
		} else {
			rec.LineName = &line
		}
	}
	if rec.Date != nil {
		y, m, d := rec.Date.Date()
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		rec.Date = &t
	}
	rec.OnTimePercentage = asPercent(rec.OnTimePercentage)
	rec.WaitAssessment = asPercent(rec.WaitAssessment)
	rec.JourneyTimePerf = asPercent(rec.JourneyTimePerf)

	if b, ok := rec.Payload["borough"].(string); ok {
		rec.Payload["borough"] = NormalizeBorough(b)
	}
}

// asPercent scales fractions in (0, 1] to percentages.
func asPercent(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if *v > 0 && *v <= 1 {
		p := *v * 100
		return &p
	}
	return v
}
