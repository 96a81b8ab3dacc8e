package nycopendata

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/transitdw/internal/domain"
)

// Column aliases seen across the MTA datasets and their older exports. The
// first alias present in a row wins.
var (
	dateFields      = []string{"transit_timestamp", "timestamp", "date", "start_date", "month"}
	hourFields      = []string{"hour", "transit_hour"}
	minuteFields    = []string{"minute"}
	stationFields   = []string{"station_complex", "station_name", "station", "stop_name"}
	lineFields      = []string{"line", "line_name", "route", "route_id", "daytime_routes"}
	entriesFields   = []string{"ridership", "entries"}
	exitsFields     = []string{"exits"}
	externalFields  = []string{"incident_id", "id", "external_id"}
	minutesFields   = []string{"delay_minutes", "delay_duration_minutes", "duration_minutes", "duration"}
	categoryFields  = []string{"delay_category"}
	reasonFields    = []string{"reporting_category", "delay_reason", "reason", "cause"}
	severityFields  = []string{"severity_level", "severity"}
	impactFields    = []string{"passenger_impact_estimate", "passenger_impact"}
	resolveFields   = []string{"resolution_time_minutes", "resolution_minutes"}
	scheduledFields = []string{"num_sched_trains", "scheduled_trips", "num_scheduled_trips"}
	actualFields    = []string{"num_actual_trains", "actual_trips", "num_actual_trips"}
	onTimeFields    = []string{"num_on_time_trains", "on_time_trips", "num_on_time_trips"}
	lateFields      = []string{"late_trips", "num_late_trains"}
	canceledFields  = []string{"canceled_trips", "cancelled_trips", "num_canceled_trains"}
	otpFields       = []string{"on_time_percentage", "terminal_on_time_performance", "otp"}
	mdbfFields      = []string{"mean_distance_between_failures", "mdbf"}
	waitFields      = []string{"wait_assessment"}
	journeyFields   = []string{"customer_journey_time_performance", "journey_time_performance", "cjtp"}
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
	"2006-01",
}

// apiDelayNamespace scopes the deterministic ids given to API delay rows
// without an incident id.
var apiDelayNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://data.ny.gov/transitdw/delays"))

type row map[string]any

func (r row) str(aliases []string) *string {
	for _, k := range aliases {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(x)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
	}
	return nil
}

func (r row) float(aliases []string) *float64 {
	s := r.str(aliases)
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(*s, "%"), 64)
	if err != nil {
		return nil
	}
	return &f
}

func (r row) int(aliases []string) *int {
	f := r.float(aliases)
	if f == nil {
		return nil
	}
	return domain.Ptr(int(*f))
}

func (r row) int64(aliases []string) *int64 {
	f := r.float(aliases)
	if f == nil {
		return nil
	}
	return domain.Ptr(int64(*f))
}

func (r row) timestamp(aliases []string) (time.Time, bool) {
	s := r.str(aliases)
	if s == nil {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toStaging maps one dataset row onto a staging record. Unparseable values
// are left nil so the cleaner reports them.
func toStaging(kind domain.FactKind, r row) *domain.StagingRecord {
	rec := &domain.StagingRecord{
		Kind:    kind,
		Source:  domain.DataSourceAPI,
		Payload: domain.Payload(r),
	}
	ts, hasTS := r.timestamp(dateFields)
	if hasTS {
		rec.Date = domain.Ptr(ts)
	}
	rec.Hour = r.int(hourFields)
	rec.Minute = r.int(minuteFields)
	if rec.Hour == nil && hasTS && kind != domain.FactPerformance && hasClock(r) {
		rec.Hour = domain.Ptr(ts.Hour())
		rec.Minute = domain.Ptr(ts.Minute())
	}
	rec.LineName = r.str(lineFields)

	switch kind {
	case domain.FactRidership:
		rec.StationName = r.str(stationFields)
		rec.Entries = r.int64(entriesFields)
		rec.Exits = r.int64(exitsFields)
	case domain.FactDelay:
		rec.StationName = r.str(stationFields)
		rec.ExternalID = r.str(externalFields)
		if rec.ExternalID == nil {
			rec.ExternalID = domain.Ptr(rowID(r))
		}
		rec.DelayMinutes = r.int(minutesFields)
		rec.DelayCategory = r.str(categoryFields)
		rec.DelayReason = r.str(reasonFields)
		rec.SeverityLevel = r.str(severityFields)
		rec.PassengerImpact = r.int(impactFields)
		rec.ResolutionMinutes = r.int(resolveFields)
	case domain.FactPerformance:
		rec.ScheduledTrips = r.int(scheduledFields)
		rec.ActualTrips = r.int(actualFields)
		rec.OnTimeTrips = r.int(onTimeFields)
		rec.LateTrips = r.int(lateFields)
		rec.CanceledTrips = r.int(canceledFields)
		rec.OnTimePercentage = r.float(otpFields)
		rec.MDBF = r.float(mdbfFields)
		rec.WaitAssessment = r.float(waitFields)
		rec.JourneyTimePerf = r.float(journeyFields)
	}
	return rec
}

// hasClock reports whether the row's date value carries a time of day.
func hasClock(r row) bool {
	s := r.str(dateFields)
	return s != nil && (strings.Contains(*s, "T") || strings.Contains(*s, ":"))
}

// rowID derives a stable id from the row content so reloading the same API
// rows does not duplicate delays.
func rowID(r row) string {
	b, err := json.Marshal(r)
	if err != nil {
		return "API-" + uuid.NewString()
	}
	return "API-" + uuid.NewSHA1(apiDelayNamespace, b).String()
}
