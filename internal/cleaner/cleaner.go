// Package cleaner turns staging records into warehouse facts. Every record is
// normalized, then checked in a fixed order: required fields, dimension
// references, value ranges and cross-field consistency. The first failing
// check rejects the record; a rejected record never stops the others.
package cleaner

import (
	"context"
	"fmt"
	"math"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/registry"
)

// Default bounds for corrupt-feed detection.
const (
	DefaultMaxEntries      = 1_000_000
	DefaultMaxDelayMinutes = 24 * 60
)

// Options bounds the accepted measure values.
type Options struct {
	MaxEntries      int64 // entries and exits must be below this
	MaxDelayMinutes int   // delay durations must not exceed this
}

// Cleaner validates staging records against a registry.
type Cleaner struct {
	reg  *registry.Registry
	opts Options
}

// Cleaned pairs a fact with the staging record it came from.
type Cleaned struct {
	Fact    domain.FactRecord
	Staging *domain.StagingRecord
}

// Result is the outcome of CleanAll.
type Result struct {
	Clean    []Cleaned
	Rejected []*domain.StagingRecord
	ByReason map[string]int64
}

// New creates a Cleaner. Zero option values take the defaults.
func New(reg *registry.Registry, opts Options) *Cleaner {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxDelayMinutes <= 0 {
		opts.MaxDelayMinutes = DefaultMaxDelayMinutes
	}
	return &Cleaner{reg: reg, opts: opts}
}

// CleanAll cleans every record. Rejected records are marked failed and kept.
// Parameters:
//   - ctx: carries the logger used for reject diagnostics.
//   - recs: staging records; they are mutated in place.
// Returns:
//   - Result: accepted facts, rejected records and reject counts by reason.
func (c *Cleaner) CleanAll(ctx context.Context, recs []*domain.StagingRecord) Result {
	res := Result{
		Clean:    make([]Cleaned, 0, len(recs)),
		ByReason: make(map[string]int64),
	}
	for _, rec := range recs {
		fact, err := c.Clean(rec)
		if err != nil {
			res.Rejected = append(res.Rejected, rec)
			res.ByReason[domain.RejectReason(err)]++
			logger.FromContext(ctx).WithFields(logger.Fields{
				"kind":    rec.Kind,
				"reason":  domain.RejectReason(err),
				"payload": rec.Payload,
			}).Debugf("Rejected staging record: %v", err)
			continue
		}
		res.Clean = append(res.Clean, Cleaned{Fact: fact, Staging: rec})
	}

	logger.With(logger.Fields{
		"accepted": len(res.Clean),
		"rejected": len(res.Rejected),
	}).Info(ctx, "Cleaned %d staging records", len(recs))
	return res
}

// Clean validates one staging record.
// Parameters:
//   - rec: record to validate; normalized and marked processed or failed in place.
// Returns:
//   - domain.FactRecord: the resolved fact on success.
//   - error: MissingFieldError, UnknownReferenceError, OutOfRangeError or InconsistentDataError.
func (c *Cleaner) Clean(rec *domain.StagingRecord) (domain.FactRecord, error) {
	normalize(rec)

	var (
		fact domain.FactRecord
		err  error
	)
	switch rec.Kind {
	case domain.FactRidership:
		fact, err = c.ridership(rec)
	case domain.FactDelay:
		fact, err = c.delay(rec)
	case domain.FactPerformance:
		fact, err = c.performance(rec)
	default:
		err = &domain.MissingFieldError{Field: "kind"}
	}
	if err != nil {
		rec.MarkFailed(err)
		return nil, err
	}
	rec.MarkProcessed()
	return fact, nil
}

func (c *Cleaner) ridership(rec *domain.StagingRecord) (domain.FactRecord, error) {
	// 1. required fields
	switch {
	case rec.Date == nil:
		return nil, &domain.MissingFieldError{Field: "date"}
	case rec.Hour == nil:
		return nil, &domain.MissingFieldError{Field: "hour"}
	case rec.StationName == nil:
		return nil, &domain.MissingFieldError{Field: "station_name"}
	case rec.Entries == nil && rec.Exits == nil:
		return nil, &domain.MissingFieldError{Field: "entries"}
	}

	// 2. references
	dateKey, err := c.dateKey(rec)
	if err != nil {
		return nil, err
	}
	timeKey, err := c.timeKey(rec)
	if err != nil {
		return nil, err
	}
	station, ok := c.reg.Station(*rec.StationName)
	if !ok {
		return nil, &domain.UnknownReferenceError{Kind: domain.DimensionStation, Key: *rec.StationName}
	}
	var lineID int
	if rec.LineName != nil {
		line, ok := c.reg.Line(*rec.LineName)
		if !ok {
			return nil, &domain.UnknownReferenceError{Kind: domain.DimensionLine, Key: *rec.LineName}
		}
		lineID = line.LineID
	} else {
		// Station-level feeds carry no line; attribute to the station's first line.
		lines := c.reg.LinesForStation(station.StationID)
		if len(lines) == 0 {
			return nil, &domain.UnknownReferenceError{Kind: domain.DimensionLine, Key: station.StationName}
		}
		lineID = lines[0]
	}

	// 3. ranges
	entries, exits := deref64(rec.Entries), deref64(rec.Exits)
	limit := float64(c.opts.MaxEntries)
	if entries < 0 || entries >= c.opts.MaxEntries {
		return nil, &domain.OutOfRangeError{Field: "entries", Value: float64(entries), Min: 0, Max: limit}
	}
	if exits < 0 || exits >= c.opts.MaxEntries {
		return nil, &domain.OutOfRangeError{Field: "exits", Value: float64(exits), Min: 0, Max: limit}
	}

	return &domain.Ridership{
		DateKey:      dateKey,
		TimeKey:      timeKey,
		StationID:    station.StationID,
		LineID:       lineID,
		Entries:      entries,
		Exits:        exits,
		TotalTraffic: entries + exits,
		DataSource:   rec.Source,
	}, nil
}

func (c *Cleaner) delay(rec *domain.StagingRecord) (domain.FactRecord, error) {
	switch {
	case rec.Date == nil:
		return nil, &domain.MissingFieldError{Field: "date"}
	case rec.Hour == nil:
		return nil, &domain.MissingFieldError{Field: "hour"}
	case rec.LineName == nil:
		return nil, &domain.MissingFieldError{Field: "line_name"}
	case rec.DelayMinutes == nil:
		return nil, &domain.MissingFieldError{Field: "delay_minutes"}
	}

	dateKey, err := c.dateKey(rec)
	if err != nil {
		return nil, err
	}
	timeKey, err := c.timeKey(rec)
	if err != nil {
		return nil, err
	}
	line, ok := c.reg.Line(*rec.LineName)
	if !ok {
		return nil, &domain.UnknownReferenceError{Kind: domain.DimensionLine, Key: *rec.LineName}
	}
	var stationID *string
	if rec.StationName != nil {
		st, ok := c.reg.Station(*rec.StationName)
		if !ok {
			return nil, &domain.UnknownReferenceError{Kind: domain.DimensionStation, Key: *rec.StationName}
		}
		stationID = domain.Ptr(st.StationID)
	}

	minutes := *rec.DelayMinutes
	if minutes < 0 || minutes > c.opts.MaxDelayMinutes {
		return nil, &domain.OutOfRangeError{
			Field: "delay_minutes", Value: float64(minutes), Min: 0, Max: float64(c.opts.MaxDelayMinutes),
		}
	}
	impact := derefInt(rec.PassengerImpact, 0)
	if impact < 0 {
		return nil, &domain.OutOfRangeError{Field: "passenger_impact", Value: float64(impact), Min: 0, Max: math.Inf(1)}
	}
	resolution := derefInt(rec.ResolutionMinutes, minutes)
	if resolution < 0 {
		return nil, &domain.OutOfRangeError{Field: "resolution_minutes", Value: float64(resolution), Min: 0, Max: math.Inf(1)}
	}

	category, severity := domain.ClassifyDelay(minutes)
	reason := "Unknown"
	if rec.DelayReason != nil && *rec.DelayReason != "" {
		reason = *rec.DelayReason
	}
	return &domain.Delay{
		ExternalID:              rec.ExternalID,
		DateKey:                 dateKey,
		TimeKey:                 timeKey,
		LineID:                  line.LineID,
		StationID:               stationID,
		DelayDurationMinutes:    minutes,
		DelayCategory:           category,
		DelayReason:             reason,
		SeverityLevel:           severity,
		PassengerImpactEstimate: impact,
		ResolutionTimeMinutes:   resolution,
		DataSource:              rec.Source,
	}, nil
}

func (c *Cleaner) performance(rec *domain.StagingRecord) (domain.FactRecord, error) {
	switch {
	case rec.Date == nil:
		return nil, &domain.MissingFieldError{Field: "date"}
	case rec.LineName == nil:
		return nil, &domain.MissingFieldError{Field: "line_name"}
	case rec.ScheduledTrips == nil:
		return nil, &domain.MissingFieldError{Field: "scheduled_trips"}
	case rec.OnTimeTrips == nil && rec.OnTimePercentage == nil:
		return nil, &domain.MissingFieldError{Field: "on_time_trips"}
	}

	dateKey, err := c.dateKey(rec)
	if err != nil {
		return nil, err
	}
	line, ok := c.reg.Line(*rec.LineName)
	if !ok {
		return nil, &domain.UnknownReferenceError{Kind: domain.DimensionLine, Key: *rec.LineName}
	}

	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"on_time_percentage", rec.OnTimePercentage},
		{"wait_assessment", rec.WaitAssessment},
		{"journey_time_performance", rec.JourneyTimePerf},
	} {
		if f.v != nil && (*f.v < 0 || *f.v > 100) {
			return nil, &domain.OutOfRangeError{Field: f.name, Value: *f.v, Min: 0, Max: 100}
		}
	}
	if rec.MDBF != nil && *rec.MDBF < 0 {
		return nil, &domain.OutOfRangeError{Field: "mdbf", Value: *rec.MDBF, Min: 0, Max: math.Inf(1)}
	}

	scheduled := *rec.ScheduledTrips
	var onTime int
	if rec.OnTimeTrips != nil {
		onTime = *rec.OnTimeTrips
	} else {
		onTime = int(math.Round(float64(scheduled) * *rec.OnTimePercentage / 100))
	}
	actual := derefInt(rec.ActualTrips, 0)
	if rec.ActualTrips == nil {
		switch {
		case rec.CanceledTrips != nil:
			actual = scheduled - *rec.CanceledTrips
		case rec.LateTrips != nil:
			actual = onTime + *rec.LateTrips
		default:
			actual = scheduled
		}
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"scheduled_trips", scheduled},
		{"on_time_trips", onTime},
		{"actual_trips", actual},
	} {
		if f.v < 0 {
			return nil, &domain.OutOfRangeError{Field: f.name, Value: float64(f.v), Min: 0, Max: math.Inf(1)}
		}
	}

	// 4. consistency
	switch {
	case onTime > scheduled:
		return nil, &domain.InconsistentDataError{Rule: "on_time_trips <= scheduled_trips"}
	case actual > scheduled:
		return nil, &domain.InconsistentDataError{Rule: "actual_trips <= scheduled_trips"}
	case onTime > actual:
		return nil, &domain.InconsistentDataError{Rule: "on_time_trips <= actual_trips"}
	}

	return &domain.Performance{
		DateKey:                        dateKey,
		LineID:                         line.LineID,
		ScheduledTrips:                 scheduled,
		ActualTrips:                    actual,
		OnTimeTrips:                    onTime,
		LateTrips:                      derefInt(rec.LateTrips, actual-onTime),
		CanceledTrips:                  derefInt(rec.CanceledTrips, scheduled-actual),
		OnTimePercentage:               domain.OnTimePercentageOf(onTime, scheduled),
		MeanDistanceBetweenFailures:    derefFloat(rec.MDBF),
		WaitAssessment:                 derefFloat(rec.WaitAssessment),
		CustomerJourneyTimePerformance: derefFloat(rec.JourneyTimePerf),
		DataSource:                     rec.Source,
	}, nil
}

func (c *Cleaner) dateKey(rec *domain.StagingRecord) (int, error) {
	key := registry.DateKeyFor(*rec.Date)
	if _, ok := c.reg.Date(key); !ok {
		return 0, &domain.UnknownReferenceError{Kind: domain.DimensionDate, Key: rec.Date.Format(domain.DateLayout)}
	}
	return key, nil
}

func (c *Cleaner) timeKey(rec *domain.StagingRecord) (int, error) {
	h, m := *rec.Hour, derefInt(rec.Minute, 0)
	key := registry.TimeKeyFor(h, m)
	if h < 0 || h > 23 || m < 0 || m > 59 || !c.reg.HasTime(key) {
		return 0, &domain.UnknownReferenceError{Kind: domain.DimensionTime, Key: fmt.Sprintf("%02d:%02d", h, m)}
	}
	return key, nil
}

func deref64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
