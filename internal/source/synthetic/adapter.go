// Package synthetic exposes the record generator as a Source.
package synthetic

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/generator"
	"github.com/timmy/transitdw/internal/registry"
)

const (
	SourceID   = "synthetic"
	SourceName = "Synthetic generator"
)

// Adapter implements the Source interface over a generator stream. Batches
// must be fetched in cursor order; the stream is pulled lazily.
type Adapter struct {
	gen *generator.Generator
	reg *registry.Registry

	next    func() (domain.FactRecord, bool)
	stop    func()
	emitted int
	done    bool
}

// NewAdapter creates a new synthetic adapter.
// Parameters:
//   - gen: generator whose stream is served.
// Returns:
//   - *Adapter: adapter positioned at the first record.
func NewAdapter(gen *generator.Generator) *Adapter {
	return &Adapter{gen: gen, reg: gen.Registry()}
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this source
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// DataSource implements source.Source.
func (a *Adapter) DataSource() domain.DataSource {
	return domain.DataSourceSynthetic
}

// FetchBatch returns up to limit staging records.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]*domain.StagingRecord, string, error) {
	offset := 0
	if cursor != "" {
		var err error
		offset, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}
	if offset == 0 && a.emitted > 0 {
		a.Close()
		a.emitted, a.done = 0, false
	}
	if offset != a.emitted {
		return nil, "", fmt.Errorf("cursor %d out of order, stream is at %d", offset, a.emitted)
	}
	if a.done {
		return nil, "", nil
	}
	if a.next == nil {
		a.next, a.stop = iter.Pull(a.gen.Records())
	}

	batch := make([]*domain.StagingRecord, 0, limit)
	for len(batch) < limit {
		if err := ctx.Err(); err != nil {
			return batch, "", err
		}
		fact, ok := a.next()
		if !ok {
			a.done = true
			a.Close()
			break
		}
		batch = append(batch, ToStaging(a.reg, fact))
	}
	a.emitted += len(batch)

	if a.done {
		return batch, "", nil
	}
	return batch, strconv.Itoa(a.emitted), nil
}

// Close releases the pulled stream. Safe to call more than once.
func (a *Adapter) Close() {
	if a.stop != nil {
		a.stop()
	}
	a.next, a.stop = nil, nil
}

// ToStaging turns a generated fact back into a raw record carrying names
// instead of keys, so generated data takes the same cleaning path as API
// data.
// Parameters:
//   - reg: registry the fact's keys come from.
//   - fact: generated fact.
// Returns:
//   - *domain.StagingRecord: equivalent raw record.
func ToStaging(reg *registry.Registry, fact domain.FactRecord) *domain.StagingRecord {
	rec := &domain.StagingRecord{Kind: fact.Kind(), Source: domain.DataSourceSynthetic}
	setDate := func(dateKey int) {
		if d, ok := reg.Date(dateKey); ok {
			rec.Date = domain.Ptr(d.FullDate)
		}
	}
	setTime := func(timeKey int) {
		rec.Hour = domain.Ptr(timeKey / 100)
		rec.Minute = domain.Ptr(timeKey % 100)
	}
	setLine := func(lineID int) {
		if l, ok := reg.LineByID(lineID); ok {
			rec.LineName = domain.Ptr(l.LineName)
		}
	}
	setStation := func(id string) {
		if st, ok := reg.StationByID(id); ok {
			rec.StationName = domain.Ptr(st.StationName)
		}
	}

	switch f := fact.(type) {
	case *domain.Ridership:
		setDate(f.DateKey)
		setTime(f.TimeKey)
		setStation(f.StationID)
		setLine(f.LineID)
		rec.Entries = domain.Ptr(f.Entries)
		rec.Exits = domain.Ptr(f.Exits)
	case *domain.Delay:
		setDate(f.DateKey)
		setTime(f.TimeKey)
		setLine(f.LineID)
		if f.StationID != nil {
			setStation(*f.StationID)
		}
		rec.ExternalID = f.ExternalID
		rec.DelayMinutes = domain.Ptr(f.DelayDurationMinutes)
		rec.DelayCategory = domain.Ptr(f.DelayCategory)
		rec.DelayReason = domain.Ptr(f.DelayReason)
		rec.SeverityLevel = domain.Ptr(f.SeverityLevel)
		rec.PassengerImpact = domain.Ptr(f.PassengerImpactEstimate)
		rec.ResolutionMinutes = domain.Ptr(f.ResolutionTimeMinutes)
	case *domain.Performance:
		setDate(f.DateKey)
		setLine(f.LineID)
		rec.ScheduledTrips = domain.Ptr(f.ScheduledTrips)
		rec.ActualTrips = domain.Ptr(f.ActualTrips)
		rec.OnTimeTrips = domain.Ptr(f.OnTimeTrips)
		rec.LateTrips = domain.Ptr(f.LateTrips)
		rec.CanceledTrips = domain.Ptr(f.CanceledTrips)
		rec.OnTimePercentage = domain.Ptr(f.OnTimePercentage)
		rec.MDBF = domain.Ptr(f.MeanDistanceBetweenFailures)
		rec.WaitAssessment = domain.Ptr(f.WaitAssessment)
		rec.JourneyTimePerf = domain.Ptr(f.CustomerJourneyTimePerformance)
	}
	return rec
}
