// Package generator fabricates ridership, delay and performance facts that are
// consistent with a dimension registry. Output is a lazy sequence that replays
// identically for the same registry, parameters and seed.
package generator

import (
	"iter"
	"math/rand/v2"
	"time"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/registry"
)

// Params configures a generation run.
type Params struct {
	Start         time.Time
	End           time.Time
	TargetRecords int
	Seed          uint64
}

// DelaysPerDay is the expected number of delay incidents across the whole
// network on an ordinary weekday.
const DelaysPerDay = 15.0

// Generator produces fact records. It is safe to call Records more than once;
// each call replays the same stream.
type Generator struct {
	reg     *registry.Registry
	params  Params
	dates   []domain.DateDim
	profile *profile

	ridershipTarget float64
}

// profile holds the per-entity factors that are drawn once and reused for
// every date of the run.
type profile struct {
	weekendFactor float64
	popularity    map[string]float64 // station id -> popularity
	reliability   map[int]float64    // line id -> delay rate factor
	weekdayTrips  map[int]int        // line id -> scheduled trips on weekdays
	weekendTrips  map[int]int
	baseOTP       map[int]float64

	dayWeightSum     float64
	stationWeightSum float64
}

// New validates params against the registry.
// Parameters:
//   - reg: populated registry; every emitted key comes from it.
//   - p: date range, target record count and seed.
// Returns:
//   - *Generator: ready generator.
//   - error: InvalidRangeError if Start is after End or the range is not
//     covered by the registry, InvalidParameterError if TargetRecords <= 0.
func New(reg *registry.Registry, p Params) (*Generator, error) {
	if p.Start.After(p.End) {
		return nil, &domain.InvalidRangeError{Start: p.Start, End: p.End}
	}
	if p.TargetRecords <= 0 {
		return nil, &domain.InvalidParameterError{
			Name: "target_records", Value: p.TargetRecords, Reason: "must be positive",
		}
	}
	if !reg.Covers(p.Start, p.End) {
		return nil, &domain.InvalidRangeError{Start: p.Start, End: p.End}
	}

	g := &Generator{reg: reg, params: p}
	startKey, endKey := registry.DateKeyFor(p.Start), registry.DateKeyFor(p.End)
	for _, d := range reg.Dates() {
		if d.DateKey >= startKey && d.DateKey <= endKey {
			g.dates = append(g.dates, d)
		}
	}
	g.profile = g.buildProfile()

	// Ridership gets what is left after the fixed-shape tables; small targets
	// still keep half of the budget for ridership.
	lines := float64(len(reg.Lines()))
	days := float64(len(g.dates))
	rest := float64(p.TargetRecords) - days*lines - days*DelaysPerDay
	g.ridershipTarget = max(rest, float64(p.TargetRecords)/2)
	return g, nil
}

func (g *Generator) buildProfile() *profile {
	rng := rand.New(rand.NewPCG(g.params.Seed, 0x9e3779b97f4a7c15))
	pr := &profile{
		weekendFactor: uniform(rng, 0.6, 0.8),
		popularity:    make(map[string]float64),
		reliability:   make(map[int]float64),
		weekdayTrips:  make(map[int]int),
		weekendTrips:  make(map[int]int),
		baseOTP:       make(map[int]float64),
	}
	for _, st := range g.reg.Stations() {
		var w float64
		switch {
		case g.reg.IsMajor(st.StationID):
			w = uniform(rng, 3, 10)
		case st.Borough == "Manhattan":
			w = uniform(rng, 1.5, 4)
		default:
			w = uniform(rng, 0.5, 2)
		}
		pr.popularity[st.StationID] = w
		pr.stationWeightSum += w
	}
	for _, line := range g.reg.Lines() {
		pr.reliability[line.LineID] = uniform(rng, 0.5, 1.8)
		pr.weekdayTrips[line.LineID] = uniformInt(rng, 300, 450)
		pr.weekendTrips[line.LineID] = uniformInt(rng, 150, 250)
		pr.baseOTP[line.LineID] = uniform(rng, 0.75, 0.92)
	}
	for _, d := range g.dates {
		pr.dayWeightSum += pr.dayWeight(d)
	}
	return pr
}

func (pr *profile) dayWeight(d domain.DateDim) float64 {
	switch {
	case d.IsHoliday:
		return 0.4
	case d.IsWeekend:
		return pr.weekendFactor
	default:
		return 1.0
	}
}

// Records returns the fact stream: for each date, ridership rows first, then
// delays, then one performance row per line.
func (g *Generator) Records() iter.Seq[domain.FactRecord] {
	return func(yield func(domain.FactRecord) bool) {
		rng := rand.New(rand.NewPCG(g.params.Seed, g.params.Seed^0x2545f4914f6cdd1d))
		for _, d := range g.dates {
			if !g.ridership(rng, d, yield) {
				return
			}
			if !g.delays(rng, d, yield) {
				return
			}
			if !g.performance(rng, d, yield) {
				return
			}
		}
	}
}

// Dates returns the calendar days the generator covers.
func (g *Generator) Dates() []domain.DateDim { return g.dates }

// Registry returns the registry the generator draws keys from.
func (g *Generator) Registry() *registry.Registry { return g.reg }

func isWinter(d domain.DateDim) bool {
	return d.Month == 12 || d.Month == 1 || d.Month == 2
}
