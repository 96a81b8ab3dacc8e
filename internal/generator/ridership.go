package generator

import (
	"math/rand/v2"
	"slices"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/registry"
)

const minutesPerDay = 24 * 60

// hourWeights skews sampled minutes toward the rush periods.
var hourWeights = func() []float64 {
	w := make([]float64, 24)
	for h := range w {
		switch registry.TimePeriodFor(h) {
		case registry.PeriodMorningRush, registry.PeriodEveningRush:
			w[h] = 3.0
		case registry.PeriodMidday:
			w[h] = 1.5
		case registry.PeriodNight:
			w[h] = 1.0
		default:
			w[h] = 0.3
		}
	}
	return cumulative(w)
}()

// ridership emits the ridership rows of one day. Each (station, line) pair
// gets an expected share of the target; the realised count is drawn as that
// many distinct minutes of the day.
func (g *Generator) ridership(rng *rand.Rand, d domain.DateDim, yield func(domain.FactRecord) bool) bool {
	pr := g.profile
	dayShare := pr.dayWeight(d) / pr.dayWeightSum
	for _, st := range g.reg.Stations() {
		lines := g.reg.LinesForStation(st.StationID)
		if len(lines) == 0 {
			continue
		}
		pop := pr.popularity[st.StationID]
		expected := g.ridershipTarget * dayShare * (pop / pr.stationWeightSum) / float64(len(lines))
		for _, lineID := range lines {
			n := min(stochasticRound(rng, expected), minutesPerDay)
			for _, minute := range sampleMinutes(rng, n) {
				rec := g.ridershipRecord(rng, d, st.StationID, lineID, pop, minute)
				if !yield(rec) {
					return false
				}
			}
		}
	}
	return true
}

func (g *Generator) ridershipRecord(rng *rand.Rand, d domain.DateDim, stationID string, lineID int, pop float64, minuteOfDay int) *domain.Ridership {
	hour, minute := minuteOfDay/60, minuteOfDay%60

	var base float64
	switch period := registry.TimePeriodFor(hour); {
	case registry.IsPeakHour(hour):
		base = uniform(rng, 500, 5000)
	case period == registry.PeriodMidday:
		base = uniform(rng, 200, 2000)
	default:
		base = uniform(rng, 50, 500)
	}
	volume := base * pop / 2
	if d.IsWeekend {
		volume *= g.profile.weekendFactor
	}
	entries := int64(volume)
	exits := max(int64(float64(entries)*uniform(rng, 0.85, 1.15)), 0)

	return &domain.Ridership{
		DateKey:      d.DateKey,
		TimeKey:      registry.TimeKeyFor(hour, minute),
		StationID:    stationID,
		LineID:       lineID,
		Entries:      entries,
		Exits:        exits,
		TotalTraffic: entries + exits,
		DataSource:   domain.DataSourceSynthetic,
	}
}

// sampleMinutes returns n distinct minutes of the day in ascending order,
// weighted by hourWeights.
func sampleMinutes(rng *rand.Rand, n int) []int {
	if n <= 0 {
		return nil
	}
	if n > minutesPerDay/4 {
		perm := rng.Perm(minutesPerDay)[:n]
		slices.Sort(perm)
		return perm
	}
	seen := make(map[int]struct{}, n)
	out := make([]int, 0, n)
	for len(out) < n {
		m := weightedIndex(rng, hourWeights)*60 + rng.IntN(60)
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}
