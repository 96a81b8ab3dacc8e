package generator

import (
	"fmt"
	"math/rand/v2"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/registry"
)

const maxDelayMinutes = 120

// DelayReasons are the incident causes used for synthetic delays.
var DelayReasons = []string{
	"Signal problems",
	"Switch problems",
	"Track maintenance",
	"Sick passenger",
	"Police investigation",
	"Debris on tracks",
	"Overcrowding",
	"Train traffic",
	"Mechanical problems",
	"Weather conditions",
	"Unattended package",
	"Track fire",
	"Medical emergency",
	"Door problems",
	"Power outage",
	"Earlier incident",
	"Crew availability",
	"Bridge operations",
}

// delayHourWeights makes incidents more likely during the rush periods.
var delayHourWeights = func() []float64 {
	w := make([]float64, 24)
	for h := range w {
		switch {
		case registry.IsPeakHour(h):
			w[h] = 2.5
		case registry.TimePeriodFor(h) == registry.PeriodLateNight:
			w[h] = 0.5
		default:
			w[h] = 1.0
		}
	}
	return cumulative(w)
}()

// delays emits the incidents of one day, line by line.
func (g *Generator) delays(rng *rand.Rand, d domain.DateDim, yield func(domain.FactRecord) bool) bool {
	lines := g.reg.Lines()
	perLine := DelaysPerDay / float64(len(lines))
	for _, line := range lines {
		lambda := perLine * g.profile.reliability[line.LineID]
		if d.IsWeekend {
			lambda *= 0.6
		}
		if isWinter(d) {
			lambda *= 1.3
		}
		stations := g.reg.StationsForLine(line.LineID)
		for n := range poisson(rng, lambda) {
			rec := g.delayRecord(rng, d, line, stations, n+1)
			if !yield(rec) {
				return false
			}
		}
	}
	return true
}

func (g *Generator) delayRecord(rng *rand.Rand, d domain.DateDim, line domain.SubwayLine, stations []domain.Station, seq int) *domain.Delay {
	hour := weightedIndex(rng, delayHourWeights)
	minute := rng.IntN(60)

	duration := min(int(rng.ExpFloat64()*15)+2, maxDelayMinutes)
	category, severity := domain.ClassifyDelay(duration)

	perMinute := uniformInt(rng, 20, 150)
	if registry.IsPeakHour(hour) {
		perMinute = uniformInt(rng, 100, 500)
	}

	rec := &domain.Delay{
		ExternalID:              domain.Ptr(fmt.Sprintf("SYN-%d-%s-%d", d.DateKey, line.LineName, seq)),
		DateKey:                 d.DateKey,
		TimeKey:                 registry.TimeKeyFor(hour, minute),
		LineID:                  line.LineID,
		DelayDurationMinutes:    duration,
		DelayCategory:           category,
		DelayReason:             DelayReasons[rng.IntN(len(DelayReasons))],
		SeverityLevel:           severity,
		PassengerImpactEstimate: duration * perMinute,
		ResolutionTimeMinutes:   duration + uniformInt(rng, 5, 30),
		DataSource:              domain.DataSourceSynthetic,
	}
	if len(stations) > 0 {
		rec.StationID = domain.Ptr(stations[rng.IntN(len(stations))].StationID)
	}
	return rec
}
