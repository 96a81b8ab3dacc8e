package generator

import (
	"math"
	"math/rand/v2"

	"github.com/timmy/transitdw/internal/domain"
)

// performance emits one row per line for the day. Trip counts are derived
// from a single on-time rate so that on_time <= actual <= scheduled holds.
func (g *Generator) performance(rng *rand.Rand, d domain.DateDim, yield func(domain.FactRecord) bool) bool {
	pr := g.profile
	for _, line := range g.reg.Lines() {
		scheduled := pr.weekdayTrips[line.LineID]
		if d.IsWeekend {
			scheduled = pr.weekendTrips[line.LineID]
		}

		otp := pr.baseOTP[line.LineID] + rng.NormFloat64()*0.03
		if d.IsWeekend {
			otp += 0.02
		}
		if isWinter(d) {
			otp -= 0.02
		}
		otp = clamp(otp, 0.5, 1.0)

		onTime := int(float64(scheduled) * otp)
		late := int(float64(scheduled) * (1 - otp) * 0.7)
		canceled := scheduled - onTime - late
		actual := scheduled - canceled

		rec := &domain.Performance{
			DateKey:                        d.DateKey,
			LineID:                         line.LineID,
			ScheduledTrips:                 scheduled,
			ActualTrips:                    actual,
			OnTimeTrips:                    onTime,
			LateTrips:                      late,
			CanceledTrips:                  canceled,
			OnTimePercentage:               domain.OnTimePercentageOf(onTime, scheduled),
			MeanDistanceBetweenFailures:    math.Round(uniform(rng, 50000, 150000)),
			WaitAssessment:                 round2(uniform(rng, 70, 95)),
			CustomerJourneyTimePerformance: round2(uniform(rng, 75, 95)),
			DataSource:                     domain.DataSourceSynthetic,
		}
		if !yield(rec) {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
