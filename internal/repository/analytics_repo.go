package repository

import (
	"context"
)

// StationTraffic is total traffic at one station.
type StationTraffic struct {
	StationName  string `json:"station_name"`
	Borough      string `json:"borough"`
	TotalTraffic int64  `json:"total_traffic"`
}

// BoroughTraffic is total traffic in one borough.
type BoroughTraffic struct {
	Borough      string `json:"borough"`
	Stations     int64  `json:"stations"`
	TotalTraffic int64  `json:"total_traffic"`
}

// LinePerformance is the average on-time performance of a line.
type LinePerformance struct {
	LineName         string  `json:"line_name"`
	AvgOnTimePercent float64 `json:"avg_on_time_percentage"`
	AvgWait          float64 `json:"avg_wait_assessment"`
	Days             int64   `json:"days"`
}

// DelayBreakdown counts delays for one reason or line.
type DelayBreakdown struct {
	Label      string  `json:"label"`
	Incidents  int64   `json:"incidents"`
	AvgMinutes float64 `json:"avg_minutes"`
}

// DayTypeAverage is the average daily traffic on weekdays or weekends.
type DayTypeAverage struct {
	IsWeekend       bool    `json:"is_weekend"`
	AvgDailyTraffic float64 `json:"avg_daily_traffic"`
}

// Totals are warehouse-wide aggregates.
type Totals struct {
	RidershipRows    int64   `json:"ridership_rows"`
	TotalTraffic     int64   `json:"total_traffic"`
	PeakTraffic      int64   `json:"peak_traffic"`
	DelayIncidents   int64   `json:"delay_incidents"`
	AvgDelayMinutes  float64 `json:"avg_delay_minutes"`
	AvgOnTimePercent float64 `json:"avg_on_time_percentage"`
}

// PeakShare is the fraction of traffic during peak hours, 0 when empty.
func (t Totals) PeakShare() float64 {
	if t.TotalTraffic == 0 {
		return 0
	}
	return float64(t.PeakTraffic) / float64(t.TotalTraffic)
}

// Summary is the analytics report printed by the CLI and served by the API.
type Summary struct {
	Totals          Totals            `json:"totals"`
	PeakShare       float64           `json:"peak_share"`
	BusiestStations []StationTraffic  `json:"busiest_stations"`
	Boroughs        []BoroughTraffic  `json:"boroughs"`
	Lines           []LinePerformance `json:"lines"`
	DelayCauses     []DelayBreakdown  `json:"delay_causes"`
	DelayLines      []DelayBreakdown  `json:"delay_lines"`
	DayTypes        []DayTypeAverage  `json:"day_types"`
}

// AnalyticsRepository runs the read-side reports over the star schema.
type AnalyticsRepository struct {
	gw *Gateway
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(gw *Gateway) *AnalyticsRepository {
	return &AnalyticsRepository{gw: gw}
}

func (r *AnalyticsRepository) scan(ctx context.Context, op string, dest any, query string, args ...any) error {
	return r.gw.do(ctx, op, func(ctx context.Context) error {
		return r.gw.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
	})
}

// BusiestStations returns the top stations by total traffic.
func (r *AnalyticsRepository) BusiestStations(ctx context.Context, limit int) ([]StationTraffic, error) {
	var out []StationTraffic
	err := r.scan(ctx, "busiest stations", &out, `
		SELECT s.station_name, s.borough, SUM(f.total_traffic) AS total_traffic
		FROM fact_ridership f
		JOIN dim_stations s ON s.station_id = f.station_id
		GROUP BY s.station_name, s.borough
		ORDER BY total_traffic DESC, s.station_name
		LIMIT ?`, limit)
	return out, err
}

// RidershipByBorough returns traffic per borough.
func (r *AnalyticsRepository) RidershipByBorough(ctx context.Context) ([]BoroughTraffic, error) {
	var out []BoroughTraffic
	err := r.scan(ctx, "ridership by borough", &out, `
		SELECT s.borough, COUNT(DISTINCT s.station_id) AS stations, SUM(f.total_traffic) AS total_traffic
		FROM fact_ridership f
		JOIN dim_stations s ON s.station_id = f.station_id
		GROUP BY s.borough
		ORDER BY total_traffic DESC`)
	return out, err
}

// OnTimeByLine returns average on-time performance per line, worst first.
func (r *AnalyticsRepository) OnTimeByLine(ctx context.Context) ([]LinePerformance, error) {
	var out []LinePerformance
	err := r.scan(ctx, "on-time by line", &out, `
		SELECT l.line_name,
		       AVG(p.on_time_percentage) AS avg_on_time_percent,
		       AVG(p.wait_assessment) AS avg_wait,
		       COUNT(*) AS days
		FROM fact_performance p
		JOIN dim_subway_lines l ON l.line_id = p.line_id
		GROUP BY l.line_name
		ORDER BY avg_on_time_percent, l.line_name`)
	return out, err
}

// DelaysByCause returns incident counts per delay reason.
func (r *AnalyticsRepository) DelaysByCause(ctx context.Context, limit int) ([]DelayBreakdown, error) {
	var out []DelayBreakdown
	err := r.scan(ctx, "delays by cause", &out, `
		SELECT delay_reason AS label, COUNT(*) AS incidents, AVG(delay_duration_minutes) AS avg_minutes
		FROM fact_delays
		GROUP BY delay_reason
		ORDER BY incidents DESC, label
		LIMIT ?`, limit)
	return out, err
}

// DelaysByLine returns incident counts per line.
func (r *AnalyticsRepository) DelaysByLine(ctx context.Context) ([]DelayBreakdown, error) {
	var out []DelayBreakdown
	err := r.scan(ctx, "delays by line", &out, `
		SELECT l.line_name AS label, COUNT(*) AS incidents, AVG(f.delay_duration_minutes) AS avg_minutes
		FROM fact_delays f
		JOIN dim_subway_lines l ON l.line_id = f.line_id
		GROUP BY l.line_name
		ORDER BY incidents DESC, label`)
	return out, err
}

// WeekdayWeekend returns the average daily traffic by day type.
func (r *AnalyticsRepository) WeekdayWeekend(ctx context.Context) ([]DayTypeAverage, error) {
	var out []DayTypeAverage
	err := r.scan(ctx, "weekday weekend", &out, `
		SELECT d.is_weekend, AVG(x.daily) AS avg_daily_traffic
		FROM (
			SELECT date_key, SUM(total_traffic) AS daily
			FROM fact_ridership
			GROUP BY date_key
		) x
		JOIN dim_date d ON d.date_key = x.date_key
		GROUP BY d.is_weekend
		ORDER BY d.is_weekend`)
	return out, err
}

// Totals returns warehouse-wide aggregates.
func (r *AnalyticsRepository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.scan(ctx, "ridership totals", &t, `
		SELECT COUNT(*) AS ridership_rows,
		       COALESCE(SUM(f.total_traffic), 0) AS total_traffic,
		       COALESCE(SUM(CASE WHEN tm.is_peak_hour THEN f.total_traffic ELSE 0 END), 0) AS peak_traffic
		FROM fact_ridership f
		JOIN dim_time tm ON tm.time_key = f.time_key`)
	if err != nil {
		return t, err
	}

	var delays struct {
		Incidents  int64
		AvgMinutes float64
	}
	if err := r.scan(ctx, "delay totals", &delays, `
		SELECT COUNT(*) AS incidents, COALESCE(AVG(delay_duration_minutes), 0) AS avg_minutes
		FROM fact_delays`); err != nil {
		return t, err
	}
	t.DelayIncidents = delays.Incidents
	t.AvgDelayMinutes = delays.AvgMinutes

	var otp struct{ Avg float64 }
	if err := r.scan(ctx, "performance totals", &otp, `
		SELECT COALESCE(AVG(on_time_percentage), 0) AS avg FROM fact_performance`); err != nil {
		return t, err
	}
	t.AvgOnTimePercent = otp.Avg
	return t, nil
}

// Summary assembles the full analytics report.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - top: row limit for ranked lists.
// Returns:
//   - *Summary: the report.
//   - error: first failing query.
func (r *AnalyticsRepository) Summary(ctx context.Context, top int) (*Summary, error) {
	if top <= 0 {
		top = 10
	}
	var (
		s   Summary
		err error
	)
	if s.Totals, err = r.Totals(ctx); err != nil {
		return nil, err
	}
	s.PeakShare = s.Totals.PeakShare()
	if s.BusiestStations, err = r.BusiestStations(ctx, top); err != nil {
		return nil, err
	}
	if s.Boroughs, err = r.RidershipByBorough(ctx); err != nil {
		return nil, err
	}
	if s.Lines, err = r.OnTimeByLine(ctx); err != nil {
		return nil, err
	}
	if s.DelayCauses, err = r.DelaysByCause(ctx, top); err != nil {
		return nil, err
	}
	if s.DelayLines, err = r.DelaysByLine(ctx); err != nil {
		return nil, err
	}
	if s.DayTypes, err = r.WeekdayWeekend(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}
