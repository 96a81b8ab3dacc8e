package domain

import (
	"math"
	"time"
)

// FactKind discriminates the three fact tables.
type FactKind string

const (
	FactRidership   FactKind = "ridership"
	FactDelay       FactKind = "delay"
	FactPerformance FactKind = "performance"
)

// FactKinds lists fact kinds in load order.
var FactKinds = []FactKind{FactRidership, FactDelay, FactPerformance}

// Natural uniqueness keys used for insert-do-nothing loads.
var (
	RidershipNaturalKey   = []string{"date_key", "time_key", "station_id", "line_id"}
	DelayNaturalKey       = []string{"external_id"}
	PerformanceNaturalKey = []string{"date_key", "line_id"}
)

// FactRecord is implemented by *Ridership, *Delay and *Performance.
type FactRecord interface {
	Kind() FactKind
}

// Ridership is a row of fact_ridership.
type Ridership struct {
	ID           int64      `gorm:"primaryKey" json:"-"`
	DateKey      int        `gorm:"not null;uniqueIndex:idx_ridership_natural,priority:1" json:"date_key"`
	TimeKey      int        `gorm:"not null;uniqueIndex:idx_ridership_natural,priority:2" json:"time_key"`
	StationID    string     `gorm:"type:varchar(8);not null;uniqueIndex:idx_ridership_natural,priority:3;index" json:"station_id"`
	LineID       int        `gorm:"not null;uniqueIndex:idx_ridership_natural,priority:4" json:"line_id"`
	Entries      int64      `gorm:"not null" json:"entries"`
	Exits        int64      `gorm:"not null" json:"exits"`
	TotalTraffic int64      `gorm:"not null" json:"total_traffic"`
	DataSource   DataSource `gorm:"type:varchar(16);not null" json:"data_source"`
	CreatedAt    time.Time  `json:"-"`
}

// TableName returns the database table name for Ridership.
func (Ridership) TableName() string { return "fact_ridership" }

// Kind implements FactRecord.
func (*Ridership) Kind() FactKind { return FactRidership }

// Delay is a row of fact_delays. Delays are an append-only incident log;
// ExternalID, when present, is the only deduplication key.
type Delay struct {
	ID                      int64      `gorm:"primaryKey" json:"-"`
	ExternalID              *string    `gorm:"type:varchar(64);uniqueIndex" json:"external_id"`
	DateKey                 int        `gorm:"not null;index" json:"date_key"`
	TimeKey                 int        `gorm:"not null" json:"time_key"`
	LineID                  int        `gorm:"not null;index" json:"line_id"`
	StationID               *string    `gorm:"type:varchar(8)" json:"station_id"`
	DelayDurationMinutes    int        `gorm:"not null" json:"delay_duration_minutes"`
	DelayCategory           string     `gorm:"type:varchar(16);not null" json:"delay_category"`
	DelayReason             string     `gorm:"type:varchar(64)" json:"delay_reason"`
	SeverityLevel           string     `gorm:"type:varchar(8);not null" json:"severity_level"`
	PassengerImpactEstimate int        `json:"passenger_impact_estimate"`
	ResolutionTimeMinutes   int        `json:"resolution_time_minutes"`
	DataSource              DataSource `gorm:"type:varchar(16);not null" json:"data_source"`
	CreatedAt               time.Time  `json:"-"`
}

// TableName returns the database table name for Delay.
func (Delay) TableName() string { return "fact_delays" }

// Kind implements FactRecord.
func (*Delay) Kind() FactKind { return FactDelay }

// Performance is a row of fact_performance, one per (date, line).
type Performance struct {
	ID                             int64      `gorm:"primaryKey" json:"-"`
	DateKey                        int        `gorm:"not null;uniqueIndex:idx_performance_natural,priority:1" json:"date_key"`
	LineID                         int        `gorm:"not null;uniqueIndex:idx_performance_natural,priority:2" json:"line_id"`
	ScheduledTrips                 int        `gorm:"not null" json:"scheduled_trips"`
	ActualTrips                    int        `gorm:"not null" json:"actual_trips"`
	OnTimeTrips                    int        `gorm:"not null" json:"on_time_trips"`
	LateTrips                      int        `json:"late_trips"`
	CanceledTrips                  int        `json:"canceled_trips"`
	OnTimePercentage               float64    `json:"on_time_percentage"`
	MeanDistanceBetweenFailures    float64    `json:"mean_distance_between_failures"`
	WaitAssessment                 float64    `json:"wait_assessment"`
	CustomerJourneyTimePerformance float64    `json:"customer_journey_time_performance"`
	DataSource                     DataSource `gorm:"type:varchar(16);not null" json:"data_source"`
	CreatedAt                      time.Time  `json:"-"`
}

// TableName returns the database table name for Performance.
func (Performance) TableName() string { return "fact_performance" }

// Kind implements FactRecord.
func (*Performance) Kind() FactKind { return FactPerformance }

// OnTimePercentageOf derives the on-time percentage, rounded to two decimals.
// It is 0 when nothing was scheduled.
func OnTimePercentageOf(onTime, scheduled int) float64 {
	if scheduled <= 0 {
		return 0
	}
	return math.Round(float64(onTime)/float64(scheduled)*100*100) / 100
}
