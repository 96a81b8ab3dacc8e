package domain

import "time"

// StagingRecord is a raw, not yet validated record. It carries denormalized
// names instead of dimension keys. Optional fields are pointers so that
// "absent" and "zero" stay distinguishable.
type StagingRecord struct {
	ID     int64      `gorm:"primaryKey" json:"id"`
	RunID  string     `gorm:"type:varchar(36);index" json:"run_id"`
	Kind   FactKind   `gorm:"type:varchar(16);not null" json:"kind"`
	Source DataSource `gorm:"type:varchar(16);not null" json:"source"`

	Date        *time.Time `gorm:"type:date" json:"date,omitempty"`
	Hour        *int       `json:"hour,omitempty"`
	Minute      *int       `json:"minute,omitempty"`
	StationName *string    `gorm:"type:varchar(128)" json:"station_name,omitempty"`
	LineName    *string    `gorm:"type:varchar(8)" json:"line_name,omitempty"`

	Entries *int64 `json:"entries,omitempty"`
	Exits   *int64 `json:"exits,omitempty"`

	ExternalID        *string `gorm:"type:varchar(64)" json:"external_id,omitempty"`
	DelayMinutes      *int    `json:"delay_minutes,omitempty"`
	DelayCategory     *string `gorm:"type:varchar(16)" json:"delay_category,omitempty"`
	DelayReason       *string `gorm:"type:varchar(64)" json:"delay_reason,omitempty"`
	SeverityLevel     *string `gorm:"type:varchar(8)" json:"severity_level,omitempty"`
	PassengerImpact   *int    `json:"passenger_impact,omitempty"`
	ResolutionMinutes *int    `json:"resolution_minutes,omitempty"`

	ScheduledTrips   *int     `json:"scheduled_trips,omitempty"`
	ActualTrips      *int     `json:"actual_trips,omitempty"`
	OnTimeTrips      *int     `json:"on_time_trips,omitempty"`
	LateTrips        *int     `json:"late_trips,omitempty"`
	CanceledTrips    *int     `json:"canceled_trips,omitempty"`
	OnTimePercentage *float64 `json:"on_time_percentage,omitempty"`
	MDBF             *float64 `gorm:"column:mdbf" json:"mdbf,omitempty"`
	WaitAssessment   *float64 `json:"wait_assessment,omitempty"`
	JourneyTimePerf  *float64 `gorm:"column:journey_time_performance" json:"journey_time_performance,omitempty"`

	Payload      Payload   `gorm:"type:text" json:"payload,omitempty"`
	Processed    bool      `gorm:"default:false" json:"processed"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for StagingRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (StagingRecord) TableName() string {
	return "staging_records"
}

// MarkFailed records a validation or load failure on the record.
func (r *StagingRecord) MarkFailed(err error) {
	r.Processed = false
	r.ErrorMessage = err.Error()
}

// MarkProcessed clears any previous failure.
func (r *StagingRecord) MarkProcessed() {
	r.Processed = true
	r.ErrorMessage = ""
}

// Ptr returns a pointer to v. Handy for building staging records.
func Ptr[T any](v T) *T {
	return &v
}
