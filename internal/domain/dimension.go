package domain

import "time"

// DateLayout is the calendar date format used on the command line and in exports.
const DateLayout = "2006-01-02"

// DimensionKind names one of the four warehouse dimensions.
type DimensionKind string

const (
	DimensionLine    DimensionKind = "line"
	DimensionStation DimensionKind = "station"
	DimensionDate    DimensionKind = "date"
	DimensionTime    DimensionKind = "time"
)

// SubwayLine is a row of dim_subway_lines.
type SubwayLine struct {
	LineID    int    `gorm:"primaryKey;autoIncrement:false" json:"line_id"`
	LineName  string `gorm:"type:varchar(8);not null;uniqueIndex" json:"line_name"`
	LineColor string `gorm:"type:varchar(7)" json:"line_color"`
	LineGroup string `gorm:"type:varchar(64)" json:"line_group"`
	Division  string `gorm:"type:varchar(8)" json:"division"`

	// Facts reference lines through fk_dim_subway_lines_* constraints.
	Ridership   []Ridership   `gorm:"foreignKey:LineID;references:LineID" json:"-"`
	Delays      []Delay       `gorm:"foreignKey:LineID;references:LineID" json:"-"`
	Performance []Performance `gorm:"foreignKey:LineID;references:LineID" json:"-"`
}

// TableName returns the database table name for SubwayLine.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (SubwayLine) TableName() string {
	return "dim_subway_lines"
}

// Station is a row of dim_stations. StationID is derived from the name and
// is stable across runs.
type Station struct {
	StationID        string  `gorm:"type:varchar(8);primaryKey" json:"station_id"`
	StationName      string  `gorm:"type:varchar(128);not null;uniqueIndex" json:"station_name"`
	StationComplexID string  `gorm:"type:varchar(16)" json:"station_complex_id"`
	GTFSStopID       string  `gorm:"column:gtfs_stop_id;type:varchar(16)" json:"gtfs_stop_id"`
	Borough          string  `gorm:"type:varchar(32);index" json:"borough"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	StructureType    string  `gorm:"type:varchar(16)" json:"structure_type"`
	ADAAccessible    bool    `gorm:"column:ada_accessible" json:"ada_accessible"`
	LinesServed      string  `gorm:"type:varchar(64)" json:"lines_served"`
	Division         string  `gorm:"type:varchar(8)" json:"division"`

	Ridership []Ridership `gorm:"foreignKey:StationID;references:StationID" json:"-"`
	Delays    []Delay     `gorm:"foreignKey:StationID;references:StationID" json:"-"`
}

// TableName returns the database table name for Station.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Station) TableName() string {
	return "dim_stations"
}

// DateDim is a row of dim_date keyed by YYYYMMDD.
type DateDim struct {
	DateKey    int       `gorm:"primaryKey;autoIncrement:false" json:"date_key"`
	FullDate   time.Time `gorm:"type:date;not null;uniqueIndex" json:"full_date"`
	Year       int       `json:"year"`
	Quarter    int       `json:"quarter"`
	Month      int       `json:"month"`
	MonthName  string    `gorm:"type:varchar(10)" json:"month_name"`
	Day        int       `json:"day"`
	DayOfWeek  int       `json:"day_of_week"`
	DayName    string    `gorm:"type:varchar(10)" json:"day_name"`
	WeekOfYear int       `json:"week_of_year"`
	IsWeekend  bool      `json:"is_weekend"`
	IsHoliday  bool      `json:"is_holiday"`

	Ridership   []Ridership   `gorm:"foreignKey:DateKey;references:DateKey" json:"-"`
	Delays      []Delay       `gorm:"foreignKey:DateKey;references:DateKey" json:"-"`
	Performance []Performance `gorm:"foreignKey:DateKey;references:DateKey" json:"-"`
}

// TableName returns the database table name for DateDim.
func (DateDim) TableName() string {
	return "dim_date"
}

// TimeDim is a row of dim_time keyed by HHMM.
type TimeDim struct {
	TimeKey    int    `gorm:"primaryKey;autoIncrement:false" json:"time_key"`
	Hour       int    `gorm:"not null" json:"hour"`
	Minute     int    `gorm:"not null" json:"minute"`
	TimePeriod string `gorm:"type:varchar(16);not null" json:"time_period"`
	IsPeakHour bool   `json:"is_peak_hour"`

	Ridership []Ridership `gorm:"foreignKey:TimeKey;references:TimeKey" json:"-"`
	Delays    []Delay     `gorm:"foreignKey:TimeKey;references:TimeKey" json:"-"`
}

// TableName returns the database table name for TimeDim.
func (TimeDim) TableName() string {
	return "dim_time"
}
