// Package registry holds the four warehouse dimensions in memory. A Registry
// is built once per run and shared read-only by the generator and the cleaner.
package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/transitdw/internal/domain"
)

// DefaultStations is the number of stations in a default registry.
const DefaultStations = 472

// Options configures New.
type Options struct {
	Start    time.Time // first calendar day, inclusive
	End      time.Time // last calendar day, inclusive
	Stations int       // total stations including the major ones; 0 means DefaultStations
	Seed     uint64    // seed for the generated extra stations
}

// Key is a resolved dimension key. ID is set for lines, dates and times;
// Code is set for stations.
type Key struct {
	Kind domain.DimensionKind
	ID   int
	Code string
	Name string
}

// String renders the key the way it is stored.
func (k Key) String() string {
	if k.Code != "" {
		return k.Code
	}
	return strconv.Itoa(k.ID)
}

// Registry is the in-memory source of truth for valid dimension keys.
type Registry struct {
	start time.Time
	end   time.Time

	lines    []domain.SubwayLine
	stations []domain.Station
	dates    []domain.DateDim
	times    []domain.TimeDim

	lineByName    map[string]int // normalized name -> index
	lineByID      map[int]int
	stationByName map[string]int
	stationByID   map[string]int
	dateByKey     map[int]int

	stationsByLine map[int][]int // line id -> station indexes
	linesByStation map[string][]int
	major          map[string]bool
}

// New builds a registry from the built-in line and station catalog and
// enumerates dates over [opts.Start, opts.End] and all 1440 minutes of a day.
// Parameters:
//   - opts: date range, station count and seed.
// Returns:
//   - *Registry: the populated registry.
//   - error: InvalidRangeError if Start is after End.
func New(opts Options) (*Registry, error) {
	start := truncateDay(opts.Start)
	end := truncateDay(opts.End)
	if start.IsZero() || end.IsZero() || start.After(end) {
		return nil, &domain.InvalidRangeError{Start: start, End: end}
	}
	n := opts.Stations
	if n <= 0 {
		n = DefaultStations
	}

	r := &Registry{
		start:          start,
		end:            end,
		lineByName:     make(map[string]int),
		lineByID:       make(map[int]int),
		stationByName:  make(map[string]int),
		stationByID:    make(map[string]int),
		dateByKey:      make(map[int]int),
		stationsByLine: make(map[int][]int),
		linesByStation: make(map[string][]int),
		major:          make(map[string]bool),
	}
	r.buildLines()
	r.buildStations(n, opts.Seed)
	r.buildDates()
	r.buildTimes()
	return r, nil
}

func (r *Registry) buildLines() {
	r.lines = make([]domain.SubwayLine, 0, len(catalogLines))
	for i, spec := range catalogLines {
		line := domain.SubwayLine{
			LineID:    i + 1,
			LineName:  spec.Name,
			LineColor: spec.Color,
			LineGroup: spec.Group,
			Division:  spec.Division,
		}
		r.lineByName[normalizeLine(spec.Name)] = len(r.lines)
		r.lineByID[line.LineID] = len(r.lines)
		r.lines = append(r.lines, line)
	}
}

// addStation indexes a station. It returns false when the name or derived id
// is already taken.
func (r *Registry) addStation(st domain.Station, lineNames []string) bool {
	key := normalizeStation(st.StationName)
	if _, ok := r.stationByName[key]; ok {
		return false
	}
	if _, ok := r.stationByID[st.StationID]; ok {
		return false
	}
	idx := len(r.stations)
	ids := make([]int, 0, len(lineNames))
	for _, name := range lineNames {
		li, ok := r.lineByName[normalizeLine(name)]
		if !ok {
			continue
		}
		id := r.lines[li].LineID
		ids = append(ids, id)
		r.stationsByLine[id] = append(r.stationsByLine[id], idx)
	}
	st.LinesServed = strings.Join(lineNames, ",")
	if len(ids) > 0 {
		st.Division = r.lines[r.lineByID[ids[0]]].Division
	}
	r.stations = append(r.stations, st)
	r.stationByName[key] = idx
	r.stationByID[st.StationID] = idx
	r.linesByStation[st.StationID] = ids
	return true
}

func (r *Registry) buildDates() {
	for d := r.start; !d.After(r.end); d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		dim := domain.DateDim{
			DateKey:    DateKeyFor(d),
			FullDate:   d,
			Year:       d.Year(),
			Quarter:    (int(d.Month())-1)/3 + 1,
			Month:      int(d.Month()),
			MonthName:  d.Month().String(),
			Day:        d.Day(),
			DayOfWeek:  int(d.Weekday()),
			DayName:    d.Weekday().String(),
			WeekOfYear: week,
			IsWeekend:  d.Weekday() == time.Saturday || d.Weekday() == time.Sunday,
			IsHoliday:  isHoliday(d),
		}
		r.dateByKey[dim.DateKey] = len(r.dates)
		r.dates = append(r.dates, dim)
	}
}

func (r *Registry) buildTimes() {
	r.times = make([]domain.TimeDim, 0, 24*60)
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m++ {
			r.times = append(r.times, domain.TimeDim{
				TimeKey:    TimeKeyFor(h, m),
				Hour:       h,
				Minute:     m,
				TimePeriod: TimePeriodFor(h),
				IsPeakHour: IsPeakHour(h),
			})
		}
	}
}

// Resolve maps a natural key to its dimension key.
// Natural keys are a line name ("A", "sir"), a station name (any case and
// spacing), a date ("2024-01-15" or "20240115") or a time ("16:30", "1630",
// or an hour "16").
// Returns UnknownReferenceError if the key does not exist.
func (r *Registry) Resolve(kind domain.DimensionKind, natural string) (Key, error) {
	notFound := &domain.UnknownReferenceError{Kind: kind, Key: natural}
	switch kind {
	case domain.DimensionLine:
		line, ok := r.Line(natural)
		if !ok {
			return Key{}, notFound
		}
		return Key{Kind: kind, ID: line.LineID, Name: line.LineName}, nil
	case domain.DimensionStation:
		st, ok := r.Station(natural)
		if !ok {
			return Key{}, notFound
		}
		return Key{Kind: kind, Code: st.StationID, Name: st.StationName}, nil
	case domain.DimensionDate:
		d, err := parseDate(natural)
		if err != nil {
			return Key{}, notFound
		}
		dim, ok := r.Date(DateKeyFor(d))
		if !ok {
			return Key{}, notFound
		}
		return Key{Kind: kind, ID: dim.DateKey, Name: dim.FullDate.Format(domain.DateLayout)}, nil
	case domain.DimensionTime:
		h, m, err := parseClock(natural)
		if err != nil {
			return Key{}, notFound
		}
		return Key{Kind: kind, ID: TimeKeyFor(h, m), Name: fmt.Sprintf("%02d:%02d", h, m)}, nil
	default:
		return Key{}, notFound
	}
}

// All lists every key of a kind in a stable order.
func (r *Registry) All(kind domain.DimensionKind) []Key {
	var keys []Key
	switch kind {
	case domain.DimensionLine:
		keys = make([]Key, 0, len(r.lines))
		for _, l := range r.lines {
			keys = append(keys, Key{Kind: kind, ID: l.LineID, Name: l.LineName})
		}
	case domain.DimensionStation:
		keys = make([]Key, 0, len(r.stations))
		for _, s := range r.stations {
			keys = append(keys, Key{Kind: kind, Code: s.StationID, Name: s.StationName})
		}
	case domain.DimensionDate:
		keys = make([]Key, 0, len(r.dates))
		for _, d := range r.dates {
			keys = append(keys, Key{Kind: kind, ID: d.DateKey, Name: d.FullDate.Format(domain.DateLayout)})
		}
	case domain.DimensionTime:
		keys = make([]Key, 0, len(r.times))
		for _, t := range r.times {
			keys = append(keys, Key{Kind: kind, ID: t.TimeKey, Name: fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)})
		}
	}
	return keys
}

// Line looks a line up by name.
func (r *Registry) Line(name string) (domain.SubwayLine, bool) {
	i, ok := r.lineByName[normalizeLine(name)]
	if !ok {
		return domain.SubwayLine{}, false
	}
	return r.lines[i], true
}

// LineByID looks a line up by key.
func (r *Registry) LineByID(id int) (domain.SubwayLine, bool) {
	i, ok := r.lineByID[id]
	if !ok {
		return domain.SubwayLine{}, false
	}
	return r.lines[i], true
}

// Station looks a station up by name.
func (r *Registry) Station(name string) (domain.Station, bool) {
	i, ok := r.stationByName[normalizeStation(name)]
	if !ok {
		return domain.Station{}, false
	}
	return r.stations[i], true
}

// StationByID looks a station up by key.
func (r *Registry) StationByID(id string) (domain.Station, bool) {
	i, ok := r.stationByID[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return domain.Station{}, false
	}
	return r.stations[i], true
}

// Date looks a calendar day up by its YYYYMMDD key.
func (r *Registry) Date(key int) (domain.DateDim, bool) {
	i, ok := r.dateByKey[key]
	if !ok {
		return domain.DateDim{}, false
	}
	return r.dates[i], true
}

// HasTime reports whether key is a valid HHMM time key.
func (r *Registry) HasTime(key int) bool {
	if key < 0 {
		return false
	}
	return key/100 < 24 && key%100 < 60
}

// StationsForLine returns the stations served by a line, in registry order.
func (r *Registry) StationsForLine(lineID int) []domain.Station {
	idx := r.stationsByLine[lineID]
	out := make([]domain.Station, len(idx))
	for i, j := range idx {
		out[i] = r.stations[j]
	}
	return out
}

// LinesForStation returns the line ids serving a station.
func (r *Registry) LinesForStation(stationID string) []int {
	return r.linesByStation[stationID]
}

// IsMajor reports whether a station is one of the built-in major complexes.
func (r *Registry) IsMajor(stationID string) bool {
	return r.major[stationID]
}

// Covers reports whether every day of [start, end] has a date key.
func (r *Registry) Covers(start, end time.Time) bool {
	start, end = truncateDay(start), truncateDay(end)
	return !start.Before(r.start) && !end.After(r.end)
}

// Range returns the enumerated date range.
func (r *Registry) Range() (time.Time, time.Time) { return r.start, r.end }

// Lines returns all lines ordered by id. The slice must not be modified.
func (r *Registry) Lines() []domain.SubwayLine { return r.lines }

// Stations returns all stations, major ones first. The slice must not be modified.
func (r *Registry) Stations() []domain.Station { return r.stations }

// Dates returns all dates in calendar order. The slice must not be modified.
func (r *Registry) Dates() []domain.DateDim { return r.dates }

// Times returns all 1440 time keys in order. The slice must not be modified.
func (r *Registry) Times() []domain.TimeDim { return r.times }

// DateKeyFor encodes a calendar day as YYYYMMDD.
func DateKeyFor(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// TimeKeyFor encodes a clock time as HHMM, e.g. 16:30 -> 1630.
func TimeKeyFor(hour, minute int) int {
	return hour*100 + minute
}

// NormalizeStationName collapses whitespace in a station name.
func NormalizeStationName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeStation(s string) string {
	return strings.ToLower(NormalizeStationName(s))
}

func normalizeLine(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isHoliday(d time.Time) bool {
	switch {
	case d.Month() == time.December && (d.Day() == 24 || d.Day() == 25 || d.Day() == 31):
		return true
	case d.Month() == time.January && d.Day() == 1:
		return true
	case d.Month() == time.July && d.Day() == 4:
		return true
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == 8 {
		return time.Parse("20060102", s)
	}
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse(domain.DateLayout, s)
}

func parseClock(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	var h, m int
	var err error
	switch {
	case strings.Contains(s, ":"):
		parts := strings.SplitN(s, ":", 3)
		if h, err = strconv.Atoi(parts[0]); err != nil {
			return 0, 0, err
		}
		if m, err = strconv.Atoi(parts[1]); err != nil {
			return 0, 0, err
		}
	case len(s) >= 3:
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, err
		}
		h, m = v/100, v%100
	default:
		if h, err = strconv.Atoi(s); err != nil {
			return 0, 0, err
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("clock %q out of range", s)
	}
	return h, m, nil
}
