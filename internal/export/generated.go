package export

import (
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/registry"
)

// Column orders of the generated CSVs.
var (
	lineColumns        = []string{"line_id", "line_name", "line_color", "line_group", "division"}
	stationColumns     = []string{"station_id", "station_name", "borough", "latitude", "longitude", "structure_type", "ada_accessible", "lines_served", "division"}
	ridershipColumns   = []string{"date", "hour", "minute", "station_id", "station_name", "line_name", "entries", "exits", "total_traffic", "data_source"}
	delayColumns       = []string{"external_id", "date", "hour", "minute", "line_name", "station_id", "delay_duration_minutes", "delay_category", "delay_reason", "severity_level", "passenger_impact_estimate", "resolution_time_minutes", "data_source"}
	performanceColumns = []string{"date", "line_name", "scheduled_trips", "actual_trips", "on_time_trips", "late_trips", "canceled_trips", "on_time_percentage", "mean_distance_between_failures", "wait_assessment", "customer_journey_time_performance", "data_source"}
)

// csvFile is an open CSV being written row by row.
type csvFile struct {
	name string
	path string
	f    *os.File
	w    *csv.Writer
	rows int
}

func createCSV(dir, name string, header []string) (*csvFile, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c := &csvFile{name: name, path: path, f: f, w: csv.NewWriter(f)}
	if err := c.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *csvFile) write(row []string) error {
	c.rows++
	return c.w.Write(row)
}

func (c *csvFile) close() (File, error) {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return File{}, err
	}
	info, err := c.f.Stat()
	if err != nil {
		c.f.Close()
		return File{}, err
	}
	if err := c.f.Close(); err != nil {
		return File{}, err
	}
	return File{Name: c.name, Path: c.path, Rows: c.rows, Bytes: info.Size()}, nil
}

// WriteGenerated writes generator output to dir without a database: the
// line and station dimensions plus one CSV per fact type. Output for the
// same registry and stream is byte-identical.
// Parameters:
//   - dir: output directory; created only after the inputs are validated.
//   - reg: registry the records' keys resolve against.
//   - records: generated facts.
// Returns:
//   - *Manifest: written files.
//   - error: InvalidParameterError for missing inputs, or a write error.
func WriteGenerated(dir string, reg *registry.Registry, records iter.Seq[domain.FactRecord]) (*Manifest, error) {
	switch {
	case dir == "":
		return nil, &domain.InvalidParameterError{Name: "out", Value: dir, Reason: "output directory is required"}
	case reg == nil:
		return nil, &domain.InvalidParameterError{Name: "registry", Value: nil, Reason: "registry is required"}
	case records == nil:
		return nil, &domain.InvalidParameterError{Name: "records", Value: nil, Reason: "record stream is required"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	m := &Manifest{Dir: dir}
	lines, err := writeRows(dir, "subway_lines.csv", lineColumns, slices.Values(reg.Lines()), lineRow)
	if err != nil {
		return nil, err
	}
	stations, err := writeRows(dir, "stations.csv", stationColumns, slices.Values(reg.Stations()), stationRow)
	if err != nil {
		return nil, err
	}
	m.Files = append(m.Files, lines, stations)

	facts, err := writeFacts(dir, reg, records)
	if err != nil {
		return nil, err
	}
	m.Files = append(m.Files, facts...)
	return m, nil
}

func writeRows[T any](dir, name string, header []string, rows iter.Seq[T], toRow func(T) []string) (File, error) {
	c, err := createCSV(dir, name, header)
	if err != nil {
		return File{}, err
	}
	for v := range rows {
		if err := c.write(toRow(v)); err != nil {
			c.f.Close()
			return File{}, err
		}
	}
	return c.close()
}

// writeFacts streams records once, routing each kind to its own file.
func writeFacts(dir string, reg *registry.Registry, records iter.Seq[domain.FactRecord]) ([]File, error) {
	specs := []struct {
		kind   domain.FactKind
		name   string
		header []string
	}{
		{domain.FactRidership, "ridership.csv", ridershipColumns},
		{domain.FactDelay, "delays.csv", delayColumns},
		{domain.FactPerformance, "performance.csv", performanceColumns},
	}
	out := make(map[domain.FactKind]*csvFile, len(specs))
	closeAll := func() {
		for _, c := range out {
			c.f.Close()
		}
	}
	for _, s := range specs {
		c, err := createCSV(dir, s.name, s.header)
		if err != nil {
			closeAll()
			return nil, err
		}
		out[s.kind] = c
	}

	names := newNameLookup(reg)
	for rec := range records {
		var row []string
		switch f := rec.(type) {
		case *domain.Ridership:
			row = names.ridershipRow(f)
		case *domain.Delay:
			row = names.delayRow(f)
		case *domain.Performance:
			row = names.performanceRow(f)
		default:
			continue
		}
		if err := out[rec.Kind()].write(row); err != nil {
			closeAll()
			return nil, err
		}
	}

	files := make([]File, 0, len(specs))
	for _, s := range specs {
		f, err := out[s.kind].close()
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func lineRow(l domain.SubwayLine) []string {
	return []string{strconv.Itoa(l.LineID), l.LineName, l.LineColor, l.LineGroup, l.Division}
}

func stationRow(s domain.Station) []string {
	return []string{
		s.StationID, s.StationName, s.Borough,
		formatFloat(s.Latitude), formatFloat(s.Longitude),
		s.StructureType, strconv.FormatBool(s.ADAAccessible), s.LinesServed, s.Division,
	}
}

// nameLookup turns registry keys back into readable names.
type nameLookup struct {
	reg *registry.Registry
}

func newNameLookup(reg *registry.Registry) nameLookup { return nameLookup{reg: reg} }

func (n nameLookup) date(key int) string {
	if d, ok := n.reg.Date(key); ok {
		return d.FullDate.Format(domain.DateLayout)
	}
	return strconv.Itoa(key)
}

func (n nameLookup) line(id int) string {
	if l, ok := n.reg.LineByID(id); ok {
		return l.LineName
	}
	return strconv.Itoa(id)
}

func (n nameLookup) station(id string) string {
	if s, ok := n.reg.StationByID(id); ok {
		return s.StationName
	}
	return ""
}

func (n nameLookup) ridershipRow(r *domain.Ridership) []string {
	return []string{
		n.date(r.DateKey), strconv.Itoa(r.TimeKey / 100), strconv.Itoa(r.TimeKey % 100),
		r.StationID, n.station(r.StationID), n.line(r.LineID),
		strconv.FormatInt(r.Entries, 10), strconv.FormatInt(r.Exits, 10), strconv.FormatInt(r.TotalTraffic, 10),
		string(r.DataSource),
	}
}

func (n nameLookup) delayRow(d *domain.Delay) []string {
	var externalID, stationID string
	if d.ExternalID != nil {
		externalID = *d.ExternalID
	}
	if d.StationID != nil {
		stationID = *d.StationID
	}
	return []string{
		externalID, n.date(d.DateKey), strconv.Itoa(d.TimeKey / 100), strconv.Itoa(d.TimeKey % 100),
		n.line(d.LineID), stationID,
		strconv.Itoa(d.DelayDurationMinutes), d.DelayCategory, d.DelayReason, d.SeverityLevel,
		strconv.Itoa(d.PassengerImpactEstimate), strconv.Itoa(d.ResolutionTimeMinutes),
		string(d.DataSource),
	}
}

func (n nameLookup) performanceRow(p *domain.Performance) []string {
	return []string{
		n.date(p.DateKey), n.line(p.LineID),
		strconv.Itoa(p.ScheduledTrips), strconv.Itoa(p.ActualTrips), strconv.Itoa(p.OnTimeTrips),
		strconv.Itoa(p.LateTrips), strconv.Itoa(p.CanceledTrips),
		formatFloat(p.OnTimePercentage), formatFloat(p.MeanDistanceBetweenFailures),
		formatFloat(p.WaitAssessment), formatFloat(p.CustomerJourneyTimePerformance),
		string(p.DataSource),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
