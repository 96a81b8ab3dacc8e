package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/repository"
)

func newSummaryCmd(a *app) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the analytics report over the loaded warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if top < 1 {
				return &domain.InvalidParameterError{Name: "top", Value: top, Reason: "must be positive"}
			}
			gw, closeDB, err := a.openGateway(a.cfg.Database)
			if err != nil {
				return err
			}
			defer closeDB()

			s, err := repository.NewAnalyticsRepository(gw).Summary(cmd.Context(), top)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return printJSON(a.stdout, s)
			}
			return a.printSummary(s)
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "Number of stations and delay causes to list")

	return cmd
}

func (a *app) printSummary(s *repository.Summary) error {
	t := s.Totals
	_, _ = fmt.Fprintf(a.stdout, "ridership rows: %d  total traffic: %d  peak share: %.1f%%\n",
		t.RidershipRows, t.TotalTraffic, s.PeakShare*100)
	_, _ = fmt.Fprintf(a.stdout, "delay incidents: %d  avg delay: %.1f min  avg on-time: %.1f%%\n\n",
		t.DelayIncidents, t.AvgDelayMinutes, t.AvgOnTimePercent)

	sections := []struct {
		title   string
		columns []string
		rows    [][]string
	}{
		{"Busiest stations", []string{"station", "borough", "traffic"}, stationRows(s.BusiestStations)},
		{"Boroughs", []string{"borough", "stations", "traffic"}, boroughRows(s.Boroughs)},
		{"Line performance", []string{"line", "on_time_%", "wait", "days"}, lineRows(s.Lines)},
		{"Delay causes", []string{"reason", "incidents", "avg_min"}, delayRows(s.DelayCauses)},
		{"Delays by line", []string{"line", "incidents", "avg_min"}, delayRows(s.DelayLines)},
		{"Weekday vs weekend", []string{"day_type", "avg_daily_traffic"}, dayTypeRows(s.DayTypes)},
	}
	for _, sec := range sections {
		if len(sec.rows) == 0 {
			continue
		}
		_, _ = fmt.Fprintln(a.stdout, sec.title)
		if err := printTable(a.stdout, sec.columns, sec.rows); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.stdout)
	}
	return nil
}

func stationRows(in []repository.StationTraffic) [][]string {
	rows := make([][]string, 0, len(in))
	for _, s := range in {
		rows = append(rows, []string{s.StationName, s.Borough, strconv.FormatInt(s.TotalTraffic, 10)})
	}
	return rows
}

func boroughRows(in []repository.BoroughTraffic) [][]string {
	rows := make([][]string, 0, len(in))
	for _, b := range in {
		rows = append(rows, []string{b.Borough, strconv.FormatInt(b.Stations, 10), strconv.FormatInt(b.TotalTraffic, 10)})
	}
	return rows
}

func lineRows(in []repository.LinePerformance) [][]string {
	rows := make([][]string, 0, len(in))
	for _, l := range in {
		rows = append(rows, []string{
			l.LineName,
			strconv.FormatFloat(l.AvgOnTimePercent, 'f', 1, 64),
			strconv.FormatFloat(l.AvgWait, 'f', 1, 64),
			strconv.FormatInt(l.Days, 10),
		})
	}
	return rows
}

func delayRows(in []repository.DelayBreakdown) [][]string {
	rows := make([][]string, 0, len(in))
	for _, d := range in {
		rows = append(rows, []string{d.Label, strconv.FormatInt(d.Incidents, 10), strconv.FormatFloat(d.AvgMinutes, 'f', 1, 64)})
	}
	return rows
}

func dayTypeRows(in []repository.DayTypeAverage) [][]string {
	rows := make([][]string, 0, len(in))
	for _, d := range in {
		label := "weekday"
		if d.IsWeekend {
			label = "weekend"
		}
		rows = append(rows, []string{label, strconv.FormatFloat(d.AvgDailyTraffic, 'f', 0, 64)})
	}
	return rows
}
