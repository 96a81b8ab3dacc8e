package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/export"
)

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return &domain.ConfigurationError{
			Field:  "output",
			Reason: fmt.Sprintf("unsupported output format %q: use 'table' or 'json'", output),
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, columns []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	upper := make([]string, len(columns))
	for i, c := range columns {
		upper[i] = strings.ToUpper(c)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(upper, "\t"))
	for _, r := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func (a *app) printManifest(m *export.Manifest) error {
	if a.output == "json" {
		return printJSON(a.stdout, m)
	}
	rows := make([][]string, 0, len(m.Files))
	for _, f := range m.Files {
		rows = append(rows, []string{f.Name, strconv.Itoa(f.Rows), strconv.FormatInt(f.Bytes, 10)})
	}
	if err := printTable(a.stdout, []string{"file", "rows", "bytes"}, rows); err != nil {
		return err
	}
	for _, key := range m.Uploaded {
		_, _ = fmt.Fprintf(a.stdout, "uploaded %s\n", key)
	}
	return nil
}

func (a *app) printResult(res *domain.JobResult) error {
	if a.output == "json" {
		return printJSON(a.stdout, res)
	}
	_, _ = fmt.Fprintln(a.stdout, res.Summary())
	if res.FellBack {
		_, _ = fmt.Fprintln(a.stdout, "api unavailable, fell back to synthetic data")
	}
	rows := make([][]string, 0, len(domain.FactKinds))
	for _, k := range domain.FactKinds {
		t, ok := res.Tables[k]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			string(k),
			strconv.FormatInt(t.Inserted, 10),
			strconv.FormatInt(t.Skipped, 10),
			strconv.FormatInt(t.Failed, 10),
		})
	}
	if err := printTable(a.stdout, []string{"table", "inserted", "skipped", "failed"}, rows); err != nil {
		return err
	}
	if res.Error != "" {
		_, _ = fmt.Fprintf(a.stdout, "error: %s\n", res.Error)
	}
	return nil
}
