package results

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strconv"
	"time"
)

// Accepted output formats.
const (
	FormatJSON = "application/json"
	FormatCSV  = "text/csv"
	FormatHTML = "text/html"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatJSON, FormatCSV, FormatHTML}

var tableTmpl = template.Must(template.New("results").Parse(`<table class="results">
<caption>{{.Category}}</caption>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
`))

// table flattens the report into a header and string rows.
func (r *Report) table() ([]string, [][]string) {
	if r.Rendering == RenderingMap {
		names := make([]string, 0, len(r.Latest))
		for n := range r.Latest {
			names = append(names, n)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, n := range names {
			rows = append(rows, []string{n, r.Latest[n]})
		}
		return []string{"name", "status"}, rows
	}
	rows := make([][]string, 0, len(r.Stacked))
	for _, d := range r.Stacked {
		rows = append(rows, []string{
			d.Date.Format(time.RFC3339),
			strconv.Itoa(d.Passed),
			strconv.Itoa(d.Failed),
			strconv.Itoa(d.Skipped),
		})
	}
	return []string{"date", "passed", "failed", "skipped"}, rows
}

// WriteCSV writes the report as CSV with a header line.
func (r *Report) WriteCSV(w io.Writer) error {
	header, rows := r.table()
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("results: write csv: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("results: write csv: %w", err)
	}
	return nil
}

// WriteHTML writes the report as an HTML table fragment.
func (r *Report) WriteHTML(w io.Writer) error {
	header, rows := r.table()
	err := tableTmpl.Execute(w, struct {
		Category string
		Header   []string
		Rows     [][]string
	}{r.Category, header, rows})
	if err != nil {
		return fmt.Errorf("results: write html: %w", err)
	}
	return nil
}
