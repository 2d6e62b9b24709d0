package regression

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

var tableHeader = []string{"Num", "Enabled", "Pass/Fail", "ExpectedStatus", "ActualStatus", "CommandFile"}

// TableRows returns the results table cells, header first.
func (r *Report) TableRows() [][]string {
	rows := [][]string{tableHeader}
	for _, row := range r.Rows {
		enabled, result := "TRUE", "FAIL"
		if !row.Enabled {
			enabled, result = "FALSE", "----"
		} else if row.Pass {
			result = "Pass"
		}
		actual := row.Actual.String()
		if !row.Enabled {
			actual = "----"
		}
		rows = append(rows, []string{
			strconv.Itoa(row.Index), enabled, result, row.Expected.String(), actual, row.Path,
		})
	}
	return rows
}

// WriteTable writes the results table: one pipe-separated row per command
// file with columns padded to equal display width, followed by the tallies.
func WriteTable(w io.Writer, r *Report) error {
	rows := r.TableRows()
	widths := make([]int, len(tableHeader))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var b strings.Builder
	for n, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("|")
			}
			if i == len(row)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		b.WriteString("\n")
		if n == 0 {
			for i, wd := range widths {
				if i > 0 {
					b.WriteString("|")
				}
				b.WriteString(strings.Repeat("-", wd))
			}
			b.WriteString("\n")
		}
	}
	t := r.Tally
	fmt.Fprintf(&b, "\n%s\n", tallyLine(t))
	_, err := io.WriteString(w, b.String())
	return err
}

func tallyLine(t Tally) string {
	return fmt.Sprintf("Total: %d  Passed: %d  Failed: %d  Disabled: %d", t.Total, t.Passed, t.Failed, t.Disabled)
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"sevClass": func(s status.Severity) string { return strings.ToLower(s.String()) },
	"tally":    tallyLine,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Command file test summary</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
th { background: #eee; }
.success { background: #d9f2d9; }
.warning { background: #fff3c4; }
.failure { background: #f8d0d0; }
.disabled { color: #888; }
</style>
</head>
<body>
<h1>Command file test summary</h1>
<p>{{tally .Tally}}</p>
<table>
<tr><th>Num</th><th>Enabled</th><th>Result</th><th>Expected</th><th>Actual</th><th>Command file</th></tr>
{{- range .Rows}}
<tr{{if not .Enabled}} class="disabled"{{end}}>
<td><a href="#file-{{.Index}}">{{.Index}}</a></td>
<td>{{.Enabled}}</td>
<td>{{if not .Enabled}}----{{else if .Pass}}Pass{{else}}FAIL{{end}}</td>
<td class="{{sevClass .Expected}}">{{.Expected}}</td>
<td{{if .Enabled}} class="{{sevClass .Actual}}"{{end}}>{{if .Enabled}}{{.Actual}}{{else}}----{{end}}</td>
<td>{{.Path}}</td>
</tr>
{{- end}}
</table>
{{- range .Rows}}
{{- if or .Entries .Error}}
<h2 id="file-{{.Index}}">{{.Index}}. {{.Path}}</h2>
{{- if .Error}}
<p class="failure">{{.Error}}</p>
{{- end}}
{{- if .Entries}}
<table>
<tr><th>Line</th><th>Command</th><th>Phase</th><th>Severity</th><th>Message</th><th>Recommendation</th></tr>
{{- range .Entries}}
<tr class="{{sevClass .Severity}}"><td>{{.Line}}</td><td>{{.Command}}</td><td>{{.Phase}}</td><td>{{.Severity}}</td><td>{{.Message}}</td><td>{{.Recommendation}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- end}}
{{- end}}
</body>
</html>
`))

// WriteHTML writes a diagnostic summary of every status entry recorded by
// every tested file.
func WriteHTML(w io.Writer, r *Report) error {
	return summaryTmpl.Execute(w, r)
}
