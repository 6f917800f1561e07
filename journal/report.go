package journal

import (
	"io"
	"text/template"
	"time"
)

var runOrgFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.Format("2006-01-02")
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders the run as an org-mode entry.
func (r RunRecord) WriteOrg(w io.Writer) error {
	return runOrg.Execute(w, r)
}

const RunOrgTemplate = `* RUN: {{.Kind}} {{if .Rule}}{{.Rule}}{{else}}(rule?){{end}} {{date .Start}}..{{date .End}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:KIND:        {{.Kind}}
:RULE:        {{.Rule}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:DAYS:        {{.Days}}
:TRIALS:      {{.Trials}}
:SKIPPED:     {{.Skipped}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Terminal Value
| Statistic | Value |
|-----------+-------|
| Trials    | {{.Terminal.N}} |
| Mean      | {{printf "%.2f" .Terminal.Mean}} |
| Std Dev   | {{printf "%.2f" .Terminal.StdDev}} |
| Min       | {{printf "%.2f" .Terminal.Min}} |
| P5        | {{printf "%.2f" .Terminal.P5}} |
| Median    | {{printf "%.2f" .Terminal.P50}} |
| P95       | {{printf "%.2f" .Terminal.P95}} |
| Max       | {{printf "%.2f" .Terminal.Max}} |
{{- if ne .MeanStdDev 0.0 }}
| Mean Step Std Dev | {{printf "%.2f" .MeanStdDev}} |
{{- end }}

** Costs
- Tax Paid:      *{{printf "%.2f" .TaxPaid}}*
- Fees Paid:     *{{printf "%.2f" .FeesPaid}}*
- Transfers:     {{.Transfers}}
- Liquidations:  {{.Liquidations}}
{{- if .Config }}

** Configuration
#+begin_src yaml
{{printf "%s" .Config}}
#+end_src
{{- end }}
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
