package templates

import (
	"fmt"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/clodoo/internal/core"
)

// Dashboard renders the upload form and the recent runs.
func Dashboard(entities []string, runs []core.RunRecord) templ.Component {
	return layout("Imports", func(p *page) {
		p.raw(`<h1>New import</h1>`)
		p.raw(`<form method="post" action="/import" enctype="multipart/form-data">`)
		p.raw(`<label>Kind <select name="kind"><option value="entity">Records</option><option value="config">Parameters</option></select></label>`)
		p.raw(`<label>Entity <input name="entity" list="entities" placeholder="derived from file name"></label>`)
		p.raw(`<datalist id="entities">`)
		for _, e := range entities {
			p.raw(`<option value="`)
			p.text(e)
			p.raw(`">`)
		}
		p.raw(`</datalist>`)
		p.raw(`<label>Key field <input name="key_field"></label>`)
		p.raw(`<label>File <input type="file" name="file" accept=".csv" required></label>`)
		p.raw(`<button type="submit">Import</button></form>`)

		p.raw(`<h2>Recent runs</h2>`)
		if len(runs) == 0 {
			p.raw(`<p>No runs yet.</p>`)
			return
		}
		p.raw(`<table><thead><tr><th>Started</th><th>File</th><th>Entity</th><th>Status</th><th>Created</th><th>Updated</th><th>Failed</th></tr></thead><tbody>`)
		for _, rec := range runs {
			res := rec.Result
			p.raw(`<tr class="sev-` + string(rec.Severity) + `"><td><a href="/runs/`)
			p.text(res.RunID)
			p.raw(`">`)
			p.text(rec.CreatedAt.Format("2006-01-02 15:04:05"))
			p.raw(`</a></td><td>`)
			p.text(res.FileName)
			p.raw(`</td><td>`)
			p.text(res.Entity)
			p.raw(`</td><td>`)
			p.text(string(res.Status))
			p.raw(`</td>`)
			for _, n := range []int{res.Created, res.Updated, res.Failed + res.Malformed} {
				p.raw(fmt.Sprintf(`<td>%d</td>`, n))
			}
			p.raw(`</tr>`)
		}
		p.raw(`</tbody></table>`)
	})
}

// RunPage renders the counts and failed rows of one run.
func RunPage(rec core.RunRecord) templ.Component {
	res := rec.Result
	return layout("Run "+res.RunID, func(p *page) {
		p.raw(`<h1>`)
		p.text(res.FileName)
		p.raw(`</h1><p class="sev-` + string(rec.Severity) + `">`)
		p.textf("%s into %s", res.Status, res.Entity)
		if res.DryRun {
			p.raw(` (dry run)`)
		}
		p.raw(`</p>`)
		if res.Error != "" {
			p.raw(`<div class="alert">`)
			p.text(res.Error)
			p.raw(`</div>`)
		}

		p.raw(`<table><tbody>`)
		counts := []struct {
			label string
			n     int
		}{
			{"Rows", res.Rows},
			{"Created", res.Created},
			{"Updated", res.Updated},
			{"Unchanged", res.Unchanged},
			{"Skipped", res.Skipped},
			{"Failed", res.Failed},
			{"Malformed", res.Malformed},
		}
		for _, c := range counts {
			p.raw(fmt.Sprintf(`<tr><th>%s</th><td>%d</td></tr>`, c.label, c.n))
		}
		p.raw(`</tbody></table>`)
		p.textf("Took %s.", res.Duration.Round(time.Millisecond))

		if len(res.FailedRows) == 0 {
			return
		}
		p.raw(`<h2>Failed rows</h2><p><a href="/api/runs/`)
		p.text(res.RunID)
		p.raw(`/failed-rows">Download CSV</a></p>`)
		p.raw(`<table><thead><tr><th>Line</th><th>Key</th><th>Field</th><th>Code</th><th>Reason</th></tr></thead><tbody>`)
		for _, row := range res.FailedRows {
			p.raw(fmt.Sprintf(`<tr><td>%d</td><td>`, row.Line))
			p.text(row.Key)
			p.raw(`</td><td>`)
			p.text(row.Field)
			p.raw(`</td><td>`)
			p.text(row.Code)
			p.raw(`</td><td>`)
			p.text(row.Reason)
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
	})
}
