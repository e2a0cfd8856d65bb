// Package templates renders the HTML pages of the web server.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// page accumulates HTML, keeping the first write error.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *page) textf(format string, args ...any) {
	p.text(fmt.Sprintf(format, args...))
}

// layout wraps body in the shared page chrome.
func layout(title string, body func(p *page)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		p.text(title)
		p.raw(`</title><style>` + styles + `</style></head><body><header><a href="/">clodoo</a></header><main>`)
		body(p)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

const styles = `body{font-family:system-ui,sans-serif;margin:0;color:#1f2933}
header{background:#243b53;padding:.75rem 1.5rem}header a{color:#fff;text-decoration:none;font-weight:600}
main{padding:1.5rem;max-width:72rem}
table{border-collapse:collapse;width:100%}th,td{text-align:left;padding:.35rem .6rem;border-bottom:1px solid #d9e2ec}
.alert{border:1px solid #e12d39;background:#ffeeee;padding:.75rem 1rem;border-radius:4px}
.sev-low{color:#199473}.sev-medium{color:#cb6e17}.sev-high{color:#e12d39}
form label{display:block;margin:.4rem 0}`

// ErrorAlert renders a coded user message.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<div class="alert" role="alert"><strong>`)
		p.text(message)
		p.raw(`</strong>`)
		if action != "" {
			p.raw(`<p>`)
			p.text(action)
			p.raw(`</p>`)
		}
		if code != "" {
			p.raw(`<small>Error code: `)
			p.text(code)
			p.raw(`</small>`)
		}
		p.raw(`</div>`)
		return p.err
	})
}
