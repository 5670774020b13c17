package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/frewsxcv/template-tally/internal/tally"
	"github.com/frewsxcv/template-tally/internal/types"
)

const reportStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}` +
	`h2{margin-top:2rem}li{font-family:ui-monospace,monospace}` +
	`.summary span{margin-right:1.5rem}.unrendered li{color:#a40000}`

// ReportPage renders a report as a standalone HTML page.
func ReportPage(report *tally.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}

		ew.write(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		ew.write(`<title>Template render report</title><style>` + reportStyle + `</style></head><body>`)
		ew.write(`<h1>Template render report</h1><p class="summary">`)
		ew.printf(`<span>%s templates</span>`, humanize.Comma(int64(report.Total)))
		ew.printf(`<span>%s rendered</span>`, humanize.Comma(int64(len(report.Rendered))))
		ew.printf(`<span>%s unrendered</span>`, humanize.Comma(int64(len(report.Unrendered))))
		ew.printf(`<span>%.1f%% coverage</span>`, 100*report.Coverage())
		ew.write(`</p><p>`)
		ew.printf(`Renders within the last %s. Generated %s.`,
			templ.EscapeString(FormatWindow(report.Window)),
			templ.EscapeString(humanize.Time(report.GeneratedAt)))
		ew.write(`</p>`)

		writeTemplateList(ew, "Unrendered", "unrendered", report.Unrendered)
		writeTemplateList(ew, "Rendered", "rendered", report.Rendered)

		ew.write(`</body></html>`)
		return ew.err
	})
}

func writeTemplateList(ew *errWriter, title, class string, ids []types.TemplateID) {
	ew.printf(`<h2>%s (%s)</h2>`, title, humanize.Comma(int64(len(ids))))
	if len(ids) == 0 {
		ew.write(`<p>None.</p>`)
		return
	}

	ew.printf(`<ul class="%s">`, class)
	for _, id := range ids {
		ew.printf(`<li>%s</li>`, templ.EscapeString(id.String()))
	}
	ew.write(`</ul>`)
}

// FormatWindow renders whole days as "14 days" and anything else as a duration.
func FormatWindow(window time.Duration) string {
	const day = 24 * time.Hour
	if window > 0 && window%day == 0 {
		days := int64(window / day)
		if days == 1 {
			return "1 day"
		}
		return humanize.Comma(days) + " days"
	}
	return window.String()
}

// errWriter keeps the first write error so page output reads linearly.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) write(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (e *errWriter) printf(format string, args ...any) {
	e.write(fmt.Sprintf(format, args...))
}
