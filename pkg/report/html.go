package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"time"
)

// HTMLReporter renders reports as a standalone HTML page.
type HTMLReporter struct{}

// NewHTMLReporter creates an HTML reporter.
func NewHTMLReporter() *HTMLReporter { return &HTMLReporter{} }

// Generate renders r as HTML.
func (h *HTMLReporter) Generate(r *BoardReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.Write(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders r to w.
func (h *HTMLReporter) Write(w io.Writer, r *BoardReport) error {
	h.writeHeader(w, "Challenge Board")

	fmt.Fprintln(w, "<h1>Challenge Board</h1>")
	fmt.Fprintf(w, "<p><strong>Generated:</strong> %s</p>\n",
		r.GeneratedAt.Format(time.RFC3339))
	mode := html.EscapeString(r.Policy)
	if r.Testing {
		mode += ", testing intervals"
	}
	fmt.Fprintf(w, "<p><strong>Rotation:</strong> %s</p>\n", mode)

	h.writeLists(w, r)
	h.writeParticipants(w, r)
	h.writeCounters(w, r)

	h.writeFooter(w)
	return nil
}

func (h *HTMLReporter) writeLists(w io.Writer, r *BoardReport) {
	fmt.Fprintln(w, "<h2>Lists</h2>")
	if len(r.Lists) == 0 {
		fmt.Fprintln(w, "<p>No lists loaded.</p>")
		return
	}
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w,
		"<tr><th>List</th><th>Interval</th><th>Visible</th>"+
			"<th>Slots</th><th>Next rotation</th></tr>")
	for _, l := range r.Lists {
		visible := make([]string, 0, len(l.Visible))
		for _, id := range l.Visible {
			visible = append(visible,
				"<code>"+html.EscapeString(string(id))+"</code>")
		}
		fmt.Fprintf(w,
			"<tr><td>%s</td><td>%s</td><td>%s</td>"+
				"<td>%d</td><td>%s</td></tr>\n",
			html.EscapeString(l.ID), html.EscapeString(l.Interval),
			strings.Join(visible, " "), l.MaxActive,
			html.EscapeString(l.NextRotation),
		)
	}
	fmt.Fprintln(w, "</table>")
}

func (h *HTMLReporter) writeParticipants(w io.Writer, r *BoardReport) {
	fmt.Fprintln(w, "<h2>Participants</h2>")
	fmt.Fprintf(w,
		"<p><strong>Active attempts:</strong> %d, "+
			"<strong>completions:</strong> %d</p>\n",
		r.TotalActive, r.TotalCompleted)
	if len(r.Participants) == 0 {
		return
	}
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w,
		"<tr><th>Participant</th><th>Active</th>"+
			"<th>Completed</th><th>Pending rewards</th></tr>")
	for _, p := range r.Participants {
		active := make([]string, 0, len(p.Active))
		for _, a := range p.Active {
			active = append(active, fmt.Sprintf("%s/%s (%s)",
				html.EscapeString(a.List),
				html.EscapeString(string(a.Challenge)),
				html.EscapeString(a.Progress),
			))
		}
		fmt.Fprintf(w,
			"<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>\n",
			html.EscapeString(p.ID), strings.Join(active, "<br>"),
			p.Completed, p.PendingRewards,
		)
	}
	fmt.Fprintln(w, "</table>")
}

func (h *HTMLReporter) writeCounters(w io.Writer, r *BoardReport) {
	if len(r.Counters) == 0 {
		return
	}
	fmt.Fprintln(w, "<h2>Counters</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th>Counter</th><th>Value</th></tr>")
	for _, name := range r.CounterNames() {
		fmt.Fprintf(w, "<tr><td><code>%s</code></td><td>%d</td></tr>\n",
			html.EscapeString(name), r.Counters[name])
	}
	fmt.Fprintln(w, "</table>")
}

func (h *HTMLReporter) writeHeader(w io.Writer, title string) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<style>
body {
  font-family: -apple-system, BlinkMacSystemFont,
    "Segoe UI", Roboto, sans-serif;
  max-width: 960px;
  margin: 0 auto;
  padding: 20px;
  color: #333;
  background: #f9f9f9;
}
h1 { color: #2c3e50; border-bottom: 2px solid #16a085; padding-bottom: 10px; }
h2 { color: #2c3e50; margin-top: 30px; }
table {
  border-collapse: collapse;
  width: 100%%;
  margin: 10px 0;
  background: #fff;
}
th, td {
  border: 1px solid #ddd;
  padding: 8px 12px;
  text-align: left;
  vertical-align: top;
}
th { background: #16a085; color: #fff; }
tr:nth-child(even) { background: #f2f2f2; }
code {
  background: #ecf0f1;
  padding: 2px 6px;
  border-radius: 3px;
  font-size: 0.9em;
}
footer {
  margin-top: 40px;
  padding-top: 10px;
  border-top: 1px solid #ddd;
  color: #7f8c8d;
  font-size: 0.9em;
}
</style>
</head>
<body>
`, html.EscapeString(title))
}

func (h *HTMLReporter) writeFooter(w io.Writer) {
	fmt.Fprintln(w, "<footer>")
	fmt.Fprintln(w, "<p>Generated by challengeboard</p>")
	fmt.Fprintln(w, "</footer>")
	fmt.Fprintln(w, "</body>")
	fmt.Fprintln(w, "</html>")
}
