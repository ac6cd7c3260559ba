// Package report renders snapshots of the board: the visible
// challenges of every list, each participant's attempts and
// completions, and the engine counters.
package report

import "io"

// Reporter renders a board report.
type Reporter interface {
	// Generate renders r.
	Generate(r *BoardReport) ([]byte, error)

	// Write renders r to w.
	Write(w io.Writer, r *BoardReport) error
}

// ForFormat returns the reporter for "json" or "html".
func ForFormat(format string) (Reporter, bool) {
	switch format {
	case "json":
		return NewJSONReporter(true), true
	case "html":
		return NewHTMLReporter(), true
	default:
		return nil, false
	}
}
