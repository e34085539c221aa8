// Package output provides consistent CLI output formatting.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/quadfuse/quadfuse/internal/search"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Field prints an aligned key/value line, used by stats output.
func (w *Writer) Field(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-24s %v\n", key+":", value)
}

// Results renders a fused result set as text: rank, score, id, and the
// per-source attribution on an indented line below.
func (w *Writer) Results(res *search.Result) {
	if len(res.Results) == 0 {
		w.Status("", "no results")
		return
	}
	for i, r := range res.Results {
		_, _ = fmt.Fprintf(w.out, "%2d. %.4f  %s\n", i+1, r.Score, r.ID)
		parts := make([]string, 0, len(r.Sources))
		for _, s := range r.Sources {
			parts = append(parts, fmt.Sprintf("%s=%.3f", s.Source, s.Normalized))
		}
		_, _ = fmt.Fprintf(w.out, "      %s\n", strings.Join(parts, "  "))
	}
	_, _ = fmt.Fprintf(w.out, "\n%d result(s) from %d/%d sources in %s\n",
		len(res.Results),
		res.Metadata.SourcesResponded, res.Metadata.SourcesQueried,
		res.Metadata.TotalDuration.Round(time.Microsecond))
}

// SourceStats renders per-source timing, used by --explain. Sources print
// in name order.
func (w *Writer) SourceStats(stats map[string]search.SourceStat) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := stats[name]
		state := "ok"
		switch {
		case s.TimedOut:
			state = "timeout"
		case !s.Succeeded:
			state = "failed"
		}
		_, _ = fmt.Fprintf(w.out, "  %-8s %-8s %4d hit(s)  %s\n",
			s.Source, state, s.Hits, s.Duration.Round(time.Microsecond))
	}
}

// JSON renders any value as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Progress prints a progress bar with message, updating in place.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))

	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
