package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Icons and symbols for different log types
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconFile    = "📄"
	IconDot     = "•"
)

var (
	sectionColor = []color.Attribute{color.FgCyan, color.Bold}
	keyColor     = []color.Attribute{color.FgCyan}
	headerColor  = []color.Attribute{color.Bold}
)

func paintDefault(attrs []color.Attribute, text string) string {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		defer l.out.mu.Unlock()
		return l.out.paint(attrs, text)
	}
	return text
}

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// LogSection writes a visual section separator
func LogSection(w io.Writer, title string) {
	line := strings.Repeat("=", 50)
	_, _ = fmt.Fprintln(w, paintDefault(sectionColor, line))
	_, _ = fmt.Fprintln(w, paintDefault(sectionColor, title))
	_, _ = fmt.Fprintln(w, paintDefault(sectionColor, line))
}

// LogKeyValue writes a key-value pair
func LogKeyValue(w io.Writer, key string, value interface{}) {
	_, _ = fmt.Fprintf(w, "%s %v\n", paintDefault(keyColor, key+":"), value)
}

// Table represents a simple table for terminal output
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    [][]string{},
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.rows) }

// Print writes the table to w
func (t *Table) Print(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Headers are padded before painting so escape codes do not skew alignment
	var header strings.Builder
	for i, h := range t.headers {
		header.WriteString(paintDefault(headerColor, fmt.Sprintf("%-*s", widths[i], h)))
		header.WriteString("  ")
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(header.String(), " "))

	var sep strings.Builder
	for i := range t.headers {
		sep.WriteString(strings.Repeat("-", widths[i]) + "  ")
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(sep.String(), " "))

	for _, row := range t.rows {
		var line strings.Builder
		for i, cell := range row {
			if i < len(widths) {
				line.WriteString(fmt.Sprintf("%-*s  ", widths[i], cell))
			}
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}
