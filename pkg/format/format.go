package format

import (
	"fmt"
	"strings"
	"time"
)

// Formatter renders REPL output
type Formatter struct {
	options Options
}

// New creates a new formatter with the given options
func New(opts Options) *Formatter {
	return &Formatter{
		options: opts,
	}
}

// Options returns the formatter's options.
func (f *Formatter) Options() Options { return f.options }

// FormatResult renders backend result text section by section. Sections
// titled "Error" are shown in red.
func (f *Formatter) FormatResult(text string) string {
	sections := ParseSections(text)
	if len(sections) == 0 {
		return ""
	}

	var parts []string
	for _, s := range sections {
		body := TruncateLines(s.Body, f.options.MaxLines)
		if s.Title == "" {
			parts = append(parts, body)
			continue
		}
		if strings.EqualFold(s.Title, "Error") {
			parts = append(parts, ColorizeIf(SectionMarker+s.Title, BrightRed, f.options.UseColors))
			if body != "" {
				parts = append(parts, ColorizeIf(body, Red, f.options.UseColors))
			}
			continue
		}
		parts = append(parts, BoldIf(SectionMarker+s.Title, f.options.UseColors))
		if body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n")
}

// FormatError renders a failure, with an optional hint on its own line.
func (f *Formatter) FormatError(msg, hint string) string {
	out := ColorizeIf("Error: "+msg, Red, f.options.UseColors)
	if hint != "" {
		out += "\n" + DimIf(hint, f.options.UseColors)
	}
	return out
}

// FormatNotice renders a status message from the client itself.
func (f *Formatter) FormatNotice(msg string) string {
	return ColorizeIf(msg, Cyan, f.options.UseColors)
}

// FormatSuccess renders a confirmation.
func (f *Formatter) FormatSuccess(msg string) string {
	return ColorizeIf(msg, Green, f.options.UseColors)
}

// FormatWarning renders a recoverable problem.
func (f *Formatter) FormatWarning(msg string) string {
	return ColorizeIf(msg, Yellow, f.options.UseColors)
}

// FormatTiming renders a command latency line.
func (f *Formatter) FormatTiming(d time.Duration) string {
	return DimIf(fmt.Sprintf("(%s)", FormatDuration(d)), f.options.UseColors)
}

// Field is a labelled value for FormatFields.
type Field struct {
	Label string
	Value string
}

// FormatFields renders aligned "label: value" lines under a title.
func (f *Formatter) FormatFields(title string, fields []Field) string {
	var parts []string
	if title != "" {
		parts = append(parts, ColorizeIf(title, BrightBlue, f.options.UseColors))
	}
	width := 0
	for _, fd := range fields {
		if len(fd.Label) > width {
			width = len(fd.Label)
		}
	}
	for _, fd := range fields {
		label := fmt.Sprintf("%-*s", width+1, fd.Label+":")
		parts = append(parts, "  "+ColorizeIf(label, BrightCyan, f.options.UseColors)+" "+fd.Value)
	}
	return strings.Join(parts, "\n")
}

// ListItem is one numbered entry for FormatList.
type ListItem struct {
	Text string
	Time time.Time
}

// FormatList renders numbered entries, newest last, with relative times when set.
func (f *Formatter) FormatList(title string, items []ListItem) string {
	if len(items) == 0 {
		return ColorizeIf(fmt.Sprintf("No %s", strings.ToLower(title)), Gray, f.options.UseColors)
	}

	parts := []string{ColorizeIf(fmt.Sprintf("%s (%d entries)", title, len(items)), BrightBlue, f.options.UseColors)}
	digits := len(fmt.Sprint(len(items)))
	for i, item := range items {
		line := fmt.Sprintf("%*d  %s", digits, i+1, TruncateText(item.Text, f.options.MaxWidth))
		if !item.Time.IsZero() {
			line += "  " + DimIf(FormatRelativeTime(item.Time), f.options.UseColors)
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}
