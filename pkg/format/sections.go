package format

import "strings"

// SectionMarker starts a titled block in backend result text.
const SectionMarker = "### "

// Section is one titled block of a result. Text before the first marker
// lands in a section with an empty title.
type Section struct {
	Title string
	Body  string
}

// ParseSections splits result text on lines starting with "### ".
// Surrounding blank lines are trimmed from every body and empty untitled
// sections are dropped.
func ParseSections(text string) []Section {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var sections []Section
	current := Section{}
	var body []string
	flush := func() {
		current.Body = strings.Trim(strings.Join(body, "\n"), "\n")
		if current.Title != "" || current.Body != "" {
			sections = append(sections, current)
		}
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, SectionMarker) {
			flush()
			current = Section{Title: strings.TrimSpace(strings.TrimPrefix(line, SectionMarker))}
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}
