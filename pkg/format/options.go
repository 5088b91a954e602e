package format

// Options controls formatting behavior
type Options struct {
	UseColors bool
	MaxWidth  int // Max width of list previews (0 = no limit)
	MaxLines  int // Max lines per result section (0 = no limit)
}

// DefaultOptions returns the options used at an interactive terminal
func DefaultOptions() Options {
	return Options{
		UseColors: true,
		MaxWidth:  100,
	}
}

// PlainOptions returns options for piped output: no escapes, nothing truncated
func PlainOptions() Options {
	return Options{}
}
