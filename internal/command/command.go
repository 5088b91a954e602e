// Package command turns a raw input line into the structured command sent to
// the backend: quote-aware tokenization, alias resolution and flag normalization.
package command

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// booleanFlags are the flags the backend declares as boolean. They are only
// sent when the user supplied them (pflag's Changed); an omitted boolean must not be sent as
// an explicit false, which the backend would reject for commands that don't
// accept it.
var booleanFlags = map[string]bool{
	"headed":     true,
	"persistent": true,
	"extension":  true,
	"isolated":   true,
	"in-memory":  true,
	"submit":     true,
	"clear":      true,
	"force":      true,
	"full-page":  true,
}

// IsBooleanFlag reports whether name is declared boolean.
func IsBooleanFlag(name string) bool {
	return booleanFlags[name]
}

// Command is one normalized input line.
type Command struct {
	Raw        string
	Tokens     []string
	Name       string
	Positional []string
	// Flags values are either string or bool.
	Flags map[string]any
}

// UserInputError reports input the client rejects without contacting the backend.
type UserInputError struct {
	Message    string
	Suggestion string
}

func (e *UserInputError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (did you mean %s?)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Parse normalizes line. It returns false when the line holds no tokens.
func Parse(line string) (*Command, bool) {
	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return nil, false
	}

	cmd := &Command{
		Raw:    strings.TrimSpace(line),
		Tokens: tokens,
		Name:   Resolve(tokens[0]),
		Flags:  make(map[string]any),
	}
	cmd.Positional, cmd.Flags = parseFlags(tokens[1:])
	return cmd, true
}

// parseFlags splits tokens into positionals and flags. Declared booleans are
// parsed by a pflag.FlagSet and only the ones that were set are returned;
// undeclared flags are passed through with their value as a string.
func parseFlags(tokens []string) ([]string, map[string]any) {
	positional := []string{}
	flags := make(map[string]any)
	var boolArgs []string

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "--" {
			positional = append(positional, tokens[i+1:]...)
			break
		}
		if !strings.HasPrefix(tok, "--") || len(tok) == 2 {
			positional = append(positional, tok)
			continue
		}

		body := tok[2:]
		name, _, hasValue := strings.Cut(body, "=")
		if IsBooleanFlag(name) {
			if !hasValue && i+1 < len(tokens) {
				// "--headed false" spells the value out; anything else after a
				// boolean flag is an ordinary positional.
				if _, err := parseBool(tokens[i+1]); err == nil {
					tok += "=" + tokens[i+1]
					i++
				}
			}
			boolArgs = append(boolArgs, tok)
			continue
		}
		if hasValue {
			flags[name] = body[len(name)+1:]
			continue
		}

		if strings.HasPrefix(body, "no-") && len(body) > 3 {
			if IsBooleanFlag(body[3:]) {
				boolArgs = append(boolArgs, "--"+body[3:]+"=false")
			} else {
				flags[body[3:]] = false
			}
			continue
		}

		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			flags[body] = tokens[i+1]
			i++
			continue
		}
		flags[body] = true
	}

	if len(boolArgs) > 0 {
		fs := newBooleanFlagSet()
		// every argument names a declared flag with a well-formed value
		_ = fs.Parse(boolArgs)
		fs.Visit(func(f *pflag.Flag) {
			flags[f.Name] = f.Value.(*boolValue).value
		})
	}
	return positional, flags
}

// boolValue is a boolean pflag.Value that also accepts yes/no and on/off.
// A value that is not a boolean is kept as the string given.
type boolValue struct {
	value any
}

func (b *boolValue) Set(s string) error {
	if v, err := parseBool(s); err == nil {
		b.value = v
	} else {
		b.value = s
	}
	return nil
}

func (b *boolValue) String() string {
	if b.value == nil {
		return "false"
	}
	return fmt.Sprint(b.value)
}

func (b *boolValue) Type() string { return "bool" }

func newBooleanFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("command", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for name := range booleanFlags {
		f := fs.VarPF(&boolValue{}, name, "", "")
		f.NoOptDefVal = "true"
	}
	return fs
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// Args returns the wire form of the command: positionals (command name first)
// under "_" and every supplied flag by name.
func (c *Command) Args() map[string]any {
	args := make(map[string]any, len(c.Flags)+1)
	for name, value := range c.Flags {
		args[name] = value
	}
	positional := make([]string, 0, len(c.Positional)+1)
	positional = append(positional, c.Name)
	positional = append(positional, c.Positional...)
	args["_"] = positional
	return args
}

// Validate checks the required positional arguments of known commands.
// Unknown commands are left for the backend to judge.
func (c *Command) Validate() error {
	required, ok := commands[c.Name]
	if !ok {
		return nil
	}
	if len(c.Positional) < required {
		return &UserInputError{Message: fmt.Sprintf("%s requires %d argument(s), got %d", c.Name, required, len(c.Positional))}
	}
	return nil
}
