package repl

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/berrythewa/pwrepl/internal/command"
	"github.com/berrythewa/pwrepl/internal/session"
	"github.com/berrythewa/pwrepl/pkg/format"
	"github.com/sahilm/fuzzy"
)

const defaultHistoryLines = 20

type metaCommand struct {
	name  string
	usage string
	help  string
	run   func(r *REPL, ctx context.Context, args []string) error
}

// metaCommands is filled in init because metaHelp reads it.
var metaCommands []metaCommand

func init() {
	metaCommands = []metaCommand{
		{"help", "", "Show this help", (*REPL).metaHelp},
		{"aliases", "", "List command aliases", (*REPL).metaAliases},
		{"status", "", "Show connection and session state", (*REPL).metaStatus},
		{"record", "[file]", "Start recording executed commands", (*REPL).metaRecord},
		{"pause", "", "Pause or resume the recording", (*REPL).metaPause},
		{"save", "", "Write the recording to its file", (*REPL).metaSave},
		{"discard", "", "Drop the recording without saving", (*REPL).metaDiscard},
		{"replay", "<file> [--step]", "Run a session file", (*REPL).metaReplay},
		{"next", "", "Continue a step replay", (*REPL).metaNext},
		{"stop", "", "Abort the running replay", (*REPL).metaStop},
		{"history", "[n]", "Show the last n input lines", (*REPL).metaHistory},
		{"reconnect", "", "Reconnect to the backend", (*REPL).metaReconnect},
		{"clear", "", "Clear the screen", (*REPL).metaClear},
		{"exit", "", "Leave the REPL", (*REPL).metaExit},
		{"quit", "", "Leave the REPL", (*REPL).metaExit},
	}
}

func lookupMeta(name string) (metaCommand, bool) {
	for _, m := range metaCommands {
		if m.name == name {
			return m, true
		}
	}
	return metaCommand{}, false
}

// suggestMeta returns the closest meta-command name, or "" when nothing is close.
func suggestMeta(name string) string {
	names := make([]string, len(metaCommands))
	for i, m := range metaCommands {
		names[i] = m.name
	}
	if matches := fuzzy.Find(name, names); len(matches) > 0 {
		return matches[0].Str
	}
	// fuzzy matching needs every character in order; fall back to a shared prefix
	for _, n := range names {
		if len(name) > 0 && strings.HasPrefix(n, name[:1]) {
			return n
		}
	}
	return ""
}

func (r *REPL) runMeta(ctx context.Context, line string) error {
	tokens := command.Tokenize(strings.TrimPrefix(line, session.MetaPrefix))
	if len(tokens) == 0 {
		return &command.UserInputError{Message: "empty meta-command", Suggestion: ".help"}
	}
	name := strings.ToLower(tokens[0])
	m, ok := lookupMeta(name)
	if !ok {
		err := &command.UserInputError{Message: "unknown command ." + name}
		if s := suggestMeta(name); s != "" {
			err.Suggestion = "." + s
		}
		return err
	}
	return m.run(r, ctx, tokens[1:])
}

func (r *REPL) metaHelp(ctx context.Context, args []string) error {
	var b strings.Builder
	b.WriteString(format.BoldIf("Meta-commands", r.f.Options().UseColors))
	for _, m := range metaCommands {
		usage := "." + m.name
		if m.usage != "" {
			usage += " " + m.usage
		}
		fmt.Fprintf(&b, "\n  %-24s %s", usage, m.help)
	}
	b.WriteString("\n" + format.BoldIf("Backend commands", r.f.Options().UseColors) + "\n  ")
	b.WriteString(strings.Join(command.Names(), " "))
	b.WriteString("\n" + format.DimIf("Anything else is sent to the backend as is.", r.f.Options().UseColors))
	r.out.println(b.String())
	return nil
}

func (r *REPL) metaAliases(ctx context.Context, args []string) error {
	aliases := command.Aliases()
	names := make([]string, 0, len(aliases))
	for a := range aliases {
		names = append(names, a)
	}
	sort.Strings(names)

	fields := make([]format.Field, len(names))
	for i, a := range names {
		fields[i] = format.Field{Label: a, Value: aliases[a]}
	}
	r.out.println(r.f.FormatFields("Aliases", fields))
	return nil
}

func (r *REPL) metaStatus(ctx context.Context, args []string) error {
	connected := "no"
	if r.client.Connected() {
		connected = "yes"
	}
	st := r.sessions.Status()
	r.out.println(r.f.FormatFields("Status", []format.Field{
		{Label: "Backend", Value: r.client.Address()},
		{Label: "Connected", Value: connected},
		{Label: "Session", Value: st.Describe()},
		{Label: "Executed", Value: strconv.FormatInt(r.exec.Executed(), 10)},
		{Label: "Queued", Value: strconv.Itoa(r.seq.Len())},
		{Label: "Workspace", Value: r.cfg.Workspace},
	}))
	return nil
}

func (r *REPL) metaRecord(ctx context.Context, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	file, err := r.sessions.StartRecording(name)
	if err != nil {
		return err
	}
	r.report.Notice(fmt.Sprintf("Recording to %s (.pause, .save, .discard)", file))
	return nil
}

func (r *REPL) metaPause(ctx context.Context, args []string) error {
	mode, err := r.sessions.TogglePause()
	if err != nil {
		return err
	}
	if mode == session.ModePaused {
		r.report.Notice("Recording paused")
	} else {
		r.report.Notice("Recording resumed")
	}
	return nil
}

func (r *REPL) metaSave(ctx context.Context, args []string) error {
	file, n, err := r.sessions.Save()
	if err != nil {
		return err
	}
	r.report.Success(fmt.Sprintf("Saved %d commands to %s", n, file))
	return nil
}

func (r *REPL) metaDiscard(ctx context.Context, args []string) error {
	n, err := r.sessions.Discard()
	if err != nil {
		return err
	}
	r.report.Notice(fmt.Sprintf("Discarded %d commands", n))
	return nil
}

func (r *REPL) metaReplay(ctx context.Context, args []string) error {
	file, step := "", false
	for _, a := range args {
		switch {
		case a == "--step" || a == "-s":
			step = true
		case file == "":
			file = a
		default:
			return &command.UserInputError{Message: "usage: .replay <file> [--step]"}
		}
	}
	if file == "" {
		return &command.UserInputError{Message: "usage: .replay <file> [--step]"}
	}
	return r.startReplay(file, step)
}

func (r *REPL) metaNext(ctx context.Context, args []string) error {
	if !r.continueReplay() {
		return &command.UserInputError{Message: "no step replay is running"}
	}
	return nil
}

func (r *REPL) metaStop(ctx context.Context, args []string) error {
	pos, ok := r.stopReplay()
	if !ok {
		return &session.StateConflictError{Op: "stop replay", Mode: r.sessions.Mode()}
	}
	r.report.Notice(fmt.Sprintf("Replay stopped after %d commands", pos))
	return nil
}

func (r *REPL) metaHistory(ctx context.Context, args []string) error {
	if r.history == nil {
		return &command.UserInputError{Message: "history is disabled"}
	}
	n := defaultHistoryLines
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return &command.UserInputError{Message: "usage: .history [n]"}
		}
		n = v
	}
	entries, err := r.history.List(n)
	if err != nil {
		return err
	}
	items := make([]format.ListItem, len(entries))
	for i, e := range entries {
		items[i] = format.ListItem{Text: e.Line, Time: e.Time}
	}
	r.out.println(r.f.FormatList("History", items))
	return nil
}

func (r *REPL) metaReconnect(ctx context.Context, args []string) error {
	r.client.Close()
	if err := r.connect(ctx); err != nil {
		return err
	}
	r.report.Success("Connected to " + r.client.Address())
	return nil
}

func (r *REPL) metaClear(ctx context.Context, args []string) error {
	if r.interactive {
		r.out.print("\033[H\033[2J")
	}
	return nil
}

func (r *REPL) metaExit(ctx context.Context, args []string) error {
	r.requestExit()
	return nil
}
