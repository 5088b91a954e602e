package repl

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/berrythewa/pwrepl/internal/command"
	"github.com/berrythewa/pwrepl/internal/ipc"
	"github.com/berrythewa/pwrepl/pkg/format"
)

// output serializes writes from the drain loop, replay drivers and
// connection callbacks.
type output struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *output) println(s string) {
	if s == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, s)
}

func (o *output) print(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprint(o.w, s)
}

// terminalReporter renders command outcomes. It implements sequencer.Reporter.
type terminalReporter struct {
	out *output
	f   *format.Formatter
}

func (t *terminalReporter) Result(cmd *command.Command, text string) {
	t.out.println(t.f.FormatResult(text))
}

func (t *terminalReporter) Failure(cmd *command.Command, err error) {
	t.Error(err)
}

func (t *terminalReporter) Timing(cmd *command.Command, elapsed time.Duration) {
	t.out.println(t.f.FormatTiming(elapsed))
}

func (t *terminalReporter) Reconnected(err error) {
	if err != nil {
		t.out.println(t.f.FormatWarning("Reconnect failed: " + err.Error()))
		return
	}
	t.out.println(t.f.FormatSuccess("Reconnected to backend"))
}

func (t *terminalReporter) Error(err error) {
	var inputErr *command.UserInputError
	var remote *ipc.RemoteError
	switch {
	case errors.As(err, &inputErr):
		hint := ""
		if inputErr.Suggestion != "" {
			hint = fmt.Sprintf("Did you mean %s?", inputErr.Suggestion)
		}
		t.out.println(t.f.FormatError(inputErr.Message, hint))
	case errors.As(err, &remote):
		t.out.println(t.f.FormatError(remote.Message, ""))
	case errors.Is(err, ipc.ErrNotConnected):
		t.out.println(t.f.FormatError("not connected to backend", "Start it with 'pwrepl backend start', then run .reconnect"))
	case errors.Is(err, ipc.ErrConnectionClosed):
		t.out.println(t.f.FormatError("connection to backend closed", ""))
	default:
		t.out.println(t.f.FormatError(err.Error(), ""))
	}
}

func (t *terminalReporter) Notice(msg string)  { t.out.println(t.f.FormatNotice(msg)) }
func (t *terminalReporter) Success(msg string) { t.out.println(t.f.FormatSuccess(msg)) }
func (t *terminalReporter) Warning(msg string) { t.out.println(t.f.FormatWarning(msg)) }
