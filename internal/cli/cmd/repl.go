package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/berrythewa/pwrepl/internal/daemon"
	"github.com/berrythewa/pwrepl/internal/history"
	"github.com/berrythewa/pwrepl/internal/repl"
	"github.com/berrythewa/pwrepl/pkg/format"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f any) bool {
	file, ok := f.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func newFormatter(out io.Writer) *format.Formatter {
	opts := format.DefaultOptions()
	opts.UseColors = cfg.Output.Color && isTerminal(out)
	if file, ok := out.(*os.File); ok && isTerminal(out) {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			opts.MaxWidth = width
		}
	}
	return format.New(opts)
}

// openHistory opens the input history, or returns nil when it is disabled or
// locked by another instance.
func openHistory(logger *zap.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	limit := cfg.History.Limit
	if limit == 0 {
		limit = -1
	}
	store, err := history.Open(history.StoreConfig{
		DBPath:    cfg.History.DBPath,
		Limit:     limit,
		SessionID: uuid.NewString(),
		Logger:    logger.Named("history"),
	})
	if err != nil {
		logger.Warn("Input history unavailable", zap.Error(err))
		return nil
	}
	return store
}

// newREPL builds a REPL over in and out. The returned func releases the
// history database.
func newREPL(in io.Reader, out io.Writer, interactive bool) (*repl.REPL, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}
	logger, err := GetLogger()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.SystemPaths.EnsureDirs(); err != nil {
		logger.Warn("Failed to create data directories", zap.Error(err))
	}

	store := openHistory(logger)
	r := repl.New(cfg, repl.Options{
		In:          in,
		Out:         out,
		Interactive: interactive,
		Logger:      logger,
		Formatter:   newFormatter(out),
		History:     store,
		Launcher:    daemon.NewLauncher(cfg, logger.Named("launcher")),
	})

	release := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close history", zap.Error(err))
			}
		}
	}
	return r, release, nil
}

// RunInteractive runs the prompt on in and out. Piped input runs without
// prompt or banner.
func RunInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	r, release, err := newREPL(in, out, isTerminal(in) && isTerminal(out))
	if err != nil {
		return err
	}
	defer release()
	return r.Run(ctx)
}
