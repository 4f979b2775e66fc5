package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/reglet-dev/scripthost/domain/entities"
	"github.com/reglet-dev/scripthost/host"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "> "
	replContinuePrompt = "... "
)

// lineReader is the interactive line source of the REPL.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

func newLinerReader(complete func(string) []string) (lineReader, error) {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(complete)
	return state, nil
}

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Evaluate statements interactively",
		Long: `Start an interactive session. Variables, constants and functions persist
between inputs; input with open brackets continues on the next line.
Ctrl-C discards the current input, Ctrl-D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHost(cmd.Context(), func(h *host.Host) error {
				lr, err := a.newLineReader(completer(h))
				if err != nil {
					return err
				}
				defer lr.Close()
				return a.repl(cmd.Context(), h, lr)
			})
		},
	}
}

// repl reads and evaluates input until EOF. Evaluation errors are printed
// and do not end the session; cancellation does.
func (a *app) repl(ctx context.Context, h *host.Host, lr lineReader) error {
	sess := h.NewSession("repl")
	var pending strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		prompt := replPrompt
		if pending.Len() > 0 {
			prompt = replContinuePrompt
		}
		line, err := lr.Prompt(prompt)
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			pending.Reset()
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		src := pending.String()
		if sess.Incomplete(src) {
			continue
		}
		pending.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}
		lr.AppendHistory(strings.TrimSpace(src))

		v, err := sess.Eval(ctx, src)
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			continue
		}
		if !v.IsNull() {
			fmt.Fprintln(a.stdout, v.Debug())
		}
	}
}

// completer completes the last word of a line against the capability
// surface.
func completer(h *host.Host) func(string) []string {
	seen := map[string]bool{"print": true, "debug": true, "type_of": true}
	for _, e := range h.Surface().Entries {
		if e.Kind == entities.KindFunction || e.Kind == entities.KindConstant {
			seen[e.Path] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(line string) []string {
		start := strings.LastIndexAny(line, " \t(,[{") + 1
		head, word := line[:start], line[start:]
		if word == "" {
			return nil
		}
		var out []string
		for _, name := range names {
			if strings.HasPrefix(name, word) {
				out = append(out, head+name)
			}
		}
		return out
	}
}
