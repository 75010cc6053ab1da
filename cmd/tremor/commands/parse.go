package commands

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyluth/tremor/internal/command"
	"github.com/dyluth/tremor/internal/link"
	"github.com/dyluth/tremor/internal/printer"
	"github.com/dyluth/tremor/pkg/gamestate"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [LINE...]",
	Short: "Show how command lines are interpreted",
	Long: `Parse command lines exactly as a node would and print the field updates,
the queued event and the resulting state. Lines are read from stdin when no
arguments are given. State carries over from one line to the next.

Examples:
  tremor parse '{"light":"green","progress":40}' WINNER
  cat session.log | tremor parse`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return parseLines(printer.Stdout, stringLines(args))
		}
		return parseLines(printer.Stdout, readerLines(os.Stdin))
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func stringLines(args []string) func() ([]byte, bool) {
	i := 0
	return func() ([]byte, bool) {
		if i >= len(args) {
			return nil, false
		}
		i++
		return []byte(args[i-1]), true
	}
}

func readerLines(r io.Reader) func() ([]byte, bool) {
	br := bufio.NewReader(r)
	return func() ([]byte, bool) {
		line, err := link.ReadLine(br)
		if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
			return nil, false
		}
		return line, true
	}
}

// parseLines applies each line to a scratch store and reports the outcome.
func parseLines(w io.Writer, next func() ([]byte, bool)) error {
	store := gamestate.NewStore()
	for {
		line, ok := next()
		if !ok {
			return nil
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		cmd := command.Parse(line)
		if !cmd.Recognized {
			fmt.Fprintf(w, "%-40q  ignored\n", line)
			continue
		}

		if len(cmd.Updates) > 0 {
			store.Apply(cmd.Updates...)
		}
		fmt.Fprintf(w, "%-40q  %s\n", line, describe(cmd, store.Snapshot()))
	}
}

// describe summarizes a recognized command and the state after it.
func describe(cmd command.Command, s gamestate.State) string {
	var parts []string
	for _, u := range cmd.Updates {
		switch u := u.(type) {
		case gamestate.SetLight:
			parts = append(parts, "light="+u.Light.String())
		case gamestate.SetProgress:
			parts = append(parts, fmt.Sprintf("progress=%d", u.Value))
		case gamestate.SetColor:
			parts = append(parts, fmt.Sprintf("color=(%d,%d,%d)", u.R, u.G, u.B))
		}
	}
	if cmd.HasEvent {
		parts = append(parts, "event="+cmd.Event.String())
	}
	if len(parts) == 0 {
		parts = append(parts, "no-op")
	}

	return fmt.Sprintf("%s  -> %s alive=%t progress=%d v%d",
		strings.Join(parts, " "), s.Light, s.PlayerAlive, s.PlayerProgress, s.Version)
}
