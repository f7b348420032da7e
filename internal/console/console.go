// Package console is the operator's line-oriented view of the registry,
// served over SSH.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/room"
)

// ErrUnknownCommand is returned for input the console does not understand.
var ErrUnknownCommand = errors.New("unknown command")

const help = `commands:
  list          list live matches
  show <id>     show a match's state
  stop <id>     destroy a match and disconnect its players
  help          this text
  quit          close the session
`

// Console executes operator commands against a registry.
type Console struct {
	registry *room.Registry
	log      logging.Logger
}

// New returns a console bound to registry.
func New(registry *room.Registry, log logging.Logger) *Console {
	if log == nil {
		log = logging.Noop()
	}
	return &Console{registry: registry, log: log}
}

// Run reads commands from in until EOF or quit, writing results to out.
func (c *Console) Run(in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		args := strings.Fields(sc.Text())
		if len(args) > 0 {
			if args[0] == "quit" || args[0] == "exit" {
				return nil
			}
			if err := c.Exec(args, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return sc.Err()
}

// Exec runs a single command.
func (c *Console) Exec(args []string, out io.Writer) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "help":
		_, err := io.WriteString(out, help)
		return err
	case "list":
		return c.list(out)
	case "show":
		if len(args) != 2 {
			return fmt.Errorf("usage: show <id>")
		}
		return c.show(out, args[1])
	case "stop":
		if len(args) != 2 {
			return fmt.Errorf("usage: stop <id>")
		}
		if err := c.registry.Destroy(args[1]); err != nil {
			return err
		}
		c.log.Info(context.Background(), "match stopped from console", logging.MatchID(args[1]))
		_, err := fmt.Fprintf(out, "stopped %s\n", args[1])
		return err
	}
	return fmt.Errorf("%w: %q (try help)", ErrUnknownCommand, args[0])
}

func (c *Console) list(out io.Writer) error {
	matches := c.registry.List()
	if len(matches) == 0 {
		_, err := fmt.Fprintln(out, "no matches")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHOST\tPLAYERS\tSTATE")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n", m.ID, m.Name, m.HostID, m.PlayerCount, m.MaxPlayers, m.Lifecycle)
	}
	return tw.Flush()
}

func (c *Console) show(out io.Writer, id string) error {
	rm, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	info := rm.Info()
	snap := rm.Snapshot()

	fmt.Fprintf(out, "%s %q host=%s state=%s\n", info.ID, info.Name, info.HostID, snap.Lifecycle)
	fmt.Fprintf(out, "tick=%d wave=%d/%d lives=%d towers=%d enemies=%d subscribers=%d\n",
		snap.Tick, snap.Wave, snap.MaxWaves, snap.Lives, len(snap.Towers), len(snap.Enemies), rm.Subscribers())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tNAME\tZONE\tCURRENCY")
	for _, p := range snap.Players {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", p.ID, p.DisplayName, p.Zone, p.Currency)
	}
	return tw.Flush()
}
