// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"golang.org/x/term"
	"gvisor.dev/gvisor/pkg/log"

	"github.com/usbarmory/GoTEE-tssi/services"
	"github.com/usbarmory/GoTEE-tssi/tssi"
	"github.com/usbarmory/GoTEE-tssi/util"
)

// newOutput returns the shared console, colour coded on terminals.
func newOutput(w *os.File) *util.Output {
	out := &util.Output{Writer: w}

	if term.IsTerminal(int(w.Fd())) {
		out.Term = term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, w}, "")
	}

	return out
}

// start boots the trusted services described by c, the Secure World logs to
// out.
func start(c *config, out *util.Output, debug bool) (sys *tssi.System, ns *session, err error) {
	level, err := c.level()

	if err != nil {
		return
	}

	if debug {
		level = log.Debug
	}

	log.SetTarget(log.GoogleEmitter{Writer: &log.Writer{Next: out.Stream(true)}})
	log.SetLevel(level)

	cfg, region, err := c.build()

	if err != nil {
		return
	}

	var reason string

	cfg.Halt = func(r string) {
		reason = r
	}

	if sys = tssi.Start(cfg); sys == nil {
		return nil, nil, fmt.Errorf("SM halted, %s", reason)
	}

	return sys, newSession(sys.Trap, region, out.Stream(false)), nil
}

// runCmd implements subcommands.Command for the "run" command.
type runCmd struct {
	config string
	debug  bool
}

// Name implements subcommands.Command.Name.
func (*runCmd) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*runCmd) Synopsis() string {
	return "boot the trusted services and run a Non-secure World session"
}

// Usage implements subcommands.Command.Usage.
func (*runCmd) Usage() string {
	return `run [flags] - boot the trusted services and run a Non-secure World session
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.config, "config", "", "path to the TOML configuration file")
	f.BoolVar(&r.debug, "debug", false, "enable debug logging")
}

// Execute implements subcommands.Command.Execute.
func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	c, err := loadConfig(r.config)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	out := newOutput(os.Stdout)
	defer out.Flush()

	sys, ns, err := start(c, out, r.debug)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	defer sys.Close()

	sys.Enter(func(*tssi.System) {
		if err = ns.run(c.Services); err != nil {
			log.Warningf("SM Non-secure session failed, %v", err)
		}
	})

	if err != nil {
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}

// servicesCmd implements subcommands.Command for the "services" command.
type servicesCmd struct {
	config string
}

// Name implements subcommands.Command.Name.
func (*servicesCmd) Name() string {
	return "services"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*servicesCmd) Synopsis() string {
	return "list the service kinds and the configured service table"
}

// Usage implements subcommands.Command.Usage.
func (*servicesCmd) Usage() string {
	return `services [flags] - list the service kinds and the configured service table
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *servicesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.config, "config", "", "path to the TOML configuration file")
}

// Execute implements subcommands.Command.Execute.
func (s *servicesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	c, err := loadConfig(s.config)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	c.LogLevel = "warning"
	out := newOutput(os.Stderr)

	sys, _, err := start(c, out, false)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	defer sys.Close()

	fmt.Printf("kinds: %s\n\n", strings.Join(services.Names(), ", "))
	printTable(os.Stdout, sys.Snapshot())

	return subcommands.ExitSuccess
}

func printTable(w io.Writer, table []tssi.SlotInfo) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "HANDLE\tNAME\tPRIORITY\tSTATE\tREQUESTS")

	for _, info := range table {
		fmt.Fprintf(tw, "%v\t%s\t%d\t%v\t%d\n", info.Handle, info.Name, info.Priority, info.State, info.Requests)
	}
}
