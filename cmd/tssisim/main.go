// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command tssisim boots the trusted services layer over heap backed
// Non-secure memory and runs a scripted Non-secure World session against it.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&servicesCmd{}, "")

	flag.Parse()

	os.Exit(int(subcommands.Execute(context.Background())))
}
