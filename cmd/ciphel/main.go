package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/ciphrpool/ciphel-sub003/internal/cli"
)

var (
	// placeholder values, replaced on build
	version   = "{v}" // must be N.N[.N]
	buildDate = "{d}" // must be YYYY-mm-DD
)

func main() {
	c := cli.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(c.Main(os.Args, mainer.CurrentStdio()))
}
