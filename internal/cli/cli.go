// Package cli implements the ciphel command line: resolve/gen/run phases
// over a bundled Program (see programs.go — there is no source grammar in
// this repository, so -program substitutes for a file argument), wired
// with github.com/mna/mainer the same way the teacher's internal/maincmd
// wires its own parse/resolve/tokenize subcommands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/mna/mainer"

	"github.com/ciphrpool/ciphel-sub003/internal/casm"
	"github.com/ciphrpool/ciphel-sub003/internal/diag"
	"github.com/ciphrpool/ciphel-sub003/internal/engine"
	"github.com/ciphrpool/ciphel-sub003/internal/machine"
	"github.com/ciphrpool/ciphel-sub003/internal/resolver"
	"github.com/ciphrpool/ciphel-sub003/internal/runtime"
	"github.com/ciphrpool/ciphel-sub003/internal/scope"
)

const binName = "ciphel"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [-program <name>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [-program <name>]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and runtime for the %[1]s language toolchain.

The <command> can be one of:
       resolve                   Run the semantic resolver over -program and
                                 report its diagnostics.
       gen                       Run the resolver and code generator over
                                 -program and print the disassembled CASM.
       run                       Run the full pipeline (resolve, generate,
                                 schedule) to completion and print program
                                 output.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --program <name>          Select a bundled program (default "hello").

Set TRACE=1 to also print disassembled CASM before running.
`, binName)
)

// envConfig holds the one environment variable the CLI reads, per spec §6's
// TRACE=1 requirement — kept separate from Cmd's flag-tagged fields since
// github.com/caarlos0/env and github.com/mna/mainer parse two different
// tag namespaces.
type envConfig struct {
	Trace bool `env:"TRACE" envDefault:"false"`
}

// Cmd is the ciphel CLI's flag-bound command object, mirroring the shape of
// the teacher's maincmd.Cmd.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	ProgramName string `flag:"program"`

	args  []string
	cmdFn func(context.Context, mainer.Stdio, string) error
}

func (c *Cmd) SetArgs(args []string)    { c.args = args }
func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return fmt.Errorf("no command specified")
	}
	if c.ProgramName == "" {
		c.ProgramName = "hello"
	}
	if _, ok := Programs[c.ProgramName]; !ok {
		return fmt.Errorf("unknown program: %s", c.ProgramName)
	}
	return nil
}

var commands = map[string]func(context.Context, mainer.Stdio, string) error{
	"resolve": RunResolve,
	"gen":     RunGen,
	"run":     RunProgram,
}

// Main parses args, dispatches to the selected subcommand, and returns the
// process exit code exactly per spec §6 (0 normal, 1 parse error — never
// produced here since parsing is external, 2 semantic error, 3 code-gen
// error, 4 runtime error).
func (c *Cmd) Main(args []string, stdio mainer.Stdio) int {
	p := mainer.Parser{EnvVars: false}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return int(mainer.InvalidArgs)
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return int(mainer.Success)
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return int(mainer.Success)
	}

	cmdFn, ok := commands[c.args[0]]
	if !ok {
		fmt.Fprintf(stdio.Stderr, "unknown command: %s\n%s", c.args[0], shortUsage)
		return int(mainer.InvalidArgs)
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := cmdFn(ctx, stdio, c.ProgramName); err != nil {
		if code, ok := exitCodeOf(err); ok {
			return code
		}
		return int(mainer.Failure)
	}
	return int(mainer.Success)
}

// exitCodeOf maps a pipeline error to its spec §6 exit code, when it
// carries enough information to do so.
func exitCodeOf(err error) (int, bool) {
	switch e := err.(type) {
	case *diag.Error:
		return e.Kind.ExitCode(), true
	case diag.RuntimeError:
		return diag.RuntimeCatchable.ExitCode(), true
	default:
		return 0, false
	}
}

// RunResolve runs the resolver over the named program and writes any
// diagnostics to Stderr.
func RunResolve(_ context.Context, stdio mainer.Stdio, programName string) error {
	chunk := Programs[programName]
	mgr := scope.NewManager()
	diags := resolver.Resolve(mgr, chunk)
	for _, e := range diags.Errors() {
		fmt.Fprintln(stdio.Stderr, e)
	}
	if err := diags.Err(); err != nil {
		return diags.Errors()[0]
	}
	fmt.Fprintf(stdio.Stdout, "%s: resolved with no diagnostics\n", programName)
	return nil
}

// RunGen runs the resolver and code generator, printing the disassembled
// CASM program to Stdout.
func RunGen(_ context.Context, stdio mainer.Stdio, programName string) error {
	prog, err := buildProgram(stdio, programName)
	if err != nil {
		return err
	}
	fmt.Fprint(stdio.Stdout, casm.Dasm(prog))
	return nil
}

// RunProgram runs the resolver, code generator and scheduler to completion,
// printing the program's own output (via the Engine's Print/CursorPrint
// intrinsics) to Stdout. TRACE=1 additionally dumps the disassembly first.
func RunProgram(_ context.Context, stdio mainer.Stdio, programName string) error {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("reading TRACE env var: %w", err)
	}

	prog, err := buildProgram(stdio, programName)
	if err != nil {
		return err
	}

	term := engine.NewTerminal(stdio.Stdout, stdio.Stderr, stdio.Stdin)
	if cfg.Trace {
		term.Trace = stdio.Stderr
		fmt.Fprint(term.Trace, casm.Dasm(prog))
	}

	heap := machine.NewHeap()
	sched := runtime.NewScheduler(prog, heap, term, &runtime.ToCompletion{})
	sched.Spawn(prog.TopLevel, nil)
	sched.Run()

	for _, t := range sched.Slab().All() {
		if t.Err != nil {
			return t.Err
		}
	}
	return nil
}

func buildProgram(stdio mainer.Stdio, programName string) (*casm.Program, error) {
	chunk := Programs[programName]
	mgr := scope.NewManager()
	if diags := resolver.Resolve(mgr, chunk); diags.Err() != nil {
		for _, e := range diags.Errors() {
			fmt.Fprintln(stdio.Stderr, e)
		}
		return nil, diags.Errors()[0]
	}
	prog, diags := casm.Generate(mgr, chunk)
	if diags.Err() != nil {
		for _, e := range diags.Errors() {
			fmt.Fprintln(stdio.Stderr, e)
		}
		return nil, diags.Errors()[0]
	}
	return prog, nil
}
