package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

func stdio(stdout, stderr *bytes.Buffer) mainer.Stdio {
	return mainer.Stdio{Stdin: strings.NewReader(""), Stdout: stdout, Stderr: stderr}
}

func TestRunResolveHello(t *testing.T) {
	var out, errs bytes.Buffer
	err := RunResolve(context.Background(), stdio(&out, &errs), "hello")
	require.NoError(t, err)
	require.Empty(t, errs.String())
	require.Contains(t, out.String(), "resolved with no diagnostics")
}

func TestRunGenHello(t *testing.T) {
	var out, errs bytes.Buffer
	err := RunGen(context.Background(), stdio(&out, &errs), "hello")
	require.NoError(t, err)
	require.Contains(t, out.String(), "program:")
}

func TestRunProgramHello(t *testing.T) {
	var out, errs bytes.Buffer
	err := RunProgram(context.Background(), stdio(&out, &errs), "hello")
	require.NoError(t, err)
	require.Contains(t, out.String(), "hello from ciphel")
}

func TestRunProgramThreads(t *testing.T) {
	var out, errs bytes.Buffer
	err := RunProgram(context.Background(), stdio(&out, &errs), "threads")
	require.NoError(t, err)
	require.Contains(t, out.String(), "worker done")
	require.Contains(t, out.String(), "joined")
}

func TestCmdValidateUnknownProgram(t *testing.T) {
	c := &Cmd{}
	c.SetArgs([]string{"run"})
	c.ProgramName = "nope"
	require.Error(t, c.Validate())
}

func TestCmdMainRun(t *testing.T) {
	var out, errs bytes.Buffer
	c := &Cmd{}
	code := c.Main([]string{"ciphel", "--program", "hello", "run"}, stdio(&out, &errs))
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "hello from ciphel")
}
