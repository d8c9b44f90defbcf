package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/smazurov/mediaexec/internal/argv"
	"github.com/smazurov/mediaexec/internal/process"
	"github.com/spf13/cobra"
)

// CreateRunCmd creates the run command.
func CreateRunCmd(newRuntime RuntimeFactory) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run -- <arguments>",
		Short: "Run ffmpeg once and exit with its code",
		Long: `Runs one ffmpeg session in the foreground. Arguments are either a single
quoted command string or separate tokens after --. Output is echoed unless
--quiet is set. Interrupting the command cancels the session.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(runCommand(cmd, newRuntime, args, quiet, os.Stdout, os.Stderr))
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo session output")
	return cmd
}

// runCommand runs one session for the run subcommand and returns the
// process exit status.
func runCommand(cmd *cobra.Command, newRuntime RuntimeFactory, args []string, quiet bool, stdout, stderr io.Writer) int {
	rt, err := newRuntime(cmd)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	defer closeManager(rt.Manager)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	command := args[0]
	if len(args) > 1 {
		command = argv.Join(args)
	}

	var code int
	if quiet {
		code, err = rt.Manager.ExecuteSync(ctx, rt.Binary, command)
	} else {
		code, err = runEchoed(ctx, rt, command, stdout, stderr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return exitStatus(code)
}

// runEchoed runs command, copying its streams to stdout and stderr, and
// waits for completion. A cancelled ctx cancels the session.
func runEchoed(ctx context.Context, rt *Runtime, command string, stdout, stderr io.Writer) (int, error) {
	done := make(chan int, 1)
	obs := process.ObserverFuncs{
		Output:   func(chunk string) { io.WriteString(stdout, chunk) },
		Error:    func(chunk string) { io.WriteString(stderr, chunk) },
		Complete: func(code int) { done <- code },
	}

	id, err := rt.Manager.Execute(rt.Binary, command, obs)
	if err != nil {
		return -1, err
	}

	select {
	case code := <-done:
		return code, nil
	case <-ctx.Done():
		rt.Manager.Cancel(id)
		return <-done, ctx.Err()
	}
}

func closeManager(m *process.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		slog.Warn("Sessions still running at exit", "error", err)
	}
}
