package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/smazurov/mediaexec/internal/process"
	"github.com/spf13/cobra"
)

// CreateExecCmd creates the exec command.
func CreateExecCmd(newRuntime RuntimeFactory) *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "exec <command> [command...]",
		Short: "Run several ffmpeg commands concurrently",
		Long: `Starts one session per argument, each a quoted ffmpeg command string, and
prints their output prefixed with the session id. Exits with the highest
exit code; any abnormal termination exits 255.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execCommand(cmd, newRuntime, args, showProgress, os.Stdout, os.Stderr))
		},
	}

	cmd.Flags().BoolVar(&showProgress, "progress", false, "Print progress messages")
	return cmd
}

// execCommand runs the exec subcommand and returns the process exit status.
func execCommand(cmd *cobra.Command, newRuntime RuntimeFactory, args []string, showProgress bool, stdout, stderr io.Writer) int {
	rt, err := newRuntime(cmd)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	defer closeManager(rt.Manager)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	code, err := execAll(ctx, rt, args, stdout, showProgress)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return exitStatus(code)
}

// prefixWriter writes complete lines prefixed with a session tag.
type prefixWriter struct {
	mu  *sync.Mutex
	out io.Writer
}

func (p prefixWriter) line(id int64, stream, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		fmt.Fprintf(p.out, "[%d %s] %s\n", id, stream, strings.TrimRight(l, "\r"))
	}
}

// execAll starts every command, waits for all of them and returns the
// highest exit code, -1 taking precedence. Commands that fail to start
// count as -1 and are reported in the returned error.
func execAll(ctx context.Context, rt *Runtime, commands []string, out io.Writer, showProgress bool) (int, error) {
	w := prefixWriter{mu: &sync.Mutex{}, out: out}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		worst  int
		failed []string
	)
	record := func(code int) {
		mu.Lock()
		defer mu.Unlock()
		if code < 0 || (worst >= 0 && code > worst) {
			worst = code
		}
	}

	for _, command := range commands {
		var id int64
		var idReady sync.WaitGroup
		idReady.Add(1)

		wg.Add(1)
		obs := process.ObserverFuncs{
			Output: func(chunk string) { idReady.Wait(); w.line(id, "out", chunk) },
			Error:  func(chunk string) { idReady.Wait(); w.line(id, "err", chunk) },
			Complete: func(code int) {
				idReady.Wait()
				w.line(id, "exit", fmt.Sprint(code))
				record(code)
				wg.Done()
			},
		}
		if showProgress {
			obs.Progress = func(msg string) { idReady.Wait(); w.line(id, "progress", msg) }
		}

		var err error
		id, err = rt.Manager.Execute(rt.Binary, command, obs)
		idReady.Done()
		if err != nil {
			wg.Done()
			record(-1)
			failed = append(failed, fmt.Sprintf("%q: %v", command, err))
		}
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-ctx.Done():
		rt.Manager.CancelAll()
		<-waitDone
	}

	if len(failed) > 0 {
		return worst, fmt.Errorf("failed to start: %s", strings.Join(failed, "; "))
	}
	return worst, nil
}
