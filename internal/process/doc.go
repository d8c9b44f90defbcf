// Package process runs media engine sessions and manages their lifecycle.
//
// A session executes either as an OS subprocess (SubprocessUnit) or as an
// engine call on a goroutine (InProcessUnit). Both satisfy ExecutionUnit and
// are driven the same way by one monitor goroutine per session:
//   - Poll with a bounded timeout, forwarding stdout and stderr chunks
//   - Drain once the unit has exited
//   - Record the terminal state, deliver OnComplete once, drop the observer
//   - Close descriptors and remove the session from the Registry
//
// Cancellation is asynchronous. Cancel sends SIGTERM to the child's process
// group (or cancels the engine context) and moves the session to
// StateCancelling; the monitor still observes the real exit. A subprocess
// that ignores SIGTERM for KillTimeout is sent SIGKILL.
//
// Exit codes: a normal exit reports its status, including non-zero ones.
// Death by signal, an undeterminable status and an engine panic report -1
// and end in StateFailed.
//
// Example:
//
//	m := process.NewManager(&process.ManagerOptions{
//	    Logger: logging.GetLogger("process"),
//	})
//	id, err := m.Execute("/usr/bin/ffmpeg", `-i "in file.mp4" out.mkv`, process.ObserverFuncs{
//	    Error:    func(chunk string) { fmt.Print(chunk) },
//	    Complete: func(code int) { fmt.Println("exit", code) },
//	})
//	if err != nil {
//	    // id == process.InvalidSessionID, nothing was started
//	}
//	defer m.Close(context.Background())
package process
