//go:build linux

package process

import (
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

// maxDrainReads bounds the final drain per stream.
const maxDrainReads = 256

// SubprocessUnit runs an executable as a child process in its own process
// group. The child's stdout and stderr are pipes whose non-blocking read
// ends are owned exclusively by the unit.
type SubprocessUnit struct {
	path    string
	pid     int
	readFds [2]int  // indexed by Stream, -1 once closed
	polling [2]bool // false after EOF or a hard read error
	carry   [2][]byte
	buf     []byte
	sink    Sink
	logger  *slog.Logger

	mu          sync.Mutex // serializes reaping against signal delivery
	exited      bool
	statusKnown bool
	status      unix.WaitStatus

	closeOnce sync.Once
	closeErr  error
}

// StartSubprocess validates path, creates the stdout and stderr pipes and
// starts the child with args as its argument vector (args[0] included).
// No shell is involved. A failed exec is reported here, before any session
// exists.
func StartSubprocess(path string, args []string, sink Sink, bufSize int, logger *slog.Logger) (*SubprocessUnit, error) {
	if err := CheckExecutable(path); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		args = []string{path}
	}
	if bufSize <= 0 {
		bufSize = defaultReadBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	var outPipe, errPipe [2]int
	if err := unix.Pipe2(outPipe[:], unix.O_CLOEXEC); err != nil {
		return nil, &SpawnError{Path: path, Op: "pipe", Err: err}
	}
	if err := unix.Pipe2(errPipe[:], unix.O_CLOEXEC); err != nil {
		closeFds(logger, outPipe[0], outPipe[1])
		return nil, &SpawnError{Path: path, Op: "pipe", Err: err}
	}
	for _, fd := range []int{outPipe[0], errPipe[0]} {
		if err := unix.SetNonblock(fd, true); err != nil {
			closeFds(logger, outPipe[0], outPipe[1], errPipe[0], errPipe[1])
			return nil, &SpawnError{Path: path, Op: "set nonblock", Err: err}
		}
	}

	pid, err := syscall.ForkExec(path, args, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{uintptr(syscall.Stdin), uintptr(outPipe[1]), uintptr(errPipe[1])},
		Sys:   &syscall.SysProcAttr{Setpgid: true},
	})

	// The write ends belong to the child from here on.
	closeFds(logger, outPipe[1], errPipe[1])

	if err != nil {
		closeFds(logger, outPipe[0], errPipe[0])
		return nil, &SpawnError{Path: path, Op: "fork/exec", Err: err}
	}

	return &SubprocessUnit{
		path:    path,
		pid:     pid,
		readFds: [2]int{outPipe[0], errPipe[0]},
		polling: [2]bool{true, true},
		buf:     make([]byte, bufSize),
		sink:    sink,
		logger:  logger,
	}, nil
}

func startSubprocess(path string, args []string, sink Sink, bufSize int, logger *slog.Logger) (ExecutionUnit, error) {
	u, err := StartSubprocess(path, args, sink, bufSize, logger)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Mode implements ExecutionUnit.
func (u *SubprocessUnit) Mode() Mode { return ModeSubprocess }

// PID implements ExecutionUnit.
func (u *SubprocessUnit) PID() int { return u.pid }

// Poll waits up to timeout for either pipe to become readable, forwards
// one chunk per readable pipe, then checks for exit without blocking.
func (u *SubprocessUnit) Poll(timeout time.Duration) bool {
	pfds := make([]unix.PollFd, 0, 2)
	streams := make([]Stream, 0, 2)
	for s, fd := range u.readFds {
		if u.polling[s] {
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			streams = append(streams, Stream(s))
		}
	}

	n, err := unix.Poll(pfds, int(timeout/time.Millisecond))
	if err != nil && !errors.Is(err, unix.EINTR) {
		u.logger.Debug("Poll failed", "pid", u.pid, "error", err)
		time.Sleep(timeout)
	}

	if n > 0 {
		for i, pfd := range pfds {
			switch {
			case pfd.Revents&unix.POLLNVAL != 0:
				u.polling[streams[i]] = false
			case pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0:
				u.readChunk(streams[i])
			}
		}
	}

	return u.reap()
}

// Drain reads until each pipe would block, bounded so that a descendant
// still writing cannot hold the monitor forever.
func (u *SubprocessUnit) Drain() {
	for s := range u.readFds {
		for i := 0; i < maxDrainReads && u.polling[s]; i++ {
			if !u.readChunk(Stream(s)) {
				break
			}
		}
		if tail := u.carry[s]; len(tail) > 0 {
			u.carry[s] = nil
			u.sink.Write(Stream(s), strings.ToValidUTF8(string(tail), "�"))
		}
	}
}

// readChunk performs one non-blocking read and reports whether data arrived.
// Would-block and interrupted reads are normal and mean no data this cycle.
func (u *SubprocessUnit) readChunk(s Stream) bool {
	n, err := unix.Read(u.readFds[s], u.buf)
	switch {
	case n > 0:
		if text := u.decode(s, u.buf[:n]); text != "" {
			u.sink.Write(s, text)
		}
		return true
	case err == nil:
		// Every writer closed its end; exit is still detected via wait4.
		u.polling[s] = false
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
	default:
		u.logger.Debug("Read failed", "pid", u.pid, "stream", s.String(), "error", err)
		u.polling[s] = false
	}
	return false
}

// decode converts a chunk to text, holding back a trailing partial UTF-8
// sequence until the next read completes it.
func (u *SubprocessUnit) decode(s Stream, chunk []byte) string {
	data := append(slices.Clip(u.carry[s]), chunk...)
	cut := len(data) - incompleteRuneTail(data)
	if cut < len(data) {
		u.carry[s] = slices.Clone(data[cut:])
	} else {
		u.carry[s] = nil
	}
	return strings.ToValidUTF8(string(data[:cut]), "�")
}

func incompleteRuneTail(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}

// reap checks for exit with WNOHANG.
func (u *SubprocessUnit) reap() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.exited {
		return true
	}

	var ws unix.WaitStatus
	wpid, err := unix.Wait4(u.pid, &ws, unix.WNOHANG, nil)
	switch {
	case err == nil && wpid == u.pid:
		u.exited = true
		u.statusKnown = true
		u.status = ws
	case errors.Is(err, unix.ECHILD):
		// Reaped elsewhere; the status is lost.
		u.exited = true
	case err != nil && !errors.Is(err, unix.EINTR):
		u.logger.Debug("wait4 failed", "pid", u.pid, "error", err)
	}
	return u.exited
}

// ExitStatus implements ExecutionUnit.
func (u *SubprocessUnit) ExitStatus() (int, string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch {
	case !u.exited:
		return -1, "still running"
	case !u.statusKnown:
		return -1, "exit status unavailable"
	case u.status.Exited():
		return u.status.ExitStatus(), ""
	case u.status.Signaled():
		return -1, "terminated by signal " + u.status.Signal().String()
	default:
		return -1, "abnormal termination"
	}
}

// Terminate sends SIGTERM to the child's process group.
func (u *SubprocessUnit) Terminate() error {
	return u.signal(unix.SIGTERM)
}

// Kill sends SIGKILL to the child's process group.
func (u *SubprocessUnit) Kill() error {
	return u.signal(unix.SIGKILL)
}

func (u *SubprocessUnit) signal(sig unix.Signal) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	// Until reaped the pid cannot be reused, so signalling is safe.
	if u.exited {
		return os.ErrProcessDone
	}
	err := unix.Kill(-u.pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(u.pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// Close closes both read ends. A child that has not been reaped yet is
// killed and waited for, so no zombie is left behind.
func (u *SubprocessUnit) Close() error {
	u.closeOnce.Do(func() {
		if !u.reap() {
			if err := u.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				u.logger.Warn("Failed to kill unreaped child", "pid", u.pid, "error", err)
			}
			u.waitBlocking()
		}

		var errs []error
		for s, fd := range u.readFds {
			if fd < 0 {
				continue
			}
			if err := unix.Close(fd); err != nil {
				errs = append(errs, err)
			}
			u.readFds[s] = -1
			u.polling[s] = false
		}
		u.closeErr = errors.Join(errs...)
	})
	return u.closeErr
}

func (u *SubprocessUnit) waitBlocking() {
	u.mu.Lock()
	defer u.mu.Unlock()

	for !u.exited {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(u.pid, &ws, 0, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err == nil && wpid == u.pid:
			u.statusKnown = true
			u.status = ws
		}
		u.exited = true
	}
}

func closeFds(logger *slog.Logger, fds ...int) {
	for _, fd := range fds {
		if err := unix.Close(fd); err != nil {
			logger.Warn("Failed to close descriptor", "fd", fd, "error", err)
		}
	}
}
