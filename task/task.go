// Package task creates and supervises jailed tasks.
//
// A task is an OS process running with its filesystem view restricted to
// the extracted contents of a downloaded image. Create drives the full
// pipeline (fetch, extract, launch); Attach wraps an already-running
// process by pid so a task started by a separate invocation can be
// inspected and signaled.
//
// Task identity is exactly the OS pid. Pids are reused by the kernel
// once a process has been reaped, so a handle held across the target's
// lifetime can end up referring to an unrelated process. This is a known
// limitation of pid-based identity; the package does not attempt to
// detect reuse.
package task

import (
	"syscall"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/adamtheturtle/giant-swarm-chroot-task/image"
	"github.com/adamtheturtle/giant-swarm-chroot-task/jail"
)

// Health is the result of a health query. Absence of the process is an
// expected outcome, not an error: Exists is false and Status is
// StatusUnknown when the process is gone.
type Health struct {
	Exists bool
	Status Status
}

// Task is a process in a chroot jail.
type Task struct {
	// ID is the OS pid of the task's process.
	ID int

	// Root is the extraction directory serving as the process's
	// filesystem root. It is empty for attached tasks and is never
	// removed automatically.
	Root string

	proc *jail.Process // nil for attached tasks
}

// Create downloads the image at imageURL, extracts it under stagingDir
// and starts args inside a chroot jail rooted at the extracted
// directory. Output sinks default to capture (see jail.Launch) and can
// be overridden per launch with jail options.
func Create(imageURL string, args []string, stagingDir string, opts ...jail.Option) (*Task, error) {
	root, err := image.Pull(imageURL, stagingDir)
	if err != nil {
		return nil, err
	}

	p, err := jail.Launch(root, args, opts...)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"pid":  p.Pid,
		"root": root,
	}).Info("created task")
	return &Task{ID: p.Pid, Root: root, proc: p}, nil
}

// Attach wraps an existing process by pid. No validation is performed
// and no side effects occur; whether the process exists is determined
// lazily by the first Health or Signal call.
func Attach(pid int) *Task {
	return &Task{ID: pid}
}

// Process returns the launch handle, or nil for attached tasks. It
// gives access to the captured output streams of the creation path.
func (t *Task) Process() *jail.Process {
	return t.proc
}

// Health reports whether the task's process exists and, if so, its
// state. It never returns an error for a vanished process.
func (t *Task) Health() Health {
	p, err := procfs.NewProc(t.ID)
	if err != nil {
		return Health{}
	}
	stat, err := p.Stat()
	if err != nil {
		// The process vanished between the pid check and the read.
		return Health{}
	}
	return Health{Exists: true, Status: statusFromState(stat.State)}
}

// Signal delivers sig to the task's process and then reaps its exit
// status, so no zombie entry remains. The reap blocks until the process
// terminates; a signal the process ignores can block indefinitely (an
// inherited design gap, left unbounded on purpose).
//
// If the process has already vanished, Signal returns
// ErrProcessNotFound. Attached tasks whose process is not a child of
// the calling process are signaled but cannot be reaped; that is not an
// error.
func (t *Task) Signal(sig syscall.Signal) error {
	if err := unix.Kill(t.ID, sig); err != nil {
		if err == unix.ESRCH {
			return ErrProcessNotFound
		}
		return &SignalError{Pid: t.ID, Signal: unix.SignalName(sig), Err: err}
	}
	return t.reap()
}

func (t *Task) reap() error {
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(t.ID, &ws, 0, nil)
		switch err {
		case nil:
			return nil
		case unix.EINTR:
			continue
		case unix.ECHILD:
			// Not our child (attached task); nothing to reap.
			return nil
		default:
			return &SignalError{Pid: t.ID, Signal: "wait", Err: err}
		}
	}
}
