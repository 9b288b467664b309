// Package jail launches processes whose filesystem view is restricted to
// a given root directory.
//
// Changing root is process-global state: it affects every goroutine of
// the calling process, not just the launch in flight. The whole
// chroot / spawn / restore sequence therefore runs under a single
// package-level mutex, so one launch's temporary root can never be
// observed by, or inherited into, another launch.
//
// Changing root requires privilege (CAP_SYS_CHROOT, typically root).
package jail

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Error is a failure of the privileged root-change sequence itself,
// as opposed to a failure starting the child.
type Error struct {
	Op  string // "open root", "chroot" or "restore"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("jail: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Restore reports whether the failure happened restoring the original
// root. A restore failure leaves the calling process jailed and is not
// recoverable.
func (e *Error) Restore() bool {
	return e.Op == "restore"
}

// chrootMu serializes the chroot / restore pair across all launches.
var chrootMu sync.Mutex

type options struct {
	stdout io.Writer
	stderr io.Writer
}

// Option configures a single launch.
type Option func(*options)

// WithStdout redirects the child's standard output to w instead of the
// default capture buffer.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithStderr redirects the child's standard error to w instead of the
// default capture buffer.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// Process is a running jailed process. Launch does not wait for it;
// reaping is the caller's responsibility.
type Process struct {
	Pid int

	cmd    *exec.Cmd
	stdout io.ReadCloser // nil when a custom sink was given
	stderr io.ReadCloser
}

// Stdout returns a pipe to the child's standard output, or nil if the
// launch used a custom sink. Reading it blocks until the child closes
// its end, so draining it after the child exits yields the complete
// output.
func (p *Process) Stdout() io.Reader {
	if p.stdout == nil {
		return nil
	}
	return p.stdout
}

// Stderr returns a pipe to the child's standard error, or nil if the
// launch used a custom sink.
func (p *Process) Stderr() io.Reader {
	if p.stderr == nil {
		return nil
	}
	return p.stderr
}

// Wait blocks until the child exits and returns its wait error.
func (p *Process) Wait() error {
	return p.cmd.Wait()
}

// Launch runs args inside a chroot jail rooted at root and returns
// without waiting for the child. The executable is resolved inside the
// jail. Standard output and error default to pipes readable via
// Process.Stdout and Process.Stderr.
//
// Restoring the root moves the calling process's working directory to
// the original root, so Launch leaves the process chdir'd to /.
//
// The original root is restored before Launch returns, whether or not
// the spawn succeeded. A restore failure is returned as an *Error even
// when the spawn failed too; it means the calling process is stuck
// inside the jail.
func Launch(root string, args []string, opts ...Option) (*Process, error) {
	if len(args) == 0 {
		return nil, errors.New("jail: empty argument vector")
	}
	var o options
	for _, f := range opts {
		f(&o)
	}

	chrootMu.Lock()
	defer chrootMu.Unlock()

	realRoot, err := unix.Open("/", unix.O_RDONLY, 0)
	if err != nil {
		return nil, &Error{Op: "open root", Err: err}
	}
	defer unix.Close(realRoot)

	if err := unix.Chroot(root); err != nil {
		return nil, &Error{Op: "chroot", Err: err}
	}

	// Everything from here until restore executes with the jailed
	// root, including the PATH lookup for args[0].
	p, startErr := start(args, &o)

	if err := restore(realRoot); err != nil {
		rerr := error(&Error{Op: "restore", Err: err})
		if startErr != nil {
			rerr = multierror.Append(rerr, startErr)
		}
		return nil, rerr
	}
	if startErr != nil {
		return nil, startErr
	}

	logrus.WithFields(logrus.Fields{
		"pid":  p.Pid,
		"root": root,
	}).Debug("launched jailed process")
	return p, nil
}

func start(args []string, o *options) (*Process, error) {
	cmd := exec.Command(args[0], args[1:]...)
	p := &Process{cmd: cmd}

	if o.stdout != nil {
		cmd.Stdout = o.stdout
	} else {
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, errors.Wrap(err, "jail: stdout pipe")
		}
		p.stdout = out
	}
	if o.stderr != nil {
		cmd.Stderr = o.stderr
	} else {
		errPipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, errors.Wrap(err, "jail: stderr pipe")
		}
		p.stderr = errPipe
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "jail: starting %q", args[0])
	}
	p.Pid = cmd.Process.Pid
	return p, nil
}

func restore(realRoot int) error {
	if err := unix.Fchdir(realRoot); err != nil {
		return err
	}
	return unix.Chroot(".")
}
