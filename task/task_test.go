package task

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamtheturtle/giant-swarm-chroot-task/jail"
)

// rootfsURL gates the creation-path tests: they need privilege to chroot
// and a rootfs image providing sleep, echo and touch.
func rootfsURL(t *testing.T) string {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root to chroot")
	}
	url := os.Getenv("TASKER_TEST_ROOTFS_URL")
	if url == "" {
		t.Skip("TASKER_TEST_ROOTFS_URL not set")
	}
	return url
}

func startSleep(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})
	return cmd
}

func TestHealth_Self(t *testing.T) {
	t.Parallel()
	h := Attach(os.Getpid()).Health()
	assert.True(t, h.Exists)
	assert.Equal(t, StatusRunning, h.Status)
}

func TestHealth_Nonexistent(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("sleep", "0")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	// The process is reaped, so absence is reported, not an error.
	h := Attach(pid).Health()
	assert.Equal(t, Health{}, h)
	assert.Equal(t, StatusUnknown, h.Status)
}

func TestHealth_Sleeping(t *testing.T) {
	t.Parallel()
	cmd := startSleep(t)

	task := Attach(cmd.Process.Pid)
	require.Eventually(t, func() bool {
		h := task.Health()
		return h.Exists && h.Status == StatusSleeping
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSignal_Reaps(t *testing.T) {
	t.Parallel()
	cmd := startSleep(t)

	task := Attach(cmd.Process.Pid)
	require.NoError(t, task.Signal(syscall.SIGINT))

	// A reaped process is gone, not a zombie.
	h := task.Health()
	assert.False(t, h.Exists)
	assert.Equal(t, StatusUnknown, h.Status)
}

func TestSignal_ProcessNotFound(t *testing.T) {
	t.Parallel()
	cmd := exec.Command("sleep", "0")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	err := Attach(pid).Signal(syscall.SIGINT)
	require.ErrorIs(t, err, ErrProcessNotFound)
}

func TestAttach_SharedProcess(t *testing.T) {
	t.Parallel()
	cmd := startSleep(t)

	task := Attach(cmd.Process.Pid)
	other := Attach(cmd.Process.Pid)

	// Interrupting one task interrupts the other, so they are the
	// same task.
	require.NoError(t, task.Signal(syscall.SIGINT))
	assert.False(t, other.Health().Exists)
}

func TestCreate(t *testing.T) {
	url := rootfsURL(t)

	task, err := Create(url, []string{"sleep", "5"}, t.TempDir())
	require.NoError(t, err)
	defer task.Signal(syscall.SIGKILL)

	require.Eventually(t, func() bool {
		h := task.Health()
		return h.Exists && h.Status == StatusSleeping
	}, 3*time.Second, 50*time.Millisecond)
}

func TestCreate_SendSignal(t *testing.T) {
	url := rootfsURL(t)

	task, err := Create(url, []string{"sleep", "5"}, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, task.Signal(syscall.SIGINT))
	assert.Equal(t, Health{}, task.Health())
}

func TestCreate_AttachExisting(t *testing.T) {
	url := rootfsURL(t)

	task, err := Create(url, []string{"sleep", "5"}, t.TempDir())
	require.NoError(t, err)

	other := Attach(task.ID)
	require.NoError(t, task.Signal(syscall.SIGINT))
	assert.False(t, other.Health().Exists)
}

func TestCreate_WritesInsideRoot(t *testing.T) {
	url := rootfsURL(t)

	task, err := Create(url, []string{"touch", "/example.txt"}, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, task.Process().Wait())

	// The file the task created at / lives inside the extraction dir.
	_, err = os.Stat(filepath.Join(task.Root, "example.txt"))
	assert.NoError(t, err)
}

func TestCreate_DefaultCapture(t *testing.T) {
	url := rootfsURL(t)

	task, err := Create(url, []string{"echo", "1"}, t.TempDir())
	require.NoError(t, err)

	out, err := io.ReadAll(task.Process().Stdout())
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(out))
}

func TestCreate_CustomIO(t *testing.T) {
	url := rootfsURL(t)
	dir := t.TempDir()

	stdout, err := os.Create(filepath.Join(dir, "output.txt"))
	require.NoError(t, err)
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(dir, "err.txt"))
	require.NoError(t, err)
	defer stderr.Close()

	outTask, err := Create(url, []string{"echo", "1"}, t.TempDir(),
		jail.WithStdout(stdout), jail.WithStderr(stderr))
	require.NoError(t, err)
	require.NoError(t, outTask.Process().Wait())

	errTask, err := Create(url, []string{"sleep", "a"}, t.TempDir(),
		jail.WithStdout(stdout), jail.WithStderr(stderr))
	require.NoError(t, err)
	errTask.Process().Wait() // exits nonzero

	outContent, err := os.ReadFile(filepath.Join(dir, "output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(outContent))

	errContent, err := os.ReadFile(filepath.Join(dir, "err.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(errContent), "invalid number")

	assert.Nil(t, outTask.Process().Stdout(), "custom sink replaces the capture")
}
