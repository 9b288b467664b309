// Command tasker creates and interacts with tasks: processes running in
// a chroot jail built from a downloaded filesystem image.
package main

import (
	"fmt"
	"os"
	"strconv"

	shellwords "github.com/mattn/go-shellwords"
	mobysignal "github.com/moby/sys/signal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamtheturtle/giant-swarm-chroot-task/jail"
	"github.com/adamtheturtle/giant-swarm-chroot-task/task"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:           "tasker",
		Short:         "Run and supervise processes jailed to a downloaded filesystem image",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(newCreateCmd(), newHealthCmd(), newSignalCmd())
	return root
}

func newCreateCmd() *cobra.Command {
	var (
		staging    string
		stdoutPath string
		stderrPath string
	)
	cmd := &cobra.Command{
		Use:   "create <image-url> <command>",
		Short: "Create a task from an image URL and a shell command",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			argv, err := shellwords.Parse(args[1])
			if err != nil {
				return err
			}

			var opts []jail.Option
			if stdoutPath != "" {
				f, err := os.Create(stdoutPath)
				if err != nil {
					return err
				}
				defer f.Close()
				opts = append(opts, jail.WithStdout(f))
			}
			if stderrPath != "" {
				f, err := os.Create(stderrPath)
				if err != nil {
					return err
				}
				defer f.Close()
				opts = append(opts, jail.WithStderr(f))
			}

			t, err := task.Create(args[0], argv, staging, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&staging, "staging", os.TempDir(), "directory to download and extract images into")
	cmd.Flags().StringVar(&stdoutPath, "stdout", "", "file to receive the task's standard output")
	cmd.Flags().StringVar(&stderrPath, "stderr", "", "file to receive the task's standard error")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health <pid>",
		Short: "Report whether a task's process exists and its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q", args[0])
			}
			h := task.Attach(pid).Health()
			if !h.Exists {
				fmt.Fprintln(cmd.OutOrStdout(), "exists=false")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exists=true status=%s\n", h.Status)
			return nil
		},
	}
}

func newSignalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signal <pid> <signal>",
		Short: "Send a signal to a task's process and reap it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q", args[0])
			}
			sig, err := mobysignal.ParseSignal(args[1])
			if err != nil {
				return err
			}
			return task.Attach(pid).Signal(sig)
		},
	}
}
