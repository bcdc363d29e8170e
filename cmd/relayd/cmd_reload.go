package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var reloadPID int

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "send SIGHUP to a running relayd process to re-run the reconfiguration engine",
	RunE:  runReload,
}

func init() {
	reloadCmd.Flags().IntVar(&reloadPID, "pid", 0, "PID of the running relayd process (defaults to reading --pid-file's path)")
	reloadCmd.Flags().String("pid-file", filepath.Join(os.TempDir(), "relayd.pid"), "path `serve` wrote its PID to, used when --pid is not given")
	rootCmd.AddCommand(reloadCmd)
}

func runReload(cmd *cobra.Command, args []string) error {
	pid := reloadPID
	if pid == 0 {
		pidFile, _ := cmd.Flags().GetString("pid-file")
		p, err := readPIDFile(pidFile)
		if err != nil {
			return fmt.Errorf("resolve pid: %w", err)
		}
		pid = p
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	fmt.Printf("sent SIGHUP to pid %d\n", pid)
	return nil
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}
