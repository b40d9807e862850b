package shim

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"syscall"
	"time"
)

// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html#tag_18_21_18
const exitCodeSignal = 128

// unknownExitStatus is reported when the process state could not be read.
const unknownExitStatus = 255

// exitStatus converts the state of a finished interpreter into the status
// containerd reports. The interpreter exits 134 on an unmatched ']' or an
// exhausted tape, and shells report signals as 128+n.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return unknownExitStatus
	}
	if state.Exited() {
		return state.ExitCode()
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return exitCodeSignal + int(ws.Signal())
	}
	return unknownExitStatus
}

// procState reads the one letter scheduler state of pid from procfs.
func procState(pid int) (byte, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	// the command name is parenthesised and may itself contain ')'
	i := bytes.LastIndexByte(data, ')')
	if i < 0 || i+2 >= len(data) {
		return 0, fmt.Errorf("malformed stat of process %d", pid)
	}
	return data[i+2], nil
}

// waitSuspended blocks until pid has stopped itself or exited. A SIGCONT
// sent before the start-stopped script reaches `kill -STOP` is lost and
// leaves the task parked forever.
func waitSuspended(ctx context.Context, pid int) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		state, err := procState(pid)
		if err != nil {
			return err
		}
		switch state {
		case 'T', 't', 'Z', 'X':
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
