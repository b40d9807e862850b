package shim

import (
	"context"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/MarcinKonowalczyk/tapebf/utils"
)

func TestExitStatus(t *testing.T) {
	utils.AssertEqual(t, exitStatus(nil), unknownExitStatus)

	cmd := exec.Command("/bin/sh", "-c", "exit 134")
	_ = cmd.Run()
	utils.AssertEqual(t, exitStatus(cmd.ProcessState), 134)

	cmd = exec.Command("/bin/sh", "-c", "kill -KILL $$")
	_ = cmd.Run()
	utils.AssertEqual(t, exitStatus(cmd.ProcessState), exitCodeSignal+9)
}

func TestWaitSuspended(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 0.05; kill -STOP $$; exit 7")
	utils.AssertNoError(t, cmd.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	utils.AssertNoError(t, waitSuspended(ctx, cmd.Process.Pid))

	state, err := procState(cmd.Process.Pid)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, state, byte('T'))

	utils.AssertNoError(t, syscall.Kill(cmd.Process.Pid, syscall.SIGCONT))
	_ = cmd.Wait()
	utils.AssertEqual(t, exitStatus(cmd.ProcessState), 7)
}

func TestWaitSuspended_Running(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 5")
	utils.AssertNoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	utils.AssertErrorIs(t, waitSuspended(ctx, cmd.Process.Pid), context.DeadlineExceeded)
}
