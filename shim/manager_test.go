package shim

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MarcinKonowalczyk/tapebf/utils"
)

func TestManager_Info(t *testing.T) {
	m := NewManager(RuntimeName)
	utils.AssertEqual(t, m.Name(), RuntimeName)

	info, err := m.Info(context.Background(), nil)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, info.Name, RuntimeName)
	utils.AssertEqual(t, info.Version.Version, Version)
}

func TestManager_StopWithoutPidFile(t *testing.T) {
	_, err := NewManager(RuntimeName).Stop(context.Background(), "no-such-task")
	utils.AssertError(t, err)
}

func TestPidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), initPidFile)
	utils.AssertNoError(t, writePidFile(path, 4242))

	pid, err := readPidFile(path)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, pid, 4242)

	stat, err := os.Stat(path)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, stat.Mode().Perm(), os.FileMode(0644))

	utils.Assert(t, processAlive(os.Getpid()), "own process is not alive")
}
