package shim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/containerd/fifo"
)

func openFifo(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error) {
	ok, err := fifo.IsFifo(path)
	if err != nil {
		return nil, fmt.Errorf("checking whether file %s is a fifo: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("file %s is not a fifo", path)
	}
	f, err := fifo.OpenFifo(ctx, path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return f, nil
}

// taskIO is the set of fifos one interpreter writes to and reads from.
// Closing the writers is what lets containerd see EOF on the task output.
type taskIO struct {
	fifos []io.Closer
}

func (t *taskIO) open(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error) {
	f, err := openFifo(ctx, path, flag)
	if err != nil {
		return nil, err
	}
	t.fifos = append(t.fifos, f)
	return f, nil
}

func (t *taskIO) Close() error {
	var errs []error
	for _, f := range t.fifos {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.fifos = nil
	return errors.Join(errs...)
}

// attachStdio connects the interpreter's standard streams to the fifos
// containerd created for the task. exec copies between the fifos and the
// process, and cmd.Wait returns once the output copies are done. Empty paths
// leave a stream detached, so the interpreter sees EOF on ',' and its output
// is dropped. The caller closes the returned fifos after cmd.Wait.
func attachStdio(ctx context.Context, cmd *exec.Cmd, stdin, stdout, stderr string) (_ *taskIO, retErr error) {
	tio := &taskIO{}
	defer func() {
		if retErr != nil {
			tio.Close()
		}
	}()

	if stdin != "" {
		fr, err := tio.open(ctx, stdin, syscall.O_RDONLY)
		if err != nil {
			return nil, err
		}
		cmd.Stdin = fr
	}

	if stdout != "" {
		fw, err := tio.open(ctx, stdout, syscall.O_WRONLY)
		if err != nil {
			return nil, err
		}
		cmd.Stdout = fw
	}

	switch {
	case stderr == "" || stderr == stdout:
		// diagnostics share the stdout fifo
		cmd.Stderr = cmd.Stdout
	default:
		fe, err := tio.open(ctx, stderr, syscall.O_WRONLY)
		if err != nil {
			return nil, err
		}
		cmd.Stderr = fe
	}
	return tio, nil
}
