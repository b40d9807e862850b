package shim_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"

	"github.com/MarcinKonowalczyk/tapebf/shim"
	"github.com/MarcinKonowalczyk/tapebf/utils"
)

// writeBundle lays out a bundle with a rootfs holding hello.bf.
func writeBundle(t *testing.T, spec map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	rootfs := filepath.Join(dir, "rootfs")
	utils.AssertNoError(t, os.MkdirAll(rootfs, 0755))
	utils.AssertNoError(t, os.WriteFile(filepath.Join(rootfs, "hello.bf"), []byte("+."), 0644))

	data, err := json.Marshal(spec)
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))
	return dir
}

func spec(root string, args []string, env []string) map[string]any {
	return map[string]any{
		"root":    map[string]any{"path": root},
		"process": map[string]any{"args": args, "env": env},
	}
}

func TestReadBundle(t *testing.T) {
	env := []string{"PATH=/usr/bin", "RUNBF_EOF=zero"}
	dir := writeBundle(t, spec("rootfs", []string{"hello.bf"}, env))

	bundle, err := shim.ReadBundle(dir)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, bundle.Root, filepath.Join(dir, "rootfs"))
	utils.AssertEqual(t, bundle.Entrypoint, "hello.bf")
	utils.AssertEqual(t, bundle.Script(), filepath.Join(dir, "rootfs", "hello.bf"))
	utils.AssertEqualArrays(t, bundle.Env, env)
}

func TestReadBundle_AbsoluteRoot(t *testing.T) {
	dir := writeBundle(t, nil)
	utils.AssertNoError(t, os.Remove(filepath.Join(dir, "config.json")))
	data, err := json.Marshal(spec(filepath.Join(dir, "rootfs"), []string{"hello.bf"}, nil))
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))

	bundle, err := shim.ReadBundle(dir)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, bundle.Root, filepath.Join(dir, "rootfs"))
}

func TestReadBundle_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec map[string]any
		want error
	}{
		{"no root", spec("", []string{"hello.bf"}, nil), errdefs.ErrInvalidArgument},
		{"no args", spec("rootfs", nil, nil), errdefs.ErrInvalidArgument},
		{"two args", spec("rootfs", []string{"hello.bf", "x"}, nil), errdefs.ErrInvalidArgument},
		{"not bf", spec("rootfs", []string{"hello.sh"}, nil), errdefs.ErrInvalidArgument},
		{"missing script", spec("rootfs", []string{"bye.bf"}, nil), errdefs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shim.ReadBundle(writeBundle(t, tt.spec))
			utils.AssertErrorIs(t, err, tt.want)
		})
	}
}

func TestReadBundle_NoConfig(t *testing.T) {
	_, err := shim.ReadBundle(t.TempDir())
	utils.AssertErrorIs(t, err, errdefs.ErrNotFound)
}

func TestReadBundle_BadJSON(t *testing.T) {
	dir := t.TempDir()
	utils.AssertNoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644))
	_, err := shim.ReadBundle(dir)
	utils.AssertErrorIs(t, err, errdefs.ErrInvalidArgument)
}

func TestBundle_Command(t *testing.T) {
	env := []string{"RUNBF_EOF=halt"}
	dir := writeBundle(t, spec("rootfs", []string{"hello.bf"}, env))
	bundle, err := shim.ReadBundle(dir)
	utils.AssertNoError(t, err)

	cmd, err := bundle.Command(context.Background(), "/usr/bin/shim")
	utils.AssertNoError(t, err)
	utils.AssertEqualArrays(t, cmd.Args, []string{
		"/bin/sh",
		filepath.Join(dir, "start-stopped.sh"),
		"/usr/bin/shim",
		shim.InterpreterCommand,
		"--file",
		bundle.Script(),
		"--crlf",
	})
	utils.AssertEqualArrays(t, cmd.Env, env)

	_, err = os.Stat(filepath.Join(dir, "start-stopped.sh"))
	utils.AssertNoError(t, err)
}
