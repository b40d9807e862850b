package shim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/containerd/errdefs"
)

const configFilename = "config.json"

// startStoppedScript parks the interpreter until the task is started.
const startStoppedScript = `
#!/bin/sh
kill -STOP $$
exec "$@"
`

type ociRoot struct {
	// Path is the path to the rootfs, absolute or relative to the bundle
	Path string `json:"path"`
}

type ociProcess struct {
	// Args is the command to run
	Args []string `json:"args"`
	// Env is the environment of the interpreter. RUNBF_* variables configure it.
	Env []string `json:"env"`
}

type ociSpec struct {
	Root    ociRoot    `json:"root"`
	Process ociProcess `json:"process"`
}

// Bundle is the part of an OCI bundle a brainfuck task needs.
type Bundle struct {
	Dir        string
	Root       string
	Entrypoint string
	Env        []string
}

// ReadBundle reads config.json from the bundle directory. The process must
// have a single argument naming a .bf script inside the rootfs.
func ReadBundle(dir string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found: %w", configFilename, errdefs.ErrNotFound)
		}
		return nil, err
	}

	var spec ociSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %v: %w", configFilename, err, errdefs.ErrInvalidArgument)
	}

	if spec.Root.Path == "" {
		return nil, fmt.Errorf("root path not found in config file %s: %w", configFilename, errdefs.ErrInvalidArgument)
	}
	root := spec.Root.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}

	if len(spec.Process.Args) != 1 {
		return nil, fmt.Errorf("incorrect number of args in the CMD. Expected 1, got %d: %w", len(spec.Process.Args), errdefs.ErrInvalidArgument)
	}

	entrypoint := spec.Process.Args[0]
	if ext := filepath.Ext(entrypoint); ext != ".bf" && ext != ".brainfuck" {
		return nil, fmt.Errorf("entry point (%s) is not a .bf file: %w", entrypoint, errdefs.ErrInvalidArgument)
	}

	script := filepath.Join(root, entrypoint)
	if _, err := os.Stat(script); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %s does not exist: %w", entrypoint, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("checking script %s: %w", entrypoint, err)
	}

	return &Bundle{
		Dir:        dir,
		Root:       root,
		Entrypoint: entrypoint,
		Env:        spec.Process.Env,
	}, nil
}

func (b *Bundle) Script() string {
	return filepath.Join(b.Root, b.Entrypoint)
}

// Command builds the task process: self re-executed as the interpreter on
// the bundle script, suspended until the task service resumes it.
func (b *Bundle) Command(ctx context.Context, self string) (*exec.Cmd, error) {
	script := filepath.Join(b.Dir, "start-stopped.sh")
	if err := os.WriteFile(script, []byte(startStoppedScript), 0755); err != nil {
		return nil, fmt.Errorf("writing %s: %w", filepath.Base(script), err)
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", script, self, InterpreterCommand, "--file", b.Script(), "--crlf")
	if len(b.Env) > 0 {
		cmd.Env = b.Env
	}
	return cmd, nil
}
