// SPDX-License-Identifier: MPL-2.0

package serve

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"

	"mvdan.cc/sh/v3/shell"
)

type (
	// Process is a running served command. Wait is called exactly once, by
	// the supervisor, and returns when the process has exited.
	Process interface {
		Kill() error
		Wait() error
	}

	// Spawner starts served processes.
	Spawner interface {
		Spawn(entry string, args []string) (Process, error)
	}

	// ExecSpawner runs the entry file through an interpreter as a child
	// process sharing the terminal.
	ExecSpawner struct {
		// Interpreter is split into words with shell quoting rules and
		// $VAR expansion. When empty the entry file is executed directly.
		Interpreter string
		// Dir is the working directory of the child.
		Dir    string
		Stdout io.Writer
		Stderr io.Writer
		Env    []string
	}

	// ServedProcess is the Process started by ExecSpawner.
	ServedProcess struct {
		CommandPath string
		Args        []string

		cmd *exec.Cmd
	}
)

// Command resolves the argv used to serve entry.
func (s *ExecSpawner) Command(entry string, args []string) ([]string, error) {
	words, err := shell.Fields(s.Interpreter, nil)
	if err != nil {
		return nil, fmt.Errorf("parse interpreter %q: %w", s.Interpreter, err)
	}
	return slices.Concat(words, []string{entry}, args), nil
}

// Spawn starts entry and returns without waiting for it.
func (s *ExecSpawner) Spawn(entry string, args []string) (Process, error) {
	argv, err := s.Command(entry, args)
	if err != nil {
		return nil, err
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", argv[0], err)
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Dir = s.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = writerOr(s.Stdout, os.Stdout)
	cmd.Stderr = writerOr(s.Stderr, os.Stderr)
	if s.Env != nil {
		cmd.Env = s.Env
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	return &ServedProcess{CommandPath: path, Args: argv[1:], cmd: cmd}, nil
}

// Kill terminates the process. Killing a process that already exited is
// not an error.
func (p *ServedProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *ServedProcess) Wait() error {
	return p.cmd.Wait()
}

// Pid returns the operating system process id.
func (p *ServedProcess) Pid() int {
	return p.cmd.Process.Pid
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
