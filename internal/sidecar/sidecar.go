// Package sidecar launches the bundled backend executable as a child process
// and turns its output into an ordered stream of events.
//
// The supervisor owns the child handle. It never restarts the process: once
// the child terminates the handle is released and stays absent.
package sidecar

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

// eventBuffer bounds how far the output readers may run ahead of the consumer.
const eventBuffer = 128

// ErrNotFound is returned when no sidecar executable exists for the current
// platform.
var ErrNotFound = errors.New("sidecar executable not found")

// Config describes which executable to run and the environment it receives.
type Config struct {
	// Name is the base name of the bundled executable, e.g. "server".
	Name string
	// Dir is searched before the default locations. Optional.
	Dir string
	// Path skips lookup entirely when set.
	Path string
	// Args are passed to the executable.
	Args []string
	// Debug is the value of GODEBUG for the sidecar.
	Debug string
	// Mode is the value of GIN_MODE for the sidecar.
	Mode string
}

// Env returns the fixed variables added to the sidecar's environment.
func (c Config) Env() []string {
	return []string{
		EnvPlatform + "=" + Platform(),
		EnvFamily + "=" + Family(),
		EnvDebug + "=" + c.Debug,
		EnvMode + "=" + c.Mode,
	}
}

// Locate finds the executable for name. Each search directory is tried with
// the target-triple file name first, then the plain name.
func Locate(name, dir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrNotFound)
	}
	names := []string{
		name + "-" + TargetTriple() + exeSuffix(),
		name + exeSuffix(),
	}
	dirs := searchDirs(dir)
	for _, d := range dirs {
		for _, n := range names {
			p := filepath.Join(d, n)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s (searched %v)", ErrNotFound, names[0], dirs)
}

func searchDirs(dir string) []string {
	var dirs []string
	if dir != "" {
		dirs = append(dirs, dir)
	}
	exe, err := os.Executable()
	if err != nil {
		return dirs
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	exeDir := filepath.Dir(exe)
	dirs = append(dirs, exeDir)
	if runtime.GOOS == "darwin" {
		dirs = append(dirs, filepath.Join(exeDir, "..", "Resources"))
	}
	return dirs
}

// Supervisor owns the sidecar child process.
type Supervisor struct {
	cfg Config

	mu    sync.Mutex
	child *os.Process
	pid   int
}

// New returns a Supervisor for cfg. Nothing is started until Start.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Start spawns the sidecar and returns its event stream. The stream yields
// stdout and stderr lines as they arrive, then exactly one EventTerminated,
// and is then closed. Cancelling ctx kills the process.
//
// Start may only be called once.
func (s *Supervisor) Start(ctx context.Context) (<-chan Event, error) {
	path := s.cfg.Path
	if path == "" {
		var err error
		path, err = Locate(s.cfg.Name, s.cfg.Dir)
		if err != nil {
			return nil, err
		}
	}

	cmd := exec.CommandContext(ctx, path, s.cfg.Args...)
	cmd.Env = append(os.Environ(), s.cfg.Env()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	slog.Info("spawning sidecar", "path", path)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", path, err)
	}

	s.mu.Lock()
	s.child = cmd.Process
	s.pid = cmd.Process.Pid
	s.mu.Unlock()
	slog.Info("sidecar spawned", "pid", cmd.Process.Pid)

	events := make(chan Event, eventBuffer)
	go pump(cmd, stdout, stderr, events)
	return events, nil
}

// PID returns the process id of the running child and whether a child is
// currently held.
func (s *Supervisor) PID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil {
		return 0, false
	}
	return s.pid, true
}

// Running reports whether the child handle is still held.
func (s *Supervisor) Running() bool {
	_, ok := s.PID()
	return ok
}

// Release drops the child handle after termination has been observed.
// It reports whether a handle was held; calling it again is a no-op.
func (s *Supervisor) Release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child == nil {
		return false
	}
	s.child = nil
	return true
}

// Kill terminates the child if it is still held. The handle itself is
// released by the watcher once the termination event arrives.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	p := s.child
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill sidecar: %w", err)
	}
	return nil
}

// pump reads both output streams to completion, then reaps the process.
// Wait must not run before the readers finish, since it closes the pipes.
func pump(cmd *exec.Cmd, stdout, stderr io.Reader, events chan<- Event) {
	defer close(events)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		readLines(stdout, EventStdout, events)
	}()
	go func() {
		defer wg.Done()
		readLines(stderr, EventStderr, events)
	}()
	wg.Wait()

	events <- Event{Kind: EventTerminated, Status: exitStatus(cmd, cmd.Wait())}
}

func readLines(r io.Reader, kind EventKind, events chan<- Event) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			events <- Event{Kind: kind, Line: line}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				events <- Event{Kind: EventError, Err: fmt.Errorf("%s: %w", kind, err)}
			}
			return
		}
	}
}

func exitStatus(cmd *exec.Cmd, err error) ExitStatus {
	if ps := cmd.ProcessState; ps != nil {
		return ExitStatus{Code: ps.ExitCode(), Desc: ps.String()}
	}
	if err != nil {
		return ExitStatus{Code: -1, Desc: err.Error()}
	}
	return ExitStatus{Code: -1, Desc: "unknown"}
}
