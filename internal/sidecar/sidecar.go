// Package sidecar supervises the external WebDAV bridge process. It
// owns the single tracked PID, dispatches the sidecar's subcommands
// (start, stop, status, auth, config) and streams the running
// instance's output as log events.
package sidecar

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/davbridge/davbridge/internal/cmderr"
	"github.com/davbridge/davbridge/internal/events"
	"github.com/davbridge/davbridge/internal/metrics"
)

// DefaultBinary is the sidecar executable name looked up on PATH when
// no explicit path is configured.
const DefaultBinary = "webdav-bridge"

// Supervisor tracks at most one running sidecar instance. The tracked
// PID is not a liveness guarantee: if the sidecar dies without its exit
// being observed here, Start keeps failing with AlreadyRunning until
// Stop or a termination event clears the state.
type Supervisor struct {
	mu       sync.Mutex
	pid      int  // 0 when no instance is tracked
	starting bool // reserves the slot while a spawn is in flight

	bin string
	bus *events.Bus
}

// New returns a Supervisor dispatching to the given binary path or
// name. An empty bin falls back to DefaultBinary on PATH.
func New(bin string, bus *events.Bus) *Supervisor {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Supervisor{bin: bin, bus: bus}
}

// Bus returns the event bus the supervisor emits on.
func (s *Supervisor) Bus() *events.Bus { return s.bus }

// PID returns the tracked sidecar PID, if any.
func (s *Supervisor) PID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid, s.pid != 0
}

// Binary resolves the sidecar executable. Explicit paths are checked
// for existence; bare names are resolved via PATH.
func (s *Supervisor) Binary() (string, error) {
	bin := s.bin
	if bin == "" {
		bin = DefaultBinary
	}
	if strings.ContainsRune(bin, os.PathSeparator) {
		if _, err := os.Stat(bin); err != nil {
			return "", fmt.Errorf("sidecar binary %s: %w", bin, err)
		}
		return bin, nil
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("sidecar binary %s: %w", bin, err)
	}
	return path, nil
}

// Start spawns the sidecar in foreground mode and begins streaming its
// output. port 0 keeps the sidecar's configured port. The PID lock is
// never held across the spawn itself.
func (s *Supervisor) Start(ctx context.Context, port int) (int, error) {
	if port != 0 && (port < 1 || port > 65535) {
		return 0, cmderr.Newf(cmderr.CodeInvalidPort, "%d is outside 1-65535", port)
	}

	s.mu.Lock()
	if s.pid != 0 || s.starting {
		pid := s.pid
		s.mu.Unlock()
		return 0, cmderr.Newf(cmderr.CodeSidecarAlreadyRunning, "tracked pid %d", pid)
	}
	s.starting = true
	s.mu.Unlock()

	pid, err := s.spawn(port)

	s.mu.Lock()
	s.starting = false
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	metrics.IncStart()
	slog.Info("sidecar started", "pid", pid, "port", port)
	return pid, nil
}

// spawn is not cancellable once dispatched; the instance outlives the
// Start call.
func (s *Supervisor) spawn(port int) (int, error) {
	bin, err := s.Binary()
	if err != nil {
		return 0, cmderr.Wrap(cmderr.CodeSidecarSpawnFailed, err)
	}

	args := []string{"start"}
	if port != 0 {
		args = append(args, "--port", strconv.Itoa(port))
	}
	// Foreground, non-interactive: output stays capturable and the
	// sidecar never prompts for credentials.
	args = append(args, "--no-auth", "--no-daemon")

	cmd := exec.Command(bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, cmderr.Wrap(cmderr.CodeSidecarSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, cmderr.Wrap(cmderr.CodeSidecarSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return 0, cmderr.Wrap(cmderr.CodeSidecarSpawnFailed, err)
	}

	pid := cmd.Process.Pid
	// The PID must be tracked before the monitor starts: a fast exit
	// has to find it there to clear it.
	s.mu.Lock()
	s.pid = pid
	s.mu.Unlock()
	go s.monitor(cmd, pid, stdout, stderr)
	return pid, nil
}

// monitor consumes the instance's output until both streams close,
// reaps the process and emits the termination event. It runs without
// the PID lock for its whole lifetime.
func (s *Supervisor) monitor(cmd *exec.Cmd, pid int, stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.stream(stdout, "info")
	}()
	go func() {
		defer wg.Done()
		s.stream(stderr, "error")
	}()
	wg.Wait()

	err := cmd.Wait()
	code := cmd.ProcessState.ExitCode()

	payload := events.TerminatedPayload{PID: pid, ExitCode: code}
	if err != nil {
		payload.Error = err.Error()
	}
	s.bus.Emit(events.SidecarTerminated, payload)
	metrics.IncTermination()
	slog.Info("sidecar terminated", "pid", pid, "exit_code", code)

	// Clear the tracked PID only if it still belongs to this instance.
	s.mu.Lock()
	if s.pid == pid {
		s.pid = 0
	}
	s.mu.Unlock()
}

func (s *Supervisor) stream(r io.Reader, level string) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		s.bus.Emit(events.SidecarLog, events.LogPayload{Level: level, Message: line})
		if level == "error" {
			slog.Error(line, "component", "sidecar")
		} else {
			slog.Info(line, "component", "sidecar")
		}
	}
}

// Stop asks the sidecar to shut down and waits for the stop command to
// exit. On success the tracked PID is cleared; on failure it is left
// untouched since it may still be accurate.
func (s *Supervisor) Stop(ctx context.Context) error {
	_, stderr, err := s.run(ctx, "stop")
	if err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return cmderr.New(cmderr.CodeSidecarCommandFailed, detail)
	}

	s.mu.Lock()
	s.pid = 0
	s.mu.Unlock()
	metrics.IncStop()
	slog.Info("sidecar stopped")
	return nil
}

// RestartWithPort stops the current instance (best effort; it may
// already be gone) and starts a new one on the given port.
func (s *Supervisor) RestartWithPort(ctx context.Context, port int) error {
	if err := s.Stop(ctx); err != nil {
		slog.Warn("stop before restart failed", "error", err)
	}
	if _, err := s.Start(ctx, port); err != nil {
		return err
	}
	metrics.IncRestart()
	return nil
}

// Login initiates sidecar authentication for the given account.
func (s *Supervisor) Login(ctx context.Context, email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return cmderr.New(cmderr.CodeInvalidEmail, email)
	}
	_, stderr, err := s.run(ctx, "auth", "login", "--username", email)
	if err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return cmderr.New(cmderr.CodeAuthFailed, detail)
	}
	return nil
}

// Logout stops the sidecar first (best effort) and clears its stored
// credentials.
func (s *Supervisor) Logout(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		slog.Warn("stop before logout failed", "error", err)
	}
	_, stderr, err := s.run(ctx, "auth", "--logout")
	if err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return cmderr.New(cmderr.CodeSidecarCommandFailed, detail)
	}
	return nil
}

// PurgeCache clears the sidecar's on-disk cache.
func (s *Supervisor) PurgeCache(ctx context.Context) error {
	_, stderr, err := s.run(ctx, "config", "--purge-cache")
	if err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return cmderr.New(cmderr.CodeSidecarCommandFailed, detail)
	}
	return nil
}

// Run dispatches a one-shot sidecar invocation and returns its output.
func (s *Supervisor) Run(ctx context.Context, args ...string) (string, string, error) {
	return s.run(ctx, args...)
}

func (s *Supervisor) run(ctx context.Context, args ...string) (string, string, error) {
	bin, err := s.Binary()
	if err != nil {
		return "", "", err
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	return stdout.String(), stderr.String(), err
}
