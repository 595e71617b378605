package engine

import (
	"bytes"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/xiaoyuanzhu-com/sessiond/log"
)

// InvokeRequest describes one external-tool invocation against a session.
type InvokeRequest struct {
	SessionID  string
	Prompt     string
	WorkingDir string
	Resume     bool
}

// InvokeResult is the outcome delivered to the caller's completion callback.
// Failures are values, never panics: Err is ErrInvokeTimeout when the timer
// won the race.
type InvokeResult struct {
	SessionID string
	Output    []byte
	Err       error
}

// OnDone receives the invocation outcome exactly once.
type OnDone func(InvokeResult)

// processEntry tracks one live external process for cancellation.
type processEntry struct {
	cmd  *exec.Cmd
	done chan struct{} // closed when the worker's Wait returns
}

// Supervisor spawns, tracks and forcibly terminates external-tool processes.
// Each in-flight invocation runs on its own worker goroutine raced against a
// timer; the live process handle is registered for Kill while it runs.
type Supervisor struct {
	mu    sync.Mutex
	procs map[string]*processEntry

	binary string
	grace  time.Duration

	// newCommand is injectable so tests can substitute a harmless command.
	newCommand func(req InvokeRequest) *exec.Cmd

	wg sync.WaitGroup
}

// NewSupervisor creates a supervisor invoking the given tool binary.
func NewSupervisor(binary string, grace time.Duration) *Supervisor {
	s := &Supervisor{
		procs:  make(map[string]*processEntry),
		binary: binary,
		grace:  grace,
	}
	s.newCommand = s.buildCommand
	return s
}

// buildCommand constructs the external-tool command line for a request.
func (s *Supervisor) buildCommand(req InvokeRequest) *exec.Cmd {
	args := []string{"--print", "--output-format", "json"}
	if req.Resume {
		args = append(args, "--resume", req.SessionID)
	} else {
		args = append(args, "--session-id", req.SessionID)
	}
	args = append(args, req.Prompt)

	cmd := exec.Command(s.binary, args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	return cmd
}

// InvokeAsync launches the invocation on a background worker and races it
// against a timer of length timeout. If the worker wins, onDone receives its
// result; if the timer wins, the process is destroyed and onDone receives
// ErrInvokeTimeout. onDone is called exactly once, from a supervisor
// goroutine.
func (s *Supervisor) InvokeAsync(req InvokeRequest, onDone OnDone, timeout time.Duration) {
	// Buffered so an abandoned worker's send never blocks.
	resultCh := make(chan InvokeResult, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		resultCh <- s.runWorker(req)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result, ok := race(resultCh, timeout)
		if !ok {
			log.Warn().Str("sessionId", req.SessionID).Dur("timeout", timeout).Msg("invocation timed out, destroying process")
			if err := s.Kill(req.SessionID); err != nil {
				log.Error().Err(err).Str("sessionId", req.SessionID).Msg("failed to kill timed-out process")
			}
			result = InvokeResult{SessionID: req.SessionID, Err: ErrInvokeTimeout}
		}
		onDone(result)
	}()
}

// runWorker executes the command, tracking the live process for the duration.
func (s *Supervisor) runWorker(req InvokeRequest) InvokeResult {
	cmd := s.newCommand(req)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		log.Error().Err(err).Str("sessionId", req.SessionID).Msg("failed to spawn external tool")
		return InvokeResult{SessionID: req.SessionID, Err: err}
	}

	entry := &processEntry{cmd: cmd, done: make(chan struct{})}
	s.track(req.SessionID, entry)

	err := cmd.Wait()
	close(entry.done)
	s.untrack(req.SessionID, entry)

	log.Debug().Str("sessionId", req.SessionID).Int("bytes", output.Len()).Err(err).Msg("external tool finished")
	return InvokeResult{SessionID: req.SessionID, Output: output.Bytes(), Err: err}
}

// Kill terminates the session's live process: SIGINT first, a grace period,
// then SIGKILL if it is still alive. Killing with no active process is
// success, not an error.
func (s *Supervisor) Kill(sessionID string) error {
	s.mu.Lock()
	entry, ok := s.procs[sessionID]
	if ok {
		delete(s.procs, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		// Nothing to kill.
		return nil
	}

	proc := entry.cmd.Process
	if proc == nil {
		return nil
	}

	// The tool is a Node.js CLI: it handles SIGINT but ignores SIGTERM.
	if err := proc.Signal(syscall.SIGINT); err != nil {
		// Process might already be dead, force kill to be sure.
		proc.Kill()
		return nil
	}

	select {
	case <-entry.done:
		return nil
	case <-time.After(s.grace):
		log.Warn().Int("pid", proc.Pid).Str("sessionId", sessionID).Msg("process didn't exit gracefully, sending SIGKILL")
		return proc.Kill()
	}
}

// IsRunning reports whether the session has a live tracked process.
func (s *Supervisor) IsRunning(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[sessionID]
	return ok
}

// Shutdown kills every tracked process and waits for workers to drain.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.Kill(id); err != nil {
			log.Warn().Err(err).Str("sessionId", id).Msg("failed to kill process during shutdown")
		}
	}
	s.wg.Wait()
}

func (s *Supervisor) track(sessionID string, entry *processEntry) {
	s.mu.Lock()
	s.procs[sessionID] = entry
	s.mu.Unlock()
}

// untrack removes the entry unless Kill already did.
func (s *Supervisor) untrack(sessionID string, entry *processEntry) {
	s.mu.Lock()
	if current, ok := s.procs[sessionID]; ok && current == entry {
		delete(s.procs, sessionID)
	}
	s.mu.Unlock()
}
