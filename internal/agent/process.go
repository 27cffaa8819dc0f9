package agent

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a handle to a directly spawned agent writing to an output
// file. It exists for the interactive path, where a human may force-kill
// the agent mid-run.
type Process struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	output   *os.File
	running  bool
	exitCode int
	done     chan struct{}
	grace    time.Duration
}

// Spawn starts the agent binary with the prompt, redirecting stdout and
// stderr to outputPath. The prompt is saved alongside the output.
func Spawn(binary, prompt, outputPath, cwd string, skipPermissions bool, grace time.Duration) (*Process, error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}

	args := []string{"--print"}
	if skipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	args = append(args, "-p", prompt)

	cmd := exec.Command(binary, args...)
	cmd.Dir = cwd
	cmd.Stdout = f
	cmd.Stderr = f
	cmd.Env = append(os.Environ(), "CI=1")

	if err := cmd.Start(); err != nil {
		f.Close()
		return nil, fmt.Errorf("starting %s: %w", binary, err)
	}

	p := &Process{
		cmd:      cmd,
		output:   f,
		running:  true,
		exitCode: -1,
		done:     make(chan struct{}),
		grace:    grace,
	}

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.running = false
		if err == nil {
			p.exitCode = 0
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			p.exitCode = exitErr.ExitCode()
		} else {
			p.exitCode = 1
		}
		p.output.Close()
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

// Kill terminates the agent: SIGTERM first, SIGKILL after the grace period
// if it has not exited.
func (p *Process) Kill() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	proc := p.cmd.Process
	p.mu.Unlock()

	_ = proc.Signal(syscall.SIGTERM)

	select {
	case <-p.done:
	case <-time.After(p.grace):
		_ = proc.Kill()
		<-p.done
	}
}

// Running reports whether the agent process is still alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ExitCode returns the agent's exit code, or -1 while it is still running.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Done returns a channel closed when the agent exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}
