// Package target starts the server under test and learns where it listens.
//
// The child receives the write end of a pipe as file descriptor 3 and the
// variable BODYLEAK_ANNOUNCE_FD telling it so. It writes its base URL followed
// by a newline to that descriptor once it is ready to serve.
package target

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EnvAnnounceFD names the descriptor the child announces its URL on.
const EnvAnnounceFD = "BODYLEAK_ANNOUNCE_FD"

// announceFD is the child's view of ExtraFiles[0].
const announceFD = 3

var (
	ErrAnnounceTimeout = errors.New("target did not announce its URL in time")
	ErrNoAnnouncement  = errors.New("target exited without announcing its URL")
)

// Spawner launches fresh target processes.
type Spawner struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // Passed through verbatim; nil means os.Environ()
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// Process is a running target.
type Process struct {
	cmd    *exec.Cmd
	url    *url.URL
	logger *zap.SugaredLogger

	once    sync.Once
	killErr error
}

type announcement struct {
	line string
	err  error
}

// Launch starts the target and waits for its URL announcement.
// The target's stdout and stderr are inherited; its exit is not awaited.
func (s *Spawner) Launch(ctx context.Context) (*Process, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("announce pipe: %w", err)
	}
	defer r.Close()

	env := s.Env
	if env == nil {
		env = os.Environ()
	}

	cmd := exec.Command(s.Command, s.Args...)
	cmd.Dir = s.Dir
	cmd.Env = append(append([]string{}, env...), fmt.Sprintf("%s=%d", EnvAnnounceFD, announceFD))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{w}

	err = cmd.Start()
	// the child holds its own copy; ours must go so EOF arrives if it dies
	w.Close()
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", s.Command, err)
	}

	p := &Process{cmd: cmd, logger: logger}

	// one value, buffered so the reader never blocks after a timeout
	ch := make(chan announcement, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		ch <- announcement{line: line, err: err}
	}()

	timer := time.NewTimer(s.Timeout)
	defer timer.Stop()

	var msg announcement
	select {
	case msg = <-ch:
	case <-timer.C:
		_ = p.Kill()
		return nil, fmt.Errorf("%w after %s", ErrAnnounceTimeout, s.Timeout)
	case <-ctx.Done():
		_ = p.Kill()
		return nil, ctx.Err()
	}

	if msg.err != nil {
		_ = p.Kill()
		return nil, fmt.Errorf("%w: %v", ErrNoAnnouncement, msg.err)
	}

	u, err := url.Parse(strings.TrimSpace(msg.line))
	if err != nil || u.Scheme == "" || u.Host == "" {
		_ = p.Kill()
		return nil, fmt.Errorf("invalid announced URL %q", msg.line)
	}
	p.url = u

	logger.Infow("target started", "pid", cmd.Process.Pid, "url", u.String())
	return p, nil
}

// URL returns the base URL the target announced.
func (p *Process) URL() *url.URL {
	return p.url
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Kill stops the target and reaps it. Calling Kill more than once is safe.
func (p *Process) Kill() error {
	p.once.Do(func() {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.killErr = fmt.Errorf("kill target: %w", err)
			return
		}
		// the exit status of a killed process is not interesting
		_ = p.cmd.Wait()
		p.logger.Debugw("target stopped", "pid", p.cmd.Process.Pid)
	})
	return p.killErr
}
