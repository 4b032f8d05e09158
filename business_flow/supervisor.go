package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/linkdms/linkdms/app/services"
	"github.com/linkdms/linkdms/utils"
)

// CrashSupervisor wraps the agent session lifecycle for one run. When a call
// fails with a crash-signature error it closes the dead session, waits out a
// cool-down and re-creates a session bound to the same browser context, up to
// maxRestarts times. The caller resumes at its current cursor; lost progress
// within the crashed page is accepted.
type CrashSupervisor struct {
	agent        services.AgentClient
	contextID    string
	session      services.AgentSession
	restarts     int
	maxRestarts  int
	coolDown     time.Duration
	closeTimeout time.Duration
	onNewSession func(sessionID string)
}

// NewCrashSupervisor creates a supervisor for the given browser context.
// onNewSession is invoked for every session the supervisor creates, including
// the first; it may be nil.
func NewCrashSupervisor(agent services.AgentClient, contextID string, onNewSession func(sessionID string)) *CrashSupervisor {
	return &CrashSupervisor{
		agent:        agent,
		contextID:    contextID,
		maxRestarts:  utils.MaxSessionRestarts,
		coolDown:     utils.SessionRestartCoolDown,
		closeTimeout: utils.SessionCloseTimeout,
		onNewSession: onNewSession,
	}
}

// Start creates the initial session
func (s *CrashSupervisor) Start(ctx context.Context) error {
	session, err := s.agent.Init(ctx, s.contextID)
	if err != nil {
		return fmt.Errorf("failed to start agent session: %w", err)
	}
	s.session = session
	if s.onNewSession != nil {
		s.onNewSession(session.ID())
	}
	return nil
}

// Session returns the current live session
func (s *CrashSupervisor) Session() services.AgentSession {
	return s.session
}

// Restarts returns how many restarts have been consumed
func (s *CrashSupervisor) Restarts() int {
	return s.restarts
}

// HandleFailure classifies an error from an agent call. It returns nil after
// a successful restart, meaning the caller should retry its current step. A
// context deadline is a normal termination path and is passed through without
// consuming restart budget. Non-crash errors are passed through unchanged.
func (s *CrashSupervisor) HandleFailure(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if !services.IsAgentCrash(err) {
		return err
	}

	if s.restarts >= s.maxRestarts {
		return fmt.Errorf("%w after %d restarts: %v", ErrRestartBudgetExhausted, s.restarts, err)
	}
	s.restarts++
	agentCrashesTotal.Inc()
	log.Printf("supervisor: session crash detected (restart %d/%d): %v", s.restarts, s.maxRestarts, err)

	s.closeQuietly()

	select {
	case <-time.After(s.coolDown):
	case <-ctx.Done():
		return ctx.Err()
	}

	session, initErr := s.agent.Init(ctx, s.contextID)
	if initErr != nil {
		return fmt.Errorf("failed to restart agent session: %w", initErr)
	}
	s.session = session
	sessionRestartsTotal.Inc()
	if s.onNewSession != nil {
		s.onNewSession(session.ID())
	}
	return nil
}

// Close shuts the current session down gracefully, abandoning it if the
// close hangs past the timeout
func (s *CrashSupervisor) Close() {
	s.closeQuietly()
}

func (s *CrashSupervisor) closeQuietly() {
	if s.session == nil {
		return
	}
	session := s.session
	s.session = nil

	done := make(chan struct{})
	go func() {
		defer close(done)
		closeCtx, cancel := context.WithTimeout(context.Background(), s.closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Printf("supervisor: session close failed: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(s.closeTimeout + time.Second):
		log.Printf("supervisor: session close timed out, abandoning session %s", session.ID())
	}
}
