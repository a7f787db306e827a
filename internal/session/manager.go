// Package session supervises the authenticated connection: resume or
// login, persist the session artifact, run the transport's blocking
// receive loop, and start over with backoff when the loop dies.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/yk-CNMB/gemini-itchat-bot/internal/bus"
)

// Handler receives one inbound event and returns the reply text, or ""
// for no reply.
type Handler func(ctx context.Context, ev bus.InboundEvent) string

// Transport is the external chat connection. Listen blocks until the
// connection dies (returning the cause) or ctx is canceled.
type Transport interface {
	// Resume authenticates with a previously persisted artifact.
	Resume(ctx context.Context, artifact []byte) error
	// Login performs fresh interactive authentication and returns the
	// artifact to persist. It blocks on the out-of-band confirmation.
	Login(ctx context.Context) ([]byte, error)
	// Listen runs the blocking receive loop, dispatching each event to
	// handler and delivering non-empty returns as replies.
	Listen(ctx context.Context, handler Handler) error
}

type Manager struct {
	transport Transport
	artifacts *ArtifactStore
	handler   Handler
	backoff   Backoff
	logger    *slog.Logger

	// MaxLoginAttempts bounds consecutive failed fresh logins; 0 means
	// retry forever.
	MaxLoginAttempts int

	sleep   func(ctx context.Context, d time.Duration) error
	running atomic.Bool
}

func NewManager(transport Transport, artifacts *ArtifactStore, handler Handler, backoff Backoff, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if backoff == nil {
		backoff = FixedBackoff{Interval: 5 * time.Second}
	}
	return &Manager{
		transport: transport,
		artifacts: artifacts,
		handler:   handler,
		backoff:   backoff,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Run drives the Unauthenticated -> Authenticating -> Listening cycle
// until ctx is canceled (the only clean exit) or fresh login fails
// MaxLoginAttempts times in a row. Only one Run may be active per
// Manager.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return fmt.Errorf("session manager is already listening")
	}
	defer m.running.Store(false)

	loginFailures := 0
	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info("session_stop", "reason", "context_canceled")
			return nil
		}

		authed, err := m.authenticate(ctx)
		if err != nil {
			return err
		}
		if !authed {
			loginFailures++
			if m.MaxLoginAttempts > 0 && loginFailures >= m.MaxLoginAttempts {
				m.logger.Error("session_login_gave_up", "attempts", loginFailures)
				return fmt.Errorf("login failed %d times, giving up", loginFailures)
			}
			retries++
			if !m.wait(ctx, retries) {
				return nil
			}
			continue
		}
		loginFailures = 0
		retries = 0

		m.logger.Info("session_listening")
		err = m.transport.Listen(ctx, m.handler)
		if ctx.Err() != nil {
			m.logger.Info("session_stop", "reason", "context_canceled")
			return nil
		}

		// The loop died for an unexplained reason; the cached session
		// is no longer trustworthy.
		if err == nil {
			err = fmt.Errorf("receive loop exited")
		}
		m.logger.Warn("transport_loop_error", "error", err.Error())
		if derr := m.artifacts.Delete(); derr != nil {
			m.logger.Warn("session_artifact_delete_error", "error", derr.Error())
		}

		retries++
		if !m.wait(ctx, retries) {
			return nil
		}
	}
}

// authenticate tries the hot path (cached artifact) and falls back to
// fresh login. It returns false when login failed and should be
// retried.
func (m *Manager) authenticate(ctx context.Context) (bool, error) {
	artifact, found, err := m.artifacts.Load()
	if err != nil {
		m.logger.Warn("session_artifact_read_error", "error", err.Error())
		found = false
	}

	if found {
		err := m.transport.Resume(ctx, artifact)
		if err == nil {
			m.logger.Info("session_resume_ok")
			return true, nil
		}
		if ctx.Err() != nil {
			return false, nil
		}
		// Corrupt or expired artifact: discard and go cold.
		m.logger.Warn("session_resume_failed", "error", err.Error())
		if derr := m.artifacts.Delete(); derr != nil {
			m.logger.Warn("session_artifact_delete_error", "error", derr.Error())
		}
	}

	artifact, err = m.transport.Login(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		m.logger.Warn("session_login_failed", "error", err.Error())
		return false, nil
	}
	m.logger.Info("session_login_ok")

	// Best effort: a failed write only costs the next warm restart.
	if err := m.artifacts.Save(artifact); err != nil {
		m.logger.Warn("session_artifact_save_error", "error", err.Error())
	} else {
		m.logger.Info("session_artifact_saved")
	}
	return true, nil
}

// wait sleeps out the backoff interval; false means ctx was canceled.
func (m *Manager) wait(ctx context.Context, attempt int) bool {
	d := m.backoff.Next(attempt)
	m.logger.Info("session_retry_wait", "attempt", attempt, "delay", d.String())
	if err := m.sleep(ctx, d); err != nil {
		m.logger.Info("session_stop", "reason", "context_canceled")
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
