// go-lynx
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lynx.
//
// go-lynx is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lynx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lynx; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package access is the lock's state machine.
//
// A Controller owns the LockState. It polls the reader, consults the
// credential store, commands the actuator and the status indicator, and
// emits AccessEvents. Only the controller goroutine ever commands the
// actuator, and it does so synchronously, so an unlock is never overlapped
// by a lock.
package access

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/actuator"
	"github.com/ZaparooProject/go-lynx/credential"
	"github.com/ZaparooProject/go-lynx/indicator"
	"github.com/ZaparooProject/go-lynx/internal/clock"
	"github.com/ZaparooProject/go-lynx/reader"
	"go.uber.org/zap"
)

// Event reasons that do not come from a credential lookup.
const (
	ReasonReaderFault   = "reader_fault"
	ReasonUnlockTimeout = "unlock_timeout"
	ReasonUnlockFailed  = "unlock_failed"
	ReasonRelockTimeout = "relock_timeout"
	ReasonRelockFailed  = "relock_failed"

	ReasonChallengeFailed      = "challenge_failed"
	ReasonChallengeUnavailable = "challenge_unavailable"
)

// Store is the credential lookup used for every detection.
type Store interface {
	Lookup(tagID lynx.TagID, now time.Time) credential.Decision
}

// Indicator receives pattern changes.
type Indicator interface {
	Show(p indicator.Pattern)
}

// Verifier proves that the token in the field holding tagID knows secret.
type Verifier interface {
	Verify(ctx context.Context, tagID lynx.TagID, secret []byte) error
}

// EventSink receives access events. Enqueue must not block.
type EventSink interface {
	Enqueue(ev lynx.AccessEvent)
}

// Config holds the controller timing policy.
type Config struct {
	// PollInterval is the Run cadence.
	PollInterval time.Duration
	// Hold is how long the lock stays open before relocking.
	Hold time.Duration
	// ActuatorTimeout bounds every Lock and Unlock.
	ActuatorTimeout time.Duration
}

// DefaultConfig returns the default timing.
func DefaultConfig() Config {
	return Config{
		PollInterval:    100 * time.Millisecond,
		Hold:            5 * time.Second,
		ActuatorTimeout: 2 * time.Second,
	}
}

// Controller is the access state machine. Run, Step and the actuator calls
// they make belong to a single goroutine; State, RequestRelock and Reset may
// be called from anywhere.
type Controller struct {
	unlockedAt time.Time
	reader     reader.Driver
	store      Store
	actuator   actuator.Driver
	indicator  Indicator
	sink       EventSink
	verifier   Verifier
	clock      clock.Clock
	logger     *zap.Logger
	onChange   func(from, to lynx.LockState)
	relockReq  chan struct{}
	resetReq   chan struct{}
	holder     lynx.TagID
	cfg        Config
	state      lynx.LockState
	mu         sync.RWMutex
}

// NewController wires the components. ind and sink may be nil.
func NewController(
	rdr reader.Driver,
	store Store,
	act actuator.Driver,
	ind Indicator,
	sink EventSink,
	opts ...Option,
) *Controller {
	c := &Controller{
		reader:    rdr,
		store:     store,
		actuator:  act,
		indicator: ind,
		sink:      sink,
		cfg:       DefaultConfig(),
		clock:     clock.New(),
		logger:    zap.NewNop(),
		relockReq: make(chan struct{}, 1),
		resetReq:  make(chan struct{}, 1),
		state:     lynx.Locked,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lock state.
func (c *Controller) State() lynx.LockState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RequestRelock asks the controller to relock before the hold expires. It
// never blocks; repeated requests before the next step collapse into one.
func (c *Controller) RequestRelock() {
	select {
	case c.relockReq <- struct{}{}:
	default:
	}
}

// Reset asks the controller to leave Fault by driving the lock closed. It
// never blocks and is ignored outside Fault.
func (c *Controller) Reset() {
	select {
	case c.resetReq <- struct{}{}:
	default:
	}
}

// Run drives the lock closed and then steps on every PollInterval until ctx
// is done. A failure to secure the lock at startup enters Fault. An open lock
// is relocked before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	c.secure(ctx)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx)
			return ctx.Err()
		case <-ticker.C:
			if err := c.Step(ctx); err != nil {
				c.shutdown(ctx)
				return err
			}
		}
	}
}

// Step handles pending requests, relocks an expired hold and performs one
// reader poll. It only returns an error when ctx is done.
func (c *Controller) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-c.resetReq:
		c.handleReset(ctx)
	default:
	}

	if c.State() == lynx.Unlocked {
		select {
		case <-c.relockReq:
			c.logger.Info("relock requested")
			c.relock(ctx)
		default:
			if c.clock.Now().Sub(c.unlockedAt) >= c.cfg.Hold {
				c.relock(ctx)
			}
		}
	} else {
		// A relock request only means something while unlocked.
		select {
		case <-c.relockReq:
		default:
		}
	}

	ev, err := c.reader.Poll(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.handleReaderError(err)
		return nil
	}
	if ev != nil {
		c.handleTag(ctx, ev)
	}
	return nil
}

func (c *Controller) handleTag(ctx context.Context, ev *lynx.ReaderEvent) {
	state := c.State()
	if state == lynx.Fault {
		c.logger.Debug("ignoring tag while in fault", zap.Stringer("tag_id", ev.TagID))
		return
	}

	decision := c.store.Lookup(ev.TagID, ev.DetectedAt)
	if !decision.Granted {
		c.deny(ev, decision.Reason)
		return
	}

	if state != lynx.Locked {
		c.logger.Info("tag acknowledged, lock already open",
			zap.Stringer("tag_id", ev.TagID), zap.Stringer("state", state))
		return
	}

	if len(decision.Secret) > 0 {
		if reason := c.challenge(ctx, ev.TagID, decision.Secret); reason != "" {
			c.deny(ev, reason)
			return
		}
	}

	c.logger.Info("access granted",
		zap.Stringer("tag_id", ev.TagID), zap.String("reason", decision.Reason))
	c.holder = ev.TagID.Clone()
	c.setState(lynx.Unlocking)
	c.emit(ev.TagID, lynx.OutcomeGranted, decision.Reason, ev.DetectedAt)
	c.show(indicator.Granting)

	if err := c.actuator.Unlock(uninterrupted(ctx), c.cfg.ActuatorTimeout); err != nil {
		c.fail(err, ReasonUnlockTimeout, ReasonUnlockFailed)
		return
	}
	c.unlockedAt = c.clock.Now()
	c.setState(lynx.Unlocked)
}

func (c *Controller) deny(ev *lynx.ReaderEvent, reason string) {
	c.logger.Info("access denied",
		zap.Stringer("tag_id", ev.TagID), zap.String("reason", reason))
	c.emit(ev.TagID, lynx.OutcomeDenied, reason, ev.DetectedAt)
	c.show(indicator.Denied)
}

// challenge returns the denial reason, or "" when the token proved the key.
func (c *Controller) challenge(ctx context.Context, tagID lynx.TagID, secret []byte) string {
	if c.verifier == nil {
		c.logger.Warn("credential needs challenge-response but no verifier is configured",
			zap.Stringer("tag_id", tagID))
		return ReasonChallengeUnavailable
	}
	if err := c.verifier.Verify(ctx, tagID, secret); err != nil {
		c.logger.Info("challenge-response failed", zap.Stringer("tag_id", tagID), zap.Error(err))
		return ReasonChallengeFailed
	}
	return ""
}

func (c *Controller) handleReaderError(err error) {
	if c.State() == lynx.Fault {
		c.logger.Debug("ignoring reader error while in fault", zap.Error(err))
		return
	}
	c.logger.Warn("reader error", zap.Error(err))
	c.emit(nil, lynx.OutcomeReaderError, ReasonReaderFault, c.clock.Now())
	c.show(indicator.Denied)
}

func (c *Controller) relock(ctx context.Context) {
	c.setState(lynx.Relocking)
	if err := c.actuator.Lock(uninterrupted(ctx), c.cfg.ActuatorTimeout); err != nil {
		c.fail(err, ReasonRelockTimeout, ReasonRelockFailed)
		return
	}
	c.holder = nil
	c.setState(lynx.Locked)
	c.show(indicator.Idle)
}

func (c *Controller) handleReset(ctx context.Context) {
	if c.State() != lynx.Fault {
		c.logger.Debug("reset ignored outside fault", zap.Stringer("state", c.State()))
		return
	}
	if err := c.actuator.Lock(uninterrupted(ctx), c.cfg.ActuatorTimeout); err != nil {
		c.logger.Error("reset failed, lock stays in fault", zap.Error(err))
		return
	}
	c.logger.Info("fault cleared by reset")
	c.holder = nil
	c.setState(lynx.Locked)
	c.show(indicator.Idle)
}

// secure drives the mechanism to locked without emitting events.
func (c *Controller) secure(ctx context.Context) {
	if c.State() != lynx.Locked {
		return
	}
	if err := c.actuator.Lock(uninterrupted(ctx), c.cfg.ActuatorTimeout); err != nil {
		c.logger.Error("failed to secure lock at startup", zap.Error(err))
		c.setState(lynx.Fault)
		c.show(indicator.Fault)
		return
	}
	c.show(indicator.Idle)
}

// shutdown relocks a lock left open when Run stops.
func (c *Controller) shutdown(ctx context.Context) {
	if c.State() != lynx.Unlocked {
		return
	}
	c.logger.Info("relocking before shutdown")
	c.relock(ctx)
}

// uninterrupted detaches an actuation from cancellation. The actuator
// timeout still bounds it.
func uninterrupted(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// fail enters Fault and records the actuator error. An interrupted actuation
// leaves the position unknown, so it still enters Fault, but it is not
// reported as an access event.
func (c *Controller) fail(err error, timeoutReason, faultReason string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("actuation interrupted, entering fault", zap.Error(err))
		c.setState(lynx.Fault)
		c.show(indicator.Fault)
		return
	}
	outcome, reason := lynx.OutcomeActuatorFault, faultReason
	if errors.Is(err, actuator.ErrTimedOut) {
		outcome, reason = lynx.OutcomeTimeout, timeoutReason
	}
	c.logger.Error("actuator failed, entering fault",
		zap.String("reason", reason), zap.Error(err))
	c.setState(lynx.Fault)
	c.emit(c.holder, outcome, reason, c.clock.Now())
	c.show(indicator.Fault)
}

func (c *Controller) setState(to lynx.LockState) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	if from == to {
		return
	}
	c.logger.Debug("lock state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.onChange != nil {
		c.onChange(from, to)
	}
}

func (c *Controller) emit(tag lynx.TagID, outcome lynx.Outcome, reason string, at time.Time) {
	if c.sink == nil {
		return
	}
	c.sink.Enqueue(lynx.NewAccessEvent(tag, outcome, reason, at))
}

func (c *Controller) show(p indicator.Pattern) {
	if c.indicator != nil {
		c.indicator.Show(p)
	}
}
