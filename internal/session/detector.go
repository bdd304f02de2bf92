// Package session is the client side of the broker: it tracks which mode the
// caller is in and runs the conversation for that mode.
package session

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
)

// Role is the caller role derived from the identity string.
type Role string

const (
	RoleLearner Role = "learner"
	RoleStaff   Role = "staff"
)

var alphaOnly = regexp.MustCompile(`^[A-Za-z]+$`)

// RoleOf derives the caller role from identity. Any digit means learner, a
// purely alphabetic identity means staff, everything else (including empty
// and "unknown") means learner.
//
// This is a brittle proxy: learner codes are alphanumeric and staff logins
// happen to be letters only. Staff with a digit in their login are treated as
// learners.
func RoleOf(identity string) Role {
	identity = strings.TrimSpace(identity)
	if identity == "" || identity == "unknown" {
		return RoleLearner
	}
	if strings.ContainsAny(identity, "0123456789") {
		return RoleLearner
	}
	if alphaOnly.MatchString(identity) {
		return RoleStaff
	}
	return RoleLearner
}

// Environment exposes the page signals the detector reads.
type Environment interface {
	// ExamIndicatorPresent reports whether a time-boxed exam is running.
	ExamIndicatorPresent() bool
}

// EnvironmentFunc adapts a function to Environment.
type EnvironmentFunc func() bool

func (f EnvironmentFunc) ExamIndicatorPresent() bool { return f() }

// NavigationKind names a client-side navigation event.
type NavigationKind string

const (
	NavigationPush    NavigationKind = "push"
	NavigationReplace NavigationKind = "replace"
	NavigationPop     NavigationKind = "pop"
)

// Transition is raised when the computed mode changes.
type Transition struct {
	From chat.Mode
	To   chat.Mode
}

// TransitionListener receives transitions in the order they happen.
type TransitionListener func(ctx context.Context, t Transition)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollWindow   = time.Minute
)

// DetectorOption customises a Detector.
type DetectorOption func(*Detector)

// WithPoll sets how often and for how long the exam indicator is re-checked
// after Start.
func WithPoll(interval, window time.Duration) DetectorOption {
	return func(d *Detector) {
		if interval > 0 {
			d.interval = interval
		}
		if window > 0 {
			d.window = window
		}
	}
}

// WithDetectorLogger sets the logger.
func WithDetectorLogger(l *zap.Logger) DetectorOption {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// Detector is the mode state machine. Staff are always in teacher mode;
// learners are in exam mode while the exam indicator is present and in
// practice mode otherwise.
type Detector struct {
	env      Environment
	role     Role
	interval time.Duration
	window   time.Duration
	logger   *zap.Logger

	// evalMu serialises evaluations so listeners see transitions in order.
	evalMu sync.Mutex

	mu        sync.Mutex
	current   chat.Mode
	listeners []TransitionListener
	stopPoll  context.CancelFunc
	pollDone  chan struct{}
}

// NewDetector creates a detector for identity and computes the initial mode.
func NewDetector(identity string, env Environment, opts ...DetectorOption) *Detector {
	d := &Detector{
		env:      env,
		role:     RoleOf(identity),
		interval: DefaultPollInterval,
		window:   DefaultPollWindow,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("detector")
	d.current = d.compute()
	return d
}

// Role returns the caller role.
func (d *Detector) Role() Role { return d.role }

// Mode returns the active mode.
func (d *Detector) Mode() chat.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// OnTransition registers a listener.
func (d *Detector) OnTransition(fn TransitionListener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Evaluate recomputes the mode and notifies listeners when it changed.
func (d *Detector) Evaluate(ctx context.Context) (Transition, bool) {
	d.evalMu.Lock()
	defer d.evalMu.Unlock()

	next := d.compute()

	d.mu.Lock()
	prev := d.current
	if next == prev {
		d.mu.Unlock()
		return Transition{}, false
	}
	d.current = next
	listeners := append([]TransitionListener(nil), d.listeners...)
	d.mu.Unlock()

	t := Transition{From: prev, To: next}
	d.logger.Info("mode changed", zap.String("from", prev.String()), zap.String("to", next.String()))
	for _, fn := range listeners {
		fn(ctx, t)
	}
	return t, true
}

// Navigate re-evaluates the mode after a navigation event.
func (d *Detector) Navigate(ctx context.Context, kind NavigationKind) (Transition, bool) {
	d.logger.Debug("navigation", zap.String("kind", string(kind)))
	return d.Evaluate(ctx)
}

// Start (re)starts the bounded poll: the mode is re-evaluated every interval
// until the window elapses, ctx is cancelled or Stop is called. A running
// poll is stopped first.
func (d *Detector) Start(ctx context.Context) {
	d.Stop()

	pollCtx, cancel := context.WithTimeout(ctx, d.window)
	done := make(chan struct{})

	d.mu.Lock()
	d.stopPoll = cancel
	d.pollDone = done
	d.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				d.logger.Debug("poll finished", zap.Error(pollCtx.Err()))
				return
			case <-ticker.C:
				// the poll deadline must not cut off a listener mid-transition
				d.Evaluate(context.WithoutCancel(pollCtx))
			}
		}
	}()
}

// Stop cancels the poll and waits for it to exit. It must not be called from
// a TransitionListener.
func (d *Detector) Stop() {
	d.mu.Lock()
	cancel, done := d.stopPoll, d.pollDone
	d.stopPoll, d.pollDone = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Polling reports whether the bounded poll is still running.
func (d *Detector) Polling() bool {
	d.mu.Lock()
	done := d.pollDone
	d.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (d *Detector) compute() chat.Mode {
	if d.role == RoleStaff {
		return chat.ModeTeacher
	}
	if d.env != nil && d.env.ExamIndicatorPresent() {
		return chat.ModeExam
	}
	return chat.ModePractice
}
