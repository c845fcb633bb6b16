// Package approval implements the ApprovalCoordinator of spec §4.4: a
// request/respond/sweep_timeouts rendezvous between a running execution
// process (the waiter) and an external decision (human approve/deny, a
// timeout sweep, or a parent-execution cancel). Grounded on the
// park-on-a-channel-and-race-select pattern the teacher uses throughout
// internal/coding for driving a spawned child process to completion.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"station/internal/db/repositories"
	"station/pkg/models"
)

// recentSweepCacheSize bounds the sweeper's recently-resolved-id cache, a
// guard against re-resolving a waiter twice if SweepTimeouts' underlying
// query races with the poll interval and returns the same row on two
// consecutive ticks.
const recentSweepCacheSize = 256

// ErrServiceUnavailable is returned by Request when no coordinator is
// installed for the caller's context (spec §4.4).
var ErrServiceUnavailable = errors.New("approval: service unavailable")

// ErrCancelled is returned by Request when cancel_signal wins the race
// against a human response or the timeout sweep.
var ErrCancelled = errors.New("approval: cancelled")

// Repository is the persistence seam the coordinator drives; satisfied by
// *repositories.ApprovalRepo.
type Repository interface {
	Create(ctx context.Context, a *models.Approval) error
	Get(ctx context.Context, id string) (*models.Approval, error)
	Resolve(ctx context.Context, id string, status models.ApprovalStatus, reason *string) error
	SweepTimeouts(ctx context.Context, now time.Time) ([]string, error)
}

// EventEmitter is the narrow slice of the events bus the coordinator needs;
// satisfied by *events.Bus (internal/events).
type EventEmitter interface {
	Emit(topic string, payload any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(string, any) {}

// waiter is the parked goroutine's rendezvous point: exactly one terminal
// status is ever sent on ch, by whichever of respond/sweep/cancel resolves
// it first.
type waiter struct {
	ch   chan models.ApprovalStatus
	once sync.Once
}

func (w *waiter) resolve(status models.ApprovalStatus) {
	w.once.Do(func() { w.ch <- status })
}

// Coordinator mediates approval requests against a configured default
// timeout, per spec §4.4.
type Coordinator struct {
	repo    Repository
	events  EventEmitter
	timeout time.Duration

	mu      sync.Mutex
	waiters map[string]*waiter // approval id -> waiter

	recentlySwept *lru.Cache[string, struct{}]
}

func New(repo Repository, events EventEmitter, defaultTimeout time.Duration) *Coordinator {
	if events == nil {
		events = noopEmitter{}
	}
	cache, _ := lru.New[string, struct{}](recentSweepCacheSize)
	return &Coordinator{
		repo:          repo,
		events:        events,
		timeout:       defaultTimeout,
		waiters:       make(map[string]*waiter),
		recentlySwept: cache,
	}
}

// Request writes a pending Approval row and blocks until a terminal status
// is reached, per spec §4.4's three unblocking conditions. cancelSignal
// firing returns ErrCancelled without mutating the Approval row (it is
// left pending for a later sweep, matching the cancel-race test in §8).
func (c *Coordinator) Request(ctx context.Context, id, executionProcessID, toolName, toolInput, toolCallID string, cancelSignal <-chan struct{}) (models.ApprovalStatus, error) {
	if c == nil || c.repo == nil {
		return "", ErrServiceUnavailable
	}

	now := time.Now()
	approval := &models.Approval{
		ID:                 id,
		ExecutionProcessID: executionProcessID,
		ToolName:           toolName,
		ToolInput:          toolInput,
		ToolCallID:         toolCallID,
		Status:             models.ApprovalPending,
		RequestedAt:        now,
		TimeoutAt:          now.Add(c.timeout),
	}
	if err := c.repo.Create(ctx, approval); err != nil {
		return "", fmt.Errorf("approval: create: %w", err)
	}

	w := &waiter{ch: make(chan models.ApprovalStatus, 1)}
	c.mu.Lock()
	c.waiters[id] = w
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}()

	c.events.Emit("approval.requested", approval)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case status := <-w.ch:
		return status, nil
	case <-cancelSignal:
		return "", ErrCancelled
	case <-timer.C:
		// Local fallback in case the background sweeper hasn't run yet:
		// resolve the row ourselves, tolerating a race with Respond.
		if err := c.repo.Resolve(ctx, id, models.ApprovalTimedOut, nil); err != nil {
			row, getErr := c.repo.Get(ctx, id)
			if getErr == nil {
				return row.Status, nil
			}
			return "", err
		}
		return models.ApprovalTimedOut, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Respond resolves a pending approval. Idempotent: if the row is no
// longer pending this is a no-op (spec §4.4).
func (c *Coordinator) Respond(ctx context.Context, id string, approved bool, reason *string) error {
	status := models.ApprovalDenied
	if approved {
		status = models.ApprovalApproved
	}
	err := c.repo.Resolve(ctx, id, status, reason)
	alreadyResolved := errors.Is(err, repositories.ErrAlreadyResolved)
	if err != nil && !alreadyResolved {
		return err
	}
	if alreadyResolved {
		return nil
	}

	c.mu.Lock()
	w, ok := c.waiters[id]
	c.mu.Unlock()
	if ok {
		w.resolve(status)
	}
	c.events.Emit("approval.resolved", id)
	return nil
}

// SweepTimeouts transitions expired pending rows and resolves their
// parked waiters. RunSweeper calls it periodically; cmd/execd starts
// RunSweeper in a background goroutine.
func (c *Coordinator) SweepTimeouts(ctx context.Context) error {
	ids, err := c.repo.SweepTimeouts(ctx, time.Now())
	if err != nil {
		return err
	}
	c.mu.Lock()
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, already := c.recentlySwept.Get(id); already {
			continue
		}
		c.recentlySwept.Add(id, struct{}{})
		if w, ok := c.waiters[id]; ok {
			w.resolve(models.ApprovalTimedOut)
		}
		fresh = append(fresh, id)
	}
	c.mu.Unlock()
	for range fresh {
		c.events.Emit("approval.timed_out", nil)
	}
	return nil
}

// RunSweeper runs SweepTimeouts on interval until ctx is cancelled.
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.SweepTimeouts(ctx)
		}
	}
}
