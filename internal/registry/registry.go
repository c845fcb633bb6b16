// Package registry implements the ExecutionRegistry of spec §4.9: a
// process-wide map from execution id to a running handle, giving
// stop/stop_all a place to reach a live process without threading a
// reference through every caller. Grounded on the teacher's in-memory
// session maps (e.g. internal/coding/workspace.go's WorkspaceManager),
// generalized to carry a cancel func instead of a bespoke struct per
// concern.
package registry

import (
	"sync"
	"time"

	"station/internal/messagestore"
)

// Handle is what the registry tracks per running execution.
type Handle struct {
	ExecutionID  string
	PID          int
	Cancel       func()
	MessageStore *messagestore.Store
}

// Registry is process-wide: one instance per running core.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register adds a handle. Re-registering the same id replaces it.
func (r *Registry) Register(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.ExecutionID] = h
}

// Unregister removes a handle, a no-op if it isn't present.
func (r *Registry) Unregister(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, executionID)
}

// Get returns the handle for executionID, if registered.
func (r *Registry) Get(executionID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[executionID]
	return h, ok
}

// Stop aborts the cancel token for executionID (spec §4.9). Returns false
// if no such execution was registered (already finished or never
// started), true otherwise. A second Stop while the execution is still
// registered calls Cancel again and returns true again; the orchestrator's
// Cancel ignores every call after the first.
func (r *Registry) Stop(executionID string) bool {
	r.mu.RLock()
	h, ok := r.handles[executionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	h.Cancel()
	return true
}

// StopAll cancels every currently registered execution (used at host
// shutdown, complementing the startup crash-recovery pass of §7).
func (r *Registry) StopAll() {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// HasRunningProcesses reports whether any of executionIDs is registered.
// The caller passes in a session's execution ids since the registry
// itself only knows execution ids, not sessions; this keeps the registry
// free of a dependency on the repositories package.
func (r *Registry) HasRunningProcesses(executionIDs []string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range executionIDs {
		if _, ok := r.handles[id]; ok {
			return true
		}
	}
	return false
}

// WaitThenKill waits up to grace for the cancel token to result in
// Unregister (observed via a poll), returning true if the process was
// still registered when the grace period elapsed (the caller should then
// escalate to SIGKILL). This backs the "wait up to 5s, escalate" behavior
// of spec §4.7/§4.9 from the registry's side of the handshake.
func (r *Registry) WaitThenKill(executionID string, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if _, ok := r.Get(executionID); !ok {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
	_, stillRegistered := r.Get(executionID)
	return stillRegistered
}
